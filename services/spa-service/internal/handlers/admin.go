package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/spabook/libs/auth"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/booking"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/catalog"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/schedule"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/storage"
)

type AppointmentReader interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]model.Appointment, int, error)
	StatusCounts(ctx context.Context, from, to time.Time) (map[model.Status]int, error)
	ListAudit(ctx context.Context, appointmentID string) ([]model.AuditEntry, error)
}

type ScheduleReader interface {
	WeeklyHours(ctx context.Context) ([]model.WeeklyHours, error)
	ListBlackouts(ctx context.Context, f storage.BlackoutFilter) ([]model.Blackout, error)
	GetBlackout(ctx context.Context, id string) (model.Blackout, error)
}

type Scheduler interface {
	ReplaceWeeklyHours(ctx context.Context, rows []schedule.HoursInput, actor string) ([]model.WeeklyHours, error)
	CreateBlackout(ctx context.Context, in schedule.BlackoutInput, actor string) (model.Blackout, error)
	UpdateBlackout(ctx context.Context, id string, in schedule.BlackoutInput, actor string) (model.Blackout, error)
	SetBlackoutActive(ctx context.Context, id string, active bool, actor string) (model.Blackout, error)
	DeleteBlackout(ctx context.Context, id, actor string) error
}

type ServiceAdmin interface {
	CreateService(ctx context.Context, in catalog.ServiceInput, actor string) (model.Service, error)
	UpdateService(ctx context.Context, id string, patch catalog.ServicePatch, actor string) (model.Service, error)
}

type AdminDeps struct {
	Appointments AppointmentReader
	Schedule     ScheduleReader
	Services     ServiceReader
	Bookings     Bookings
	Scheduler    Scheduler
	Catalog      ServiceAdmin
	Engine       Availability
	Logger       *slog.Logger
}

type AdminHandler struct {
	AdminDeps
}

func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{AdminDeps: deps}
}

func actor(r *http.Request) string {
	return auth.ActorFromContext(r.Context(), "admin")
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperror.Validation("invalid json body", nil)
	}
	return nil
}

// ListAppointments answers GET /api/admin/appointments with optional status (comma
// separated), service_id, from, to, q, limit and offset.
func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	f := storage.AppointmentFilter{
		ServiceID: strings.TrimSpace(r.URL.Query().Get("service_id")),
		Search:    r.URL.Query().Get("q"),
	}
	if f.ServiceID != "" {
		if _, err := uuid.Parse(f.ServiceID); err != nil {
			writeError(w, r, h.Logger, apperror.Validation("invalid input", map[string]string{"service_id": "must be a valid id"}))
			return
		}
	}
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		st, err := model.ParseStatus(raw)
		if err != nil {
			writeError(w, r, h.Logger, apperror.Validation("invalid input", map[string]string{"status": err.Error()}))
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	rows, total, err := h.Appointments.ListAppointments(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("list appointments", "appointment", err))
		return
	}
	out := make([]appointmentView, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAppointmentView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out, "total": total})
}

func (h *AdminHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	appt, err := h.Appointments.GetAppointment(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("get appointment", "appointment", err))
		return
	}
	resp := map[string]any{"appointment": toAppointmentView(appt)}
	svc, err := h.Services.Service(r.Context(), appt.ServiceID)
	switch {
	case err == nil:
		resp["service"] = toServiceView(svc)
	case !errors.Is(err, apperror.ErrNotFound):
		writeError(w, r, h.Logger, apperror.FromStore("get service", "service", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var in booking.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	appt, err := h.Bookings.UpdateAppointment(r.Context(), id, in, actor(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentView(appt))
}

type transitionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// Transition returns the handler for one status move: confirm, cancel or complete.
func (h *AdminHandler) Transition(to model.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		var req transitionRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		var appt model.Appointment
		switch to {
		case model.StatusConfirmed:
			appt, err = h.Bookings.Confirm(r.Context(), id, actor(r), req.Notes)
		case model.StatusCancelled:
			appt, err = h.Bookings.Cancel(r.Context(), id, actor(r), req.Reason, req.Notes)
		default:
			appt, err = h.Bookings.Complete(r.Context(), id, actor(r), req.Notes)
		}
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentView(appt))
	}
}

func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if _, err := h.Appointments.GetAppointment(r.Context(), id); err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("get appointment", "appointment", err))
		return
	}
	rows, err := h.Appointments.ListAudit(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("list audit", "appointment", err))
		return
	}
	out := make([]auditView, 0, len(rows))
	for _, e := range rows {
		out = append(out, auditView{ID: e.ID, Action: e.Action, Detail: e.Detail, Actor: e.Actor, CreatedAt: formatTime(e.CreatedAt)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": out})
}

// Stats counts appointments per status for the local business day and the next seven days.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	loc := h.Engine.Location()
	now := h.Engine.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	today, err := h.Appointments.StatusCounts(r.Context(), dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("status counts", "appointment", err))
		return
	}
	upcoming, err := h.Appointments.StatusCounts(r.Context(), now, now.AddDate(0, 0, 7))
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("status counts", "appointment", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":     dayStart.Format(time.DateOnly),
		"today":    countsView(today),
		"upcoming": countsView(upcoming),
	})
}

func countsView(counts map[model.Status]int) map[string]int {
	out := map[string]int{}
	total := 0
	for _, st := range []model.Status{model.StatusPending, model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted} {
		out[string(st)] = counts[st]
		total += counts[st]
	}
	out["total"] = total
	return out
}

func (h *AdminHandler) GetHours(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Schedule.WeeklyHours(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("load weekly hours", "weekly hours", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": toHoursViews(rows), "timezone": h.Engine.Location().String()})
}

type hoursRequest struct {
	Hours []schedule.HoursInput `json:"hours"`
}

func (h *AdminHandler) ReplaceHours(w http.ResponseWriter, r *http.Request) {
	var req hoursRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	rows, err := h.Scheduler.ReplaceWeeklyHours(r.Context(), req.Hours, actor(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": toHoursViews(rows)})
}

// ListBlackouts answers GET /api/admin/blackouts?active=true&from=&to=.
func (h *AdminHandler) ListBlackouts(w http.ResponseWriter, r *http.Request) {
	f := storage.BlackoutFilter{ActiveOnly: r.URL.Query().Get("active") == "true"}
	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	rows, err := h.Schedule.ListBlackouts(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("list blackouts", "blackout", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blackouts": toBlackoutViews(rows)})
}

func (h *AdminHandler) GetBlackout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	b, err := h.Schedule.GetBlackout(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("get blackout", "blackout", err))
		return
	}
	writeJSON(w, http.StatusOK, toBlackoutView(b))
}

func (h *AdminHandler) CreateBlackout(w http.ResponseWriter, r *http.Request) {
	var in schedule.BlackoutInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	b, err := h.Scheduler.CreateBlackout(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlackoutView(b))
}

func (h *AdminHandler) UpdateBlackout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var in schedule.BlackoutInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	b, err := h.Scheduler.UpdateBlackout(r.Context(), id, in, actor(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlackoutView(b))
}

type toggleRequest struct {
	Active *bool `json:"active"`
}

func (h *AdminHandler) ToggleBlackout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if req.Active == nil {
		writeError(w, r, h.Logger, apperror.Validation("invalid input", map[string]string{"active": "is required"}))
		return
	}
	b, err := h.Scheduler.SetBlackoutActive(r.Context(), id, *req.Active, actor(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlackoutView(b))
}

func (h *AdminHandler) DeleteBlackout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := h.Scheduler.DeleteBlackout(r.Context(), id, actor(r)); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BlackoutConflicts answers GET /api/admin/blackouts/conflicts?start=&end=&exclude_id= so the
// back office can warn before saving.
func (h *AdminHandler) BlackoutConflicts(w http.ResponseWriter, r *http.Request) {
	start, err := queryTime(r, "start")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if start == nil || end == nil {
		writeError(w, r, h.Logger, apperror.Validation("start and end are required", nil))
		return
	}
	rows, err := h.Engine.BlackoutConflicts(r.Context(), *start, *end, strings.TrimSpace(r.URL.Query().Get("exclude_id")))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflict": len(rows) > 0, "blackouts": toBlackoutViews(rows)})
}

func (h *AdminHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Services.ListServices(r.Context(), false)
	if err != nil {
		writeError(w, r, h.Logger, apperror.FromStore("list services", "service", err))
		return
	}
	out := make([]serviceView, 0, len(rows))
	for _, s := range rows {
		out = append(out, toServiceView(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

func (h *AdminHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var in catalog.ServiceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	svc, err := h.Catalog.CreateService(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceView(svc))
}

func (h *AdminHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var patch catalog.ServicePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	svc, err := h.Catalog.UpdateService(r.Context(), id, patch, actor(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceView(svc))
}
