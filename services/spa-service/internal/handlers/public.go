package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/spabook/libs/auth"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/availability"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/booking"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

type ServiceReader interface {
	Service(ctx context.Context, id string) (model.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]model.Service, error)
}

type Availability interface {
	CheckAvailability(ctx context.Context, start time.Time, durationMinutes int) (availability.Decision, error)
	FindNextAvailable(ctx context.Context, serviceID string, from time.Time) (availability.SearchResult, error)
	DaySlots(ctx context.Context, serviceID string, day time.Time) ([]availability.Slot, error)
	BlackoutConflicts(ctx context.Context, start, end time.Time, excludeID string) ([]model.Blackout, error)
	Location() *time.Location
	Now() time.Time
}

type Bookings interface {
	CreateAppointment(ctx context.Context, in booking.CreateInput, actor string) (model.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, in booking.UpdateInput, actor string) (model.Appointment, error)
	Confirm(ctx context.Context, id, actor, notes string) (model.Appointment, error)
	Cancel(ctx context.Context, id, actor, reason, notes string) (model.Appointment, error)
	Complete(ctx context.Context, id, actor, notes string) (model.Appointment, error)
}

type PublicHandler struct {
	services ServiceReader
	engine   Availability
	bookings Bookings
	logger   *slog.Logger
}

func NewPublicHandler(services ServiceReader, engine Availability, bookings Bookings, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{services: services, engine: engine, bookings: bookings, logger: logger}
}

func (h *PublicHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	rows, err := h.services.ListServices(r.Context(), true)
	if err != nil {
		writeError(w, r, h.logger, apperror.FromStore("list services", "service", err))
		return
	}
	out := make([]serviceView, 0, len(rows))
	for _, s := range rows {
		out = append(out, toServiceView(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// CheckAvailability answers GET /api/availability?service_id=&start=.
func (h *PublicHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	serviceID, err := queryID(r, "service_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	start, err := queryTime(r, "start")
	if err == nil && start == nil {
		_, err = requiredQuery(r, "start")
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	svc, err := h.activeService(r.Context(), serviceID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	decision, err := h.engine.CheckAvailability(r.Context(), *start, svc.DurationMinutes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		Available: decision.Available,
		Reason:    decision.Reason,
		Message:   decision.Message,
		Start:     formatTime(*start),
		End:       formatTime(start.Add(svc.Duration())),
	})
}

type nextSlotResponse struct {
	Available   bool      `json:"available"`
	Slot        *slotView `json:"slot,omitempty"`
	DaysChecked int       `json:"days_checked"`
	Message     string    `json:"message,omitempty"`
}

// NextAvailable answers GET /api/availability/next?service_id=&from=YYYY-MM-DD.
func (h *PublicHandler) NextAvailable(w http.ResponseWriter, r *http.Request) {
	serviceID, err := queryID(r, "service_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	from, err := queryDate(r, "from", h.engine.Location())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var start time.Time
	if from != nil {
		start = *from
	}
	res, err := h.engine.FindNextAvailable(r.Context(), serviceID, start)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := nextSlotResponse{Available: res.Available, DaysChecked: res.DaysChecked, Message: res.Message}
	if res.Slot != nil {
		v := toSlotView(*res.Slot, h.engine.Location())
		resp.Slot = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// DaySlots answers GET /api/slots?service_id=&date=YYYY-MM-DD.
func (h *PublicHandler) DaySlots(w http.ResponseWriter, r *http.Request) {
	serviceID, err := queryID(r, "service_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	day, err := queryDate(r, "date", h.engine.Location())
	if err == nil && day == nil {
		_, err = requiredQuery(r, "date")
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	slots, err := h.engine.DaySlots(r.Context(), serviceID, *day)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotView(s, h.engine.Location()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": day.Format(time.DateOnly), "slots": out})
}

// CreateBooking answers POST /api/bookings. New bookings start out pending.
func (h *PublicHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var in booking.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appt, err := h.bookings.CreateAppointment(r.Context(), in, auth.ActorFromContext(r.Context(), "client"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentView(appt))
}

func (h *PublicHandler) activeService(ctx context.Context, id string) (model.Service, error) {
	svc, err := h.services.Service(ctx, id)
	if err != nil {
		return model.Service{}, apperror.FromStore("load service", "service", err)
	}
	if !svc.Active {
		return model.Service{}, apperror.NotFound("service")
	}
	return svc, nil
}
