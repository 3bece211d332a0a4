// Package booking creates, edits and moves appointments through their lifecycle. Every write
// runs the availability check and the insert in one transaction; the storage constraint is the
// final word when two requests race for the same slot.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/availability"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/notify"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/outbox"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/validation"
)

// Tx is the transactional view the orchestrator writes through.
type Tx interface {
	availability.Store
	InsertAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	UpdateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, cancellationReason string) (model.Appointment, error)
	AppendAudit(ctx context.Context, e model.AuditEntry) error
	AppendEvent(ctx context.Context, evt outbox.Event) error
}

type UnitOfWork interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

type Config struct {
	MinLead time.Duration
	// MaxAheadDays bounds how far ahead a booking may start. Zero means three calendar months.
	MaxAheadDays int
}

type Orchestrator struct {
	engine   *availability.Engine
	uow      UnitOfWork
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      Config
	newID    func() string
}

func NewOrchestrator(engine *availability.Engine, uow UnitOfWork, notifier notify.Notifier, logger *slog.Logger, cfg Config) *Orchestrator {
	if cfg.MinLead <= 0 {
		cfg.MinLead = time.Hour
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Orchestrator{
		engine:   engine,
		uow:      uow,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		newID:    func() string { return uuid.NewString() },
	}
}

type CreateInput struct {
	ClientName  string `json:"client_name" validate:"required,min=2,max=100"`
	ClientEmail string `json:"client_email" validate:"required,email,max=254"`
	ClientPhone string `json:"client_phone" validate:"required,phone"`
	ServiceID   string `json:"service_id" validate:"required,uuid"`
	StartTime   string `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Notes       string `json:"notes" validate:"max=1000"`
}

func (in *CreateInput) normalize() {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.ToLower(strings.TrimSpace(in.ClientEmail))
	in.ClientPhone = strings.TrimSpace(in.ClientPhone)
	in.ServiceID = strings.TrimSpace(in.ServiceID)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.Notes = strings.TrimSpace(in.Notes)
}

// CreateAppointment books a pending appointment. Unavailable slots fail with the engine's
// reason, including the case where another request took the slot after the check.
func (o *Orchestrator) CreateAppointment(ctx context.Context, in CreateInput, actor string) (model.Appointment, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return model.Appointment{}, err
	}
	start, err := time.Parse(time.RFC3339, in.StartTime)
	if err != nil {
		return model.Appointment{}, validation.Field("start_time", "must be an RFC3339 timestamp")
	}
	if err := o.checkLeadWindow(start); err != nil {
		return model.Appointment{}, err
	}

	var created model.Appointment
	err = o.uow.InTx(ctx, func(tx Tx) error {
		svc, err := activeService(ctx, tx, in.ServiceID)
		if err != nil {
			return err
		}
		decision, err := o.engine.WithStore(tx).CheckAvailability(ctx, start, svc.DurationMinutes)
		if err != nil {
			return err
		}
		if err := decision.Err(); err != nil {
			return err
		}

		created, err = tx.InsertAppointment(ctx, model.Appointment{
			ID:          o.newID(),
			ClientName:  in.ClientName,
			ClientEmail: in.ClientEmail,
			ClientPhone: in.ClientPhone,
			ServiceID:   svc.ID,
			StartTime:   start.UTC(),
			EndTime:     start.Add(svc.Duration()).UTC(),
			Status:      model.StatusPending,
			Notes:       in.Notes,
		})
		if err != nil {
			return slotError(err)
		}

		detail := fmt.Sprintf("booked %s for %s", svc.Name, created.StartTime.Format(time.RFC3339))
		if err := o.record(ctx, tx, created, model.AuditCreated, detail, actor); err != nil {
			return err
		}
		return o.emit(ctx, tx, outbox.EventAppointmentCreated, outbox.PayloadFor(created), actor)
	})
	if err != nil {
		return model.Appointment{}, classify("create appointment", err)
	}
	o.logger.Info("appointment created", "appointment_id", created.ID, "service_id", created.ServiceID, "start", created.StartTime)
	return created, nil
}

// UpdateInput is a partial edit; nil fields are left unchanged.
type UpdateInput struct {
	ClientName  *string `json:"client_name" validate:"omitnil,min=2,max=100"`
	ClientEmail *string `json:"client_email" validate:"omitnil,email,max=254"`
	ClientPhone *string `json:"client_phone" validate:"omitnil,phone"`
	ServiceID   *string `json:"service_id" validate:"omitnil,uuid"`
	StartTime   *string `json:"start_time" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
	Notes       *string `json:"notes" validate:"omitempty,max=1000"`
}

func (o *Orchestrator) UpdateAppointment(ctx context.Context, id string, in UpdateInput, actor string) (model.Appointment, error) {
	trimAll(in.ClientName, in.ClientEmail, in.ClientPhone, in.ServiceID, in.StartTime, in.Notes)
	if err := validation.Struct(in); err != nil {
		return model.Appointment{}, err
	}
	var newStart *time.Time
	if in.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *in.StartTime)
		if err != nil {
			return model.Appointment{}, validation.Field("start_time", "must be an RFC3339 timestamp")
		}
		newStart = &t
	}

	var updated model.Appointment
	err := o.uow.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return apperror.FromStore("load appointment", "appointment", err)
		}
		next := current
		var changed []string
		setString(&next.ClientName, in.ClientName, "client_name", &changed)
		if in.ClientEmail != nil {
			lower := strings.ToLower(*in.ClientEmail)
			setString(&next.ClientEmail, &lower, "client_email", &changed)
		}
		setString(&next.ClientPhone, in.ClientPhone, "client_phone", &changed)
		setString(&next.Notes, in.Notes, "notes", &changed)
		setString(&next.ServiceID, in.ServiceID, "service_id", &changed)
		if newStart != nil && !newStart.Equal(current.StartTime) {
			next.StartTime = newStart.UTC()
			changed = append(changed, "start_time")
		}
		if len(changed) == 0 {
			updated = current
			return nil
		}

		if next.ServiceID != current.ServiceID || !next.StartTime.Equal(current.StartTime) {
			if current.Status.Terminal() {
				return &apperror.Error{
					Kind:    apperror.KindInvalidTransition,
					Reason:  string(current.Status) + "->rescheduled",
					Message: fmt.Sprintf("cannot reschedule a %s appointment", current.Status),
				}
			}
			if !next.StartTime.Equal(current.StartTime) {
				if err := o.checkLeadWindow(next.StartTime); err != nil {
					return err
				}
			}
			svc, err := activeService(ctx, tx, next.ServiceID)
			if err != nil {
				return err
			}
			decision, err := o.engine.WithStore(tx).CheckAvailabilityExcluding(ctx, next.StartTime, svc.DurationMinutes, current.ID)
			if err != nil {
				return err
			}
			if err := decision.Err(); err != nil {
				return err
			}
			next.EndTime = next.StartTime.Add(svc.Duration())
		}

		updated, err = tx.UpdateAppointment(ctx, next)
		if err != nil {
			return slotError(err)
		}
		if err := o.record(ctx, tx, updated, model.AuditUpdated, "changed: "+strings.Join(changed, ", "), actor); err != nil {
			return err
		}
		payload := outbox.PayloadFor(updated)
		payload.ChangedFields = changed
		return o.emit(ctx, tx, outbox.EventAppointmentUpdated, payload, actor)
	})
	if err != nil {
		return model.Appointment{}, classify("update appointment", err)
	}
	return updated, nil
}

func (o *Orchestrator) Confirm(ctx context.Context, id, actor, notes string) (model.Appointment, error) {
	return o.transition(ctx, id, model.StatusConfirmed, actor, notes, "")
}

func (o *Orchestrator) Cancel(ctx context.Context, id, actor, reason, notes string) (model.Appointment, error) {
	return o.transition(ctx, id, model.StatusCancelled, actor, notes, reason)
}

func (o *Orchestrator) Complete(ctx context.Context, id, actor, notes string) (model.Appointment, error) {
	return o.transition(ctx, id, model.StatusCompleted, actor, notes, "")
}

// Transition dispatches on a target status name, for callers that receive it as input.
func (o *Orchestrator) Transition(ctx context.Context, id string, to model.Status, actor, notes string) (model.Appointment, error) {
	switch to {
	case model.StatusConfirmed:
		return o.Confirm(ctx, id, actor, notes)
	case model.StatusCancelled:
		return o.Cancel(ctx, id, actor, notes, "")
	case model.StatusCompleted:
		return o.Complete(ctx, id, actor, notes)
	}
	return model.Appointment{}, validation.Field("status", "must be one of confirmed cancelled completed")
}

func (o *Orchestrator) transition(ctx context.Context, id string, to model.Status, actor, notes, reason string) (model.Appointment, error) {
	notes = strings.TrimSpace(notes)
	reason = strings.TrimSpace(reason)
	if len(notes) > 1000 || len(reason) > 1000 {
		return model.Appointment{}, validation.Field("notes", "must be at most 1000 characters")
	}

	var (
		updated model.Appointment
		from    model.Status
		svcName string
	)
	err := o.uow.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return apperror.FromStore("load appointment", "appointment", err)
		}
		from = current.Status
		if !from.CanTransitionTo(to) {
			return apperror.InvalidTransition(string(from), string(to))
		}

		updated, err = tx.UpdateStatus(ctx, id, to, reason)
		if err != nil {
			return err
		}
		if svc, err := tx.Service(ctx, updated.ServiceID); err == nil {
			svcName = svc.Name
		}

		detail := fmt.Sprintf("%s -> %s", from, to)
		if reason != "" {
			detail += "; reason: " + reason
		}
		if notes != "" {
			detail += "; notes: " + notes
		}
		if err := o.record(ctx, tx, updated, model.AuditStatusChanged, detail, actor); err != nil {
			return err
		}
		payload := outbox.PayloadFor(updated)
		payload.PreviousStatus = string(from)
		payload.Reason = reason
		return o.emit(ctx, tx, outbox.EventAppointmentStatusChanged, payload, actor)
	})
	if err != nil {
		return model.Appointment{}, classify("change appointment status", err)
	}
	o.logger.Info("appointment status changed", "appointment_id", id, "from", from, "to", to, "actor", actor)

	switch to {
	case model.StatusCancelled:
		o.notifyBestEffort(ctx, notify.KindCancelled, updated, svcName)
	case model.StatusConfirmed:
		o.notifyBestEffort(ctx, notify.KindConfirmed, updated, svcName)
	}
	return updated, nil
}

// notifyBestEffort runs after commit. Failures are logged; the status change stands.
func (o *Orchestrator) notifyBestEffort(ctx context.Context, kind notify.Kind, appt model.Appointment, serviceName string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	err := o.notifier.Notify(ctx, notify.Notice{
		Kind:          kind,
		AppointmentID: appt.ID,
		ClientName:    appt.ClientName,
		ClientEmail:   appt.ClientEmail,
		ClientPhone:   appt.ClientPhone,
		ServiceName:   serviceName,
		StartTime:     appt.StartTime,
		Reason:        appt.CancellationReason,
	})
	if err != nil {
		o.logger.Warn("appointment notification failed", "appointment_id", appt.ID, "kind", kind, "err", err)
	}
}

func (o *Orchestrator) checkLeadWindow(start time.Time) error {
	now := o.engine.Now()
	if start.Before(now.Add(o.cfg.MinLead)) {
		return validation.Field("start_time", fmt.Sprintf("must be at least %s from now", o.cfg.MinLead))
	}
	latest := now.AddDate(0, 3, 0)
	if o.cfg.MaxAheadDays > 0 {
		latest = now.AddDate(0, 0, o.cfg.MaxAheadDays)
	}
	if start.After(latest) {
		return validation.Field("start_time", "is too far in the future")
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, tx Tx, appt model.Appointment, action, detail, actor string) error {
	return tx.AppendAudit(ctx, model.AuditEntry{
		ID:            o.newID(),
		AppointmentID: appt.ID,
		Action:        action,
		Detail:        detail,
		Actor:         actor,
	})
}

func (o *Orchestrator) emit(ctx context.Context, tx Tx, eventType string, payload outbox.AppointmentPayload, actor string) error {
	payload.Actor = actor
	evt, err := outbox.NewAppointmentEvent(eventType, payload)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, evt)
}

func activeService(ctx context.Context, tx Tx, id string) (model.Service, error) {
	svc, err := tx.Service(ctx, id)
	if err != nil {
		return model.Service{}, apperror.FromStore("load service", "service", err)
	}
	if !svc.Active {
		return model.Service{}, apperror.NotFound("service")
	}
	return svc, nil
}

// slotError turns a lost race on the storage constraint into the same conflict the
// availability check reports.
func slotError(err error) error {
	if errors.Is(err, apperror.ErrSlotTaken) {
		return apperror.Conflict(availability.ReasonSlotBooked, availability.MessageSlotBooked)
	}
	return err
}

func classify(op string, err error) error {
	return apperror.FromStore(op, "appointment", err)
}

func setString(dst *string, v *string, field string, changed *[]string) {
	if v == nil || *v == *dst {
		return
	}
	*dst = *v
	*changed = append(*changed, field)
}

func trimAll(values ...*string) {
	for _, v := range values {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
}
