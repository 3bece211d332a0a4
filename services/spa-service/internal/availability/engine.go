// Package availability decides whether a slot on the spa calendar can be booked and finds
// the next open one. It reads weekly hours, blackout windows and blocking appointments through
// Store and never writes.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store is the read side the engine consumes. Implementations return rows already filtered to
// the requested range; the engine re-applies its own overlap rules.
type Store interface {
	ActiveWeeklyHours(ctx context.Context) ([]model.WeeklyHours, error)
	// ActiveBlackouts returns active windows with start <= to and end >= from.
	ActiveBlackouts(ctx context.Context, from, to time.Time) ([]model.Blackout, error)
	// ConflictingAppointments returns appointments in one of statuses with start < to and
	// end > from. excludeID, when set, is left out.
	ConflictingAppointments(ctx context.Context, from, to time.Time, statuses []model.Status, excludeID string) ([]model.Appointment, error)
	Service(ctx context.Context, id string) (model.Service, error)
}

const (
	ReasonAvailable       = "available"
	ReasonInPast          = "in_past"
	ReasonDayNotAvailable = "day_not_available"
	ReasonOutsideHours    = "outside_business_hours"
	ReasonBlackout        = "blackout"
	ReasonSlotBooked      = "slot_booked"
)

const (
	MessageAvailable       = "available"
	MessageInPast          = "in the past"
	MessageDayNotAvailable = "day not available"
	MessageOutsideHours    = "outside business hours"
	MessageSlotBooked      = "slot already booked"
)

type Config struct {
	Location    *time.Location
	SlotStep    time.Duration
	HorizonDays int
	// HonorBlackoutsInSearch makes FindNextAvailable skip ticks inside blackout windows, the
	// same way CheckAvailability rejects them.
	HonorBlackoutsInSearch bool
	Now                    func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.SlotStep <= 0 {
		c.SlotStep = 30 * time.Minute
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 30
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type Engine struct {
	store  Store
	cfg    Config
	tracer trace.Tracer
}

func NewEngine(store Store, cfg Config) *Engine {
	return &Engine{store: store, cfg: cfg.withDefaults(), tracer: otel.Tracer("spa-service/availability")}
}

// WithStore returns an engine reading from s, typically a store bound to an open transaction.
func (e *Engine) WithStore(s Store) *Engine {
	cp := *e
	cp.store = s
	return &cp
}

func (e *Engine) Location() *time.Location { return e.cfg.Location }

func (e *Engine) Now() time.Time { return e.cfg.Now() }

// Decision is the outcome of a single-slot check. Reason is a stable code, Message is meant
// for people.
type Decision struct {
	Available bool
	Reason    string
	Message   string
	Blackout  *model.Blackout
}

// Err converts an unavailable decision into a conflict error. It returns nil when available.
func (d Decision) Err() error {
	if d.Available {
		return nil
	}
	return apperror.Conflict(d.Reason, d.Message)
}

func unavailable(reason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

func (e *Engine) CheckAvailability(ctx context.Context, start time.Time, durationMinutes int) (Decision, error) {
	return e.CheckAvailabilityExcluding(ctx, start, durationMinutes, "")
}

// CheckAvailabilityExcluding runs the slot check ignoring the appointment excludeID, so an
// appointment being rescheduled does not conflict with itself.
func (e *Engine) CheckAvailabilityExcluding(ctx context.Context, start time.Time, durationMinutes int, excludeID string) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "availability.check",
		trace.WithAttributes(
			attribute.String("slot.start", start.UTC().Format(time.RFC3339)),
			attribute.Int("slot.duration_minutes", durationMinutes),
		),
	)
	defer span.End()

	d, err := e.check(ctx, start, durationMinutes, excludeID)
	if err != nil {
		span.RecordError(err)
		return Decision{}, err
	}
	span.SetAttributes(attribute.String("availability.reason", d.Reason))
	return d, nil
}

func (e *Engine) check(ctx context.Context, start time.Time, durationMinutes int, excludeID string) (Decision, error) {
	if durationMinutes <= 0 {
		return Decision{}, apperror.Validation("duration must be positive", map[string]string{"duration": "must be greater than zero"})
	}
	if !start.After(e.cfg.Now()) {
		return unavailable(ReasonInPast, MessageInPast), nil
	}

	local := start.In(e.cfg.Location)
	hours, err := e.store.ActiveWeeklyHours(ctx)
	if err != nil {
		return Decision{}, apperror.Transient("load weekly hours", err)
	}
	row, ok := hoursFor(hours, local.Weekday())
	if !ok {
		return unavailable(ReasonDayNotAvailable, MessageDayNotAvailable), nil
	}

	slot := Interval{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
	open, closeAt := row.OpenClose(local.Year(), local.Month(), local.Day(), e.cfg.Location)
	if slot.Start.Before(open) || slot.End.After(closeAt) {
		return unavailable(ReasonOutsideHours, MessageOutsideHours), nil
	}

	blackouts, err := e.store.ActiveBlackouts(ctx, slot.Start, slot.End)
	if err != nil {
		return Decision{}, apperror.Transient("load blackouts", err)
	}
	for i := range blackouts {
		b := blackouts[i]
		if !b.Active || !slot.touchesClosed(Interval{Start: b.StartTime, End: b.EndTime}) {
			continue
		}
		d := unavailable(ReasonBlackout, blackoutMessage(b))
		d.Blackout = &b
		return d, nil
	}

	appts, err := e.store.ConflictingAppointments(ctx, slot.Start, slot.End, model.BlockingStatuses, excludeID)
	if err != nil {
		return Decision{}, apperror.Transient("load appointments", err)
	}
	for _, a := range appts {
		if a.ID == excludeID && excludeID != "" {
			continue
		}
		if a.Blocking() && slot.Overlaps(Interval{Start: a.StartTime, End: a.EndTime}) {
			return unavailable(ReasonSlotBooked, MessageSlotBooked), nil
		}
	}
	return Decision{Available: true, Reason: ReasonAvailable, Message: MessageAvailable}, nil
}

// HasBlackoutConflict reports whether an active blackout other than excludeID intersects the
// closed interval [start, end].
func (e *Engine) HasBlackoutConflict(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	conflicts, err := e.BlackoutConflicts(ctx, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// BlackoutConflicts lists the windows HasBlackoutConflict would report.
func (e *Engine) BlackoutConflicts(ctx context.Context, start, end time.Time, excludeID string) ([]model.Blackout, error) {
	rows, err := e.store.ActiveBlackouts(ctx, start, end)
	if err != nil {
		return nil, apperror.Transient("load blackouts", err)
	}
	var out []model.Blackout
	for _, b := range rows {
		if !b.Active || (excludeID != "" && b.ID == excludeID) {
			continue
		}
		if !b.StartTime.After(end) && !b.EndTime.Before(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

func hoursFor(rows []model.WeeklyHours, day time.Weekday) (model.WeeklyHours, bool) {
	for _, h := range rows {
		if h.Active && h.Weekday == day {
			return h, true
		}
	}
	return model.WeeklyHours{}, false
}

func blackoutMessage(b model.Blackout) string {
	if b.Reason == "" {
		return "unavailable: closed"
	}
	return fmt.Sprintf("unavailable: %s", b.Reason)
}
