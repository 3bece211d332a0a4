package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const MessageNoSlot = "no available slot found in the next %d days, please contact the spa directly"

type Slot struct {
	Start   time.Time
	End     time.Time
	Weekday string
}

type SearchResult struct {
	Available   bool
	Slot        *Slot
	DaysChecked int
	Message     string
}

// FindNextAvailable scans forward day by day from the local date of from (tomorrow when from
// is zero) and returns the first free tick. DaysChecked counts the days scanned before the day
// holding the hit, or the whole horizon when nothing was found.
func (e *Engine) FindNextAvailable(ctx context.Context, serviceID string, from time.Time) (SearchResult, error) {
	ctx, span := e.tracer.Start(ctx, "availability.find_next",
		trace.WithAttributes(attribute.String("service.id", serviceID)),
	)
	defer span.End()

	svc, err := e.activeService(ctx, serviceID)
	if err != nil {
		span.RecordError(err)
		return SearchResult{}, err
	}
	hours, err := e.store.ActiveWeeklyHours(ctx)
	if err != nil {
		span.RecordError(err)
		return SearchResult{}, apperror.Transient("load weekly hours", err)
	}

	now := e.cfg.Now()
	first := e.startDate(from, now)
	for offset := 0; offset < e.cfg.HorizonDays; offset++ {
		day := first.AddDate(0, 0, offset)
		row, ok := hoursFor(hours, day.Weekday())
		if !ok {
			continue
		}
		grid, err := e.dayGrid(ctx, row, day, svc.Duration())
		if err != nil {
			span.RecordError(err)
			return SearchResult{}, err
		}
		if t, ok := FirstSlot(grid, now); ok {
			span.SetAttributes(attribute.Int("search.days_checked", offset))
			return SearchResult{
				Available:   true,
				Slot:        &Slot{Start: t, End: t.Add(svc.Duration()), Weekday: t.In(e.cfg.Location).Weekday().String()},
				DaysChecked: offset,
			}, nil
		}
	}
	span.SetAttributes(attribute.Int("search.days_checked", e.cfg.HorizonDays))
	return SearchResult{
		DaysChecked: e.cfg.HorizonDays,
		Message:     fmt.Sprintf(MessageNoSlot, e.cfg.HorizonDays),
	}, nil
}

// DaySlots lists every bookable start for the service on the local date of day.
func (e *Engine) DaySlots(ctx context.Context, serviceID string, day time.Time) ([]Slot, error) {
	svc, err := e.activeService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	hours, err := e.store.ActiveWeeklyHours(ctx)
	if err != nil {
		return nil, apperror.Transient("load weekly hours", err)
	}
	local := day.In(e.cfg.Location)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.cfg.Location)
	row, ok := hoursFor(hours, date.Weekday())
	if !ok {
		return []Slot{}, nil
	}
	grid, err := e.dayGrid(ctx, row, date, svc.Duration())
	if err != nil {
		return nil, err
	}
	starts := AvailableSlots(grid, e.cfg.Now())
	out := make([]Slot, 0, len(starts))
	for _, t := range starts {
		out = append(out, Slot{Start: t, End: t.Add(svc.Duration()), Weekday: date.Weekday().String()})
	}
	return out, nil
}

// dayGrid fetches the day's appointments (and blackouts, when honored) once.
func (e *Engine) dayGrid(ctx context.Context, row model.WeeklyHours, day time.Time, duration time.Duration) (Grid, error) {
	open, closeAt := row.OpenClose(day.Year(), day.Month(), day.Day(), e.cfg.Location)
	grid := Grid{
		Window:   Interval{Start: open, End: closeAt},
		Duration: duration,
		Step:     e.cfg.SlotStep,
	}

	appts, err := e.store.ConflictingAppointments(ctx, open, closeAt, model.BlockingStatuses, "")
	if err != nil {
		return Grid{}, apperror.Transient("load appointments", err)
	}
	for _, a := range appts {
		if a.Blocking() {
			grid.Busy = append(grid.Busy, Interval{Start: a.StartTime, End: a.EndTime})
		}
	}

	if e.cfg.HonorBlackoutsInSearch {
		blackouts, err := e.store.ActiveBlackouts(ctx, open, closeAt)
		if err != nil {
			return Grid{}, apperror.Transient("load blackouts", err)
		}
		for _, b := range blackouts {
			if b.Active {
				grid.Blocked = append(grid.Blocked, Interval{Start: b.StartTime, End: b.EndTime})
			}
		}
	}
	return grid, nil
}

func (e *Engine) activeService(ctx context.Context, id string) (model.Service, error) {
	svc, err := e.store.Service(ctx, id)
	if err != nil {
		return model.Service{}, apperror.FromStore("load service", "service", err)
	}
	if !svc.Active {
		return model.Service{}, apperror.NotFound("service")
	}
	return svc, nil
}

func (e *Engine) startDate(from, now time.Time) time.Time {
	loc := e.cfg.Location
	if from.IsZero() {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, loc)
	}
	f := from.In(loc)
	start := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, loc)
	// Past dates start at today so the horizon is spent on bookable days.
	n := now.In(loc)
	if today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc); start.Before(today) {
		return today
	}
	return start
}
