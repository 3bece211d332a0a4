package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/availability"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

type memTx struct {
	hours     []model.WeeklyHours
	blackouts map[string]model.Blackout
	locks     int
	failWrite error
}

type memUnit struct {
	tx *memTx
}

// InTx works on a copy and only publishes it on success.
func (u *memUnit) InTx(_ context.Context, fn func(Tx) error) error {
	work := &memTx{hours: append([]model.WeeklyHours(nil), u.tx.hours...), blackouts: map[string]model.Blackout{}, failWrite: u.tx.failWrite}
	for k, v := range u.tx.blackouts {
		work.blackouts[k] = v
	}
	work.locks = u.tx.locks
	if err := fn(work); err != nil {
		return err
	}
	u.tx = work
	return nil
}

func (t *memTx) ActiveWeeklyHours(context.Context) ([]model.WeeklyHours, error) { return t.hours, nil }

func (t *memTx) ActiveBlackouts(_ context.Context, from, to time.Time) ([]model.Blackout, error) {
	var out []model.Blackout
	for _, b := range t.blackouts {
		if b.Active && !b.StartTime.After(to) && !b.EndTime.Before(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memTx) ConflictingAppointments(context.Context, time.Time, time.Time, []model.Status, string) ([]model.Appointment, error) {
	return nil, nil
}

func (t *memTx) Service(context.Context, string) (model.Service, error) {
	return model.Service{}, apperror.ErrNotFound
}

func (t *memTx) ReplaceWeeklyHours(_ context.Context, rows []model.WeeklyHours) error {
	if t.failWrite != nil {
		return t.failWrite
	}
	t.hours = rows
	return nil
}

func (t *memTx) LockBlackouts(context.Context) error {
	t.locks++
	return nil
}

func (t *memTx) GetBlackoutForUpdate(_ context.Context, id string) (model.Blackout, error) {
	b, ok := t.blackouts[id]
	if !ok {
		return model.Blackout{}, fmt.Errorf("blackout: %w", apperror.ErrNotFound)
	}
	return b, nil
}

func (t *memTx) InsertBlackout(_ context.Context, b model.Blackout) (model.Blackout, error) {
	t.blackouts[b.ID] = b
	return b, nil
}

func (t *memTx) UpdateBlackout(_ context.Context, b model.Blackout) (model.Blackout, error) {
	if _, ok := t.blackouts[b.ID]; !ok {
		return model.Blackout{}, fmt.Errorf("blackout: %w", apperror.ErrNotFound)
	}
	t.blackouts[b.ID] = b
	return b, nil
}

func (t *memTx) DeleteBlackout(_ context.Context, id string) error {
	if _, ok := t.blackouts[id]; !ok {
		return fmt.Errorf("blackout: %w", apperror.ErrNotFound)
	}
	delete(t.blackouts, id)
	return nil
}

func newTestManager() (*Manager, *memUnit) {
	unit := &memUnit{tx: &memTx{blackouts: map[string]model.Blackout{}}}
	engine := availability.NewEngine(nil, availability.Config{})
	m := NewManager(engine, unit, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("b%d", n)
	}
	return m, unit
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func TestReplaceWeeklyHours(t *testing.T) {
	m, unit := newTestManager()
	ctx := context.Background()

	rows, err := m.ReplaceWeeklyHours(ctx, []HoursInput{
		{Weekday: intPtr(6), Start: "10:00", End: "16:00"},
		{Weekday: intPtr(1), Start: "09:00", End: "18:00"},
		{Weekday: intPtr(0), Start: "09:00", End: "12:00", Active: boolPtr(false)},
	}, "admin")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(rows) != 3 || rows[0].Weekday != time.Sunday || rows[0].Active || rows[1].StartMinute != 540 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if len(unit.tx.hours) != 3 {
		t.Fatalf("expected stored rows, got %+v", unit.tx.hours)
	}

	bad := [][]HoursInput{
		{{Weekday: intPtr(7), Start: "09:00", End: "10:00"}},
		{{Weekday: intPtr(1), Start: "10:00", End: "09:00"}},
		{{Weekday: intPtr(1), Start: "09:00", End: "09:00"}},
		{{Weekday: intPtr(1), Start: "9am", End: "10:00"}},
		{{Weekday: intPtr(2), Start: "09:00", End: "10:00"}, {Weekday: intPtr(2), Start: "11:00", End: "12:00"}},
	}
	for i, rows := range bad {
		if _, err := m.ReplaceWeeklyHours(ctx, rows, "admin"); !apperror.Is(err, apperror.KindValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if len(unit.tx.hours) != 3 {
		t.Fatalf("rejected input must not change stored rows, got %+v", unit.tx.hours)
	}

	unit.tx.failWrite = fmt.Errorf("connection reset")
	if _, err := m.ReplaceWeeklyHours(ctx, []HoursInput{{Weekday: intPtr(1), Start: "09:00", End: "10:00"}}, "admin"); !apperror.Is(err, apperror.KindTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(unit.tx.hours) != 3 {
		t.Fatalf("failed replace must keep the previous rows, got %+v", unit.tx.hours)
	}
}

func TestReplaceWeeklyHoursAcceptsEndOfDay(t *testing.T) {
	m, _ := newTestManager()
	rows, err := m.ReplaceWeeklyHours(context.Background(), []HoursInput{{Weekday: intPtr(5), Start: "18:00", End: "24:00"}}, "admin")
	if err != nil || rows[0].EndMinute != model.MinutesPerDay {
		t.Fatalf("expected end of day, got %+v %v", rows, err)
	}
}

func TestReplaceWeeklyHoursRequiresWeekday(t *testing.T) {
	m, unit := newTestManager()
	_, err := m.ReplaceWeeklyHours(context.Background(), []HoursInput{{Start: "09:00", End: "18:00"}}, "admin")
	e, ok := apperror.As(err)
	if !ok || e.Kind != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if unit.tx.hours != nil {
		t.Fatalf("missing weekday must not write rows, got %+v", unit.tx.hours)
	}
}

func TestUpdateBlackoutKeepsActiveFlag(t *testing.T) {
	m, unit := newTestManager()
	ctx := context.Background()

	draft, err := m.CreateBlackout(ctx, BlackoutInput{
		StartTime: "2026-12-31T12:00:00Z", EndTime: "2026-12-31T23:00:00Z", Reason: "Party", Active: boolPtr(false),
	}, "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	edited, err := m.UpdateBlackout(ctx, draft.ID, BlackoutInput{
		StartTime: "2026-12-31T12:00:00Z", EndTime: "2026-12-31T23:00:00Z", Reason: "Staff party",
	}, "admin")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if edited.Active || unit.tx.blackouts[draft.ID].Active {
		t.Fatalf("edit without active must keep the window inactive, got %+v", edited)
	}
	if edited.Reason != "Staff party" {
		t.Fatalf("unexpected reason %q", edited.Reason)
	}

	// An inactive edit skips the overlap check; explicit activation still runs it.
	if _, err := m.CreateBlackout(ctx, BlackoutInput{
		StartTime: "2026-12-31T18:00:00Z", EndTime: "2027-01-01T02:00:00Z", Reason: "New year",
	}, "admin"); err != nil {
		t.Fatalf("create overlapping active window: %v", err)
	}
	if _, err := m.UpdateBlackout(ctx, draft.ID, BlackoutInput{
		StartTime: "2026-12-31T11:00:00Z", EndTime: "2026-12-31T23:00:00Z", Reason: "Staff party",
	}, "admin"); err != nil {
		t.Fatalf("inactive edit should not conflict: %v", err)
	}
	if _, err := m.UpdateBlackout(ctx, draft.ID, BlackoutInput{
		StartTime: "2026-12-31T11:00:00Z", EndTime: "2026-12-31T23:00:00Z", Reason: "Staff party", Active: boolPtr(true),
	}, "admin"); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict on explicit activation, got %v", err)
	}
}

func TestBlackoutLifecycle(t *testing.T) {
	m, unit := newTestManager()
	ctx := context.Background()

	holiday, err := m.CreateBlackout(ctx, BlackoutInput{
		StartTime: "2026-12-25T00:00:00Z",
		EndTime:   "2026-12-25T23:59:00Z",
		Reason:    " Holiday ",
	}, "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if holiday.Reason != "Holiday" || !holiday.Active || unit.tx.locks == 0 {
		t.Fatalf("unexpected blackout %+v (locks=%d)", holiday, unit.tx.locks)
	}

	// Closed intervals: touching the holiday's last minute conflicts.
	_, err = m.CreateBlackout(ctx, BlackoutInput{StartTime: "2026-12-25T23:59:00Z", EndTime: "2026-12-26T12:00:00Z", Reason: "Boxing day"}, "admin")
	e, ok := apperror.As(err)
	if !ok || e.Kind != apperror.KindConflict || e.Reason != ReasonBlackoutOverlap {
		t.Fatalf("expected overlap conflict, got %v", err)
	}

	inactive, err := m.CreateBlackout(ctx, BlackoutInput{
		StartTime: "2026-12-25T12:00:00Z", EndTime: "2026-12-26T12:00:00Z", Reason: "Draft", Active: boolPtr(false),
	}, "admin")
	if err != nil {
		t.Fatalf("inactive windows skip the overlap check: %v", err)
	}
	if _, err := m.SetBlackoutActive(ctx, inactive.ID, true, "admin"); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected re-activation conflict, got %v", err)
	}

	// Editing a window never conflicts with itself.
	moved, err := m.UpdateBlackout(ctx, holiday.ID, BlackoutInput{
		StartTime: "2026-12-24T18:00:00Z", EndTime: "2026-12-25T11:59:00Z", Reason: "Holiday",
	}, "admin")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !moved.EndTime.Equal(time.Date(2026, 12, 25, 11, 59, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", moved.EndTime)
	}
	if _, err := m.SetBlackoutActive(ctx, inactive.ID, true, "admin"); err != nil {
		t.Fatalf("expected activation after the move, got %v", err)
	}

	if _, err := m.SetBlackoutActive(ctx, "missing", true, "admin"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := m.DeleteBlackout(ctx, holiday.ID, "admin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteBlackout(ctx, holiday.ID, "admin"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestBlackoutValidation(t *testing.T) {
	m, _ := newTestManager()
	cases := []BlackoutInput{
		{StartTime: "2026-12-26T00:00:00Z", EndTime: "2026-12-25T00:00:00Z", Reason: "Backwards"},
		{StartTime: "Dec 25", EndTime: "2026-12-25T00:00:00Z", Reason: "Bad"},
		{StartTime: "2026-12-25T00:00:00Z", EndTime: "2026-12-25T01:00:00Z"},
	}
	for i, in := range cases {
		if _, err := m.CreateBlackout(context.Background(), in, "admin"); !apperror.Is(err, apperror.KindValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	// A zero-length window is allowed: start == end.
	if _, err := m.CreateBlackout(context.Background(), BlackoutInput{
		StartTime: "2026-12-31T12:00:00Z", EndTime: "2026-12-31T12:00:00Z", Reason: "Inventory",
	}, "admin"); err != nil {
		t.Fatalf("expected zero-length window to be accepted, got %v", err)
	}
}
