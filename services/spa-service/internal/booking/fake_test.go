package booking

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/availability"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/notify"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/outbox"
)

// memDB mimics the PostgreSQL store: inserts of overlapping blocking appointments fail the
// way the exclusion constraint does, and a failed transaction leaves nothing behind.
type memDB struct {
	mu           sync.Mutex
	hours        []model.WeeklyHours
	services     map[string]model.Service
	appts        map[string]model.Appointment
	audit        []model.AuditEntry
	events       []outbox.Event
	beforeInsert func()
	txCount      int
}

func newMemDB() *memDB {
	var hours []model.WeeklyHours
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours = append(hours, model.WeeklyHours{Weekday: d, StartMinute: 9 * 60, EndMinute: 18 * 60, Active: true})
	}
	return &memDB{
		hours: hours,
		services: map[string]model.Service{
			massageID: {ID: massageID, Name: "Swedish Massage", DurationMinutes: 60, Active: true},
			facialID:  {ID: facialID, Name: "Facial", DurationMinutes: 90, Active: true},
			retiredID: {ID: retiredID, Name: "Retired", DurationMinutes: 30, Active: false},
		},
		appts: map[string]model.Appointment{},
	}
}

func (db *memDB) InTx(ctx context.Context, fn func(Tx) error) error {
	db.mu.Lock()
	db.txCount++
	db.mu.Unlock()

	tx := &memTx{db: db, before: map[string]*model.Appointment{}}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.audit = append(db.audit, tx.audit...)
	db.events = append(db.events, tx.events...)
	return nil
}

func (db *memDB) auditFor(id string) []model.AuditEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range db.audit {
		if e.AppointmentID == id {
			out = append(out, e)
		}
	}
	return out
}

func (db *memDB) blocking() []model.Appointment {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.Appointment
	for _, a := range db.appts {
		if a.Blocking() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

type memTx struct {
	db     *memDB
	audit  []model.AuditEntry
	events []outbox.Event
	// before holds the pre-image of every touched row; nil marks an insert.
	before map[string]*model.Appointment
}

func (t *memTx) rollback() {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for id, prev := range t.before {
		if prev == nil {
			delete(t.db.appts, id)
		} else {
			t.db.appts[id] = *prev
		}
	}
}

func (t *memTx) touch(id string) {
	if _, seen := t.before[id]; seen {
		return
	}
	if prev, ok := t.db.appts[id]; ok {
		t.before[id] = &prev
	} else {
		t.before[id] = nil
	}
}

func (t *memTx) ActiveWeeklyHours(context.Context) ([]model.WeeklyHours, error) {
	return t.db.hours, nil
}

func (t *memTx) ActiveBlackouts(context.Context, time.Time, time.Time) ([]model.Blackout, error) {
	return nil, nil
}

func (t *memTx) ConflictingAppointments(_ context.Context, from, to time.Time, statuses []model.Status, excludeID string) ([]model.Appointment, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	var out []model.Appointment
	for _, a := range t.db.appts {
		if a.ID == excludeID || !a.Blocking() {
			continue
		}
		if a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) Service(_ context.Context, id string) (model.Service, error) {
	svc, ok := t.db.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("service %s: %w", id, apperror.ErrNotFound)
	}
	return svc, nil
}

func (t *memTx) overlapsLocked(appt model.Appointment) bool {
	slot := availability.Interval{Start: appt.StartTime, End: appt.EndTime}
	for _, other := range t.db.appts {
		if other.ID == appt.ID || !other.Blocking() {
			continue
		}
		if slot.Overlaps(availability.Interval{Start: other.StartTime, End: other.EndTime}) {
			return true
		}
	}
	return false
}

func (t *memTx) InsertAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	if t.db.beforeInsert != nil {
		t.db.beforeInsert()
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if appt.Blocking() && t.overlapsLocked(appt) {
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", apperror.ErrSlotTaken)
	}
	t.touch(appt.ID)
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	t.db.appts[appt.ID] = appt
	return appt, nil
}

func (t *memTx) GetAppointmentForUpdate(_ context.Context, id string) (model.Appointment, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	appt, ok := t.db.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment: %w", apperror.ErrNotFound)
	}
	return appt, nil
}

func (t *memTx) UpdateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if appt.Blocking() && t.overlapsLocked(appt) {
		return model.Appointment{}, fmt.Errorf("update appointment: %w", apperror.ErrSlotTaken)
	}
	t.touch(appt.ID)
	t.db.appts[appt.ID] = appt
	return appt, nil
}

func (t *memTx) UpdateStatus(_ context.Context, id string, status model.Status, reason string) (model.Appointment, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	appt, ok := t.db.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment: %w", apperror.ErrNotFound)
	}
	t.touch(id)
	appt.Status = status
	if status == model.StatusCancelled {
		appt.CancellationReason = reason
	}
	t.db.appts[id] = appt
	return appt, nil
}

func (t *memTx) AppendAudit(_ context.Context, e model.AuditEntry) error {
	t.audit = append(t.audit, e)
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, notice notify.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

const (
	massageID = "11111111-1111-4111-8111-111111111111"
	facialID  = "22222222-2222-4222-8222-222222222222"
	retiredID = "33333333-3333-4333-8333-333333333333"
)

// testNow is a Monday morning; testDay is the Wednesday after.
var (
	testNow = time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC)
	testDay = time.Date(2026, 11, 4, 0, 0, 0, 0, time.UTC)
)

func newTestOrchestrator(db *memDB, n notify.Notifier) *Orchestrator {
	engine := availability.NewEngine(nil, availability.Config{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	return NewOrchestrator(engine, db, n, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
}

func bookingAt(start time.Time, serviceID string) CreateInput {
	return CreateInput{
		ClientName:  "Ana Silva",
		ClientEmail: "Ana@Example.com",
		ClientPhone: "+351 912 345 678",
		ServiceID:   serviceID,
		StartTime:   start.Format(time.RFC3339),
	}
}
