package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/spabook/libs/kafkax"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type fakeRunner struct {
	commits   int
	rollbacks int
}

func (f *fakeRunner) InTx(_ context.Context, fn func(pgx.Tx) error) error {
	if err := fn(nil); err != nil {
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

type fakeBatch struct {
	records []Record
	marked  []int64
}

func (f *fakeBatch) FetchUnpublished(_ context.Context, _ pgx.Tx, limit int) ([]Record, error) {
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeBatch) MarkPublished(_ context.Context, _ pgx.Tx, ids []int64) error {
	f.marked = append(f.marked, ids...)
	return nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishBatchMarksWrittenRecords(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	batch := &fakeBatch{records: []Record{
		{ID: 1, EventID: "e1", AggregateID: "a1", EventType: EventAppointmentCreated, Payload: []byte(`{}`),
			Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		{ID: 2, EventID: "e2", AggregateID: "a2", EventType: EventAppointmentStatusChanged, Payload: []byte(`{}`)},
		{ID: 3, EventID: "e3", AggregateID: "a3", EventType: EventAppointmentUpdated, Payload: []byte(`{}`)},
	}}
	runner := &fakeRunner{}
	p := newPublisher(runner, batch, testLogger(), PublisherConfig{BatchSize: 2})
	w := &fakeWriter{}

	n, err := p.PublishBatch(context.Background(), w)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 2 || len(w.msgs) != 2 || len(batch.marked) != 2 || runner.commits != 1 {
		t.Fatalf("expected 2 published and committed, got n=%d msgs=%d marked=%v commits=%d", n, len(w.msgs), batch.marked, runner.commits)
	}
	first := w.msgs[0]
	if first.Topic != EventAppointmentCreated || string(first.Key) != "a1" {
		t.Fatalf("unexpected message %+v", first)
	}
	if kafkax.HeaderValue(first.Headers, "event_id") != "e1" {
		t.Fatalf("missing event_id header: %+v", first.Headers)
	}
	if kafkax.HeaderValue(first.Headers, "traceparent") == "" {
		t.Fatalf("expected stored trace context to be forwarded: %+v", first.Headers)
	}
}

func TestPublishBatchWriteFailureLeavesRecordsUnpublished(t *testing.T) {
	batch := &fakeBatch{records: []Record{{ID: 7, EventID: "e7", EventType: EventAppointmentCreated}}}
	runner := &fakeRunner{}
	p := newPublisher(runner, batch, testLogger(), PublisherConfig{})

	_, err := p.PublishBatch(context.Background(), &fakeWriter{err: errors.New("broker down")})
	if err == nil {
		t.Fatal("expected write error")
	}
	if len(batch.marked) != 0 || runner.rollbacks != 1 {
		t.Fatalf("expected rollback without marking, got marked=%v rollbacks=%d", batch.marked, runner.rollbacks)
	}
}

func TestRunWithoutBrokersReturns(t *testing.T) {
	p := newPublisher(&fakeRunner{}, &fakeBatch{}, testLogger(), PublisherConfig{})
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher without brokers should return immediately")
	}
}

func TestNewAppointmentEvent(t *testing.T) {
	start := time.Date(2026, 11, 4, 10, 0, 0, 0, time.UTC)
	appt := model.Appointment{ID: "a1", ServiceID: "s1", StartTime: start, EndTime: start.Add(time.Hour), Status: model.StatusPending}
	p := PayloadFor(appt)
	p.PreviousStatus = "pending"
	evt, err := NewAppointmentEvent(EventAppointmentStatusChanged, p)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if evt.AggregateType != AggregateAppointment || evt.AggregateID != "a1" {
		t.Fatalf("unexpected envelope %+v", evt)
	}
	var decoded map[string]any
	if err := json.Unmarshal(evt.Payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded["status"] != "pending" || decoded["start_time"] != "2026-11-04T10:00:00Z" {
		t.Fatalf("unexpected payload %v", decoded)
	}
}
