package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordingEmail struct {
	to, subject, body string
	err               error
}

func (r *recordingEmail) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

type recordingSMS struct {
	to  string
	err error
}

func (r *recordingSMS) Send(_ context.Context, to, _ string) error {
	r.to = to
	return r.err
}

func (r *recordingSMS) ProviderID() string { return "test" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherFansOut(t *testing.T) {
	email := &recordingEmail{}
	sms := &recordingSMS{}
	d := NewDispatcher(email, sms, testLogger(), DispatcherConfig{})

	n := Notice{
		Kind:        KindCancelled,
		ClientName:  "Ana",
		ClientEmail: "ana@example.com",
		ClientPhone: "+351 912 345 678",
		ServiceName: "Hot Stone Massage",
		StartTime:   time.Date(2026, 11, 4, 10, 0, 0, 0, time.UTC),
		Reason:      "therapist ill",
	}
	if err := d.Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if email.to != "ana@example.com" || sms.to != "+351 912 345 678" {
		t.Fatalf("expected both channels, got email=%q sms=%q", email.to, sms.to)
	}
	if !strings.Contains(email.body, "Reason: therapist ill") || !strings.Contains(email.subject, "cancelled") {
		t.Fatalf("unexpected message %q / %q", email.subject, email.body)
	}
}

func TestDispatcherJoinsErrors(t *testing.T) {
	d := NewDispatcher(&recordingEmail{err: errors.New("relay down")}, &recordingSMS{err: errors.New("timeout")}, testLogger(), DispatcherConfig{})
	err := d.Notify(context.Background(), Notice{Kind: KindConfirmed, ClientEmail: "a@b.co", ClientPhone: "1234567"})
	if err == nil || !strings.Contains(err.Error(), "relay down") || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestDispatcherThrottleHonorsContext(t *testing.T) {
	d := NewDispatcher(&recordingEmail{}, nil, testLogger(), DispatcherConfig{PerSecond: 0.001, Burst: 1})
	if err := d.Notify(context.Background(), Notice{Kind: KindConfirmed, ClientEmail: "a@b.co"}); err != nil {
		t.Fatalf("first notice should pass: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.Notify(ctx, Notice{Kind: KindConfirmed, ClientEmail: "a@b.co"}); err == nil {
		t.Fatal("expected throttled notice to fail once the context expires")
	}
}

func TestRenderUsesBusinessTimezone(t *testing.T) {
	loc := time.FixedZone("spa", 2*60*60)
	subject, _ := Render(Notice{Kind: KindConfirmed, ServiceName: "Facial", StartTime: time.Date(2026, 11, 4, 10, 0, 0, 0, time.UTC)}, loc)
	if !strings.Contains(subject, "12:00") || !strings.Contains(subject, "Facial") {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestWebhookSender(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "tok")
	if err := s.Send(context.Background(), "+15550001", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["to"] != "+15550001" || got["body"] != "hi" || auth != "Bearer tok" {
		t.Fatalf("unexpected request %v auth=%q", got, auth)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	if err := NewWebhookSender(failing.URL, "").Send(context.Background(), "1", "x"); err == nil {
		t.Fatal("expected non-2xx to fail")
	}
	if err := NewWebhookSender("", "").Send(context.Background(), "1", "x"); err == nil {
		t.Fatal("expected missing url to fail")
	}
}

func TestBuildMessageStripsHeaderBreaks(t *testing.T) {
	msg := buildMessage("spa@example.com", "a@b.co\r\nBcc: x@y.z", "Hi", "body")
	if strings.Contains(msg, "\r\nBcc:") {
		t.Fatalf("header injection not prevented: %q", msg)
	}
}
