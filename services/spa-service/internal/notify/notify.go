// Package notify tells clients about changes to their appointments. Delivery is best effort:
// callers log failures and never undo the change that triggered them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

type Kind string

const (
	KindConfirmed Kind = "appointment_confirmed"
	KindCancelled Kind = "appointment_cancelled"
)

type Notice struct {
	Kind          Kind
	AppointmentID string
	ClientName    string
	ClientEmail   string
	ClientPhone   string
	ServiceName   string
	StartTime     time.Time
	Reason        string
}

type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Dispatcher fans a notice out to email and SMS. A shared limiter keeps bursts of admin
// actions from flooding the relays.
type Dispatcher struct {
	email   EmailSender
	sms     SMSSender
	limiter *rate.Limiter
	loc     *time.Location
	logger  *slog.Logger
}

type DispatcherConfig struct {
	PerSecond float64
	Burst     int
	Location  *time.Location
}

// NewDispatcher accepts nil senders for channels that are not configured.
func NewDispatcher(email EmailSender, sms SMSSender, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	limit := rate.Inf
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Dispatcher{
		email:   email,
		sms:     sms,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		loc:     cfg.Location,
		logger:  logger,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n Notice) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify throttled: %w", err)
	}
	subject, body := Render(n, d.loc)

	var errs []error
	if d.email != nil && n.ClientEmail != "" {
		if err := d.email.Send(n.ClientEmail, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	if d.sms != nil && n.ClientPhone != "" {
		if err := d.sms.Send(ctx, n.ClientPhone, subject); err != nil {
			errs = append(errs, fmt.Errorf("sms (%s): %w", d.sms.ProviderID(), err))
		}
	}
	if len(errs) == 0 {
		d.logger.Info("notification sent", "kind", n.Kind, "appointment_id", n.AppointmentID)
	}
	return errors.Join(errs...)
}

// Render builds the subject and plain-text body for a notice, with times shown in loc.
func Render(n Notice, loc *time.Location) (string, string) {
	when := n.StartTime.In(loc).Format("Monday, 2 January 2006 at 15:04")
	service := n.ServiceName
	if service == "" {
		service = "appointment"
	}
	switch n.Kind {
	case KindConfirmed:
		subject := fmt.Sprintf("Your %s on %s is confirmed", service, when)
		body := fmt.Sprintf("Hello %s,\n\nYour %s on %s is confirmed. We look forward to seeing you.\n", n.ClientName, service, when)
		return subject, body
	case KindCancelled:
		subject := fmt.Sprintf("Your %s on %s was cancelled", service, when)
		body := fmt.Sprintf("Hello %s,\n\nYour %s on %s was cancelled.\n", n.ClientName, service, when)
		if n.Reason != "" {
			body += fmt.Sprintf("Reason: %s\n", n.Reason)
		}
		body += "Please contact us to book a new time.\n"
		return subject, body
	default:
		return fmt.Sprintf("Update on your %s", service), fmt.Sprintf("Hello %s,\n\nThere is an update on your %s on %s.\n", n.ClientName, service, when)
	}
}

type Noop struct{}

func (Noop) Notify(context.Context, Notice) error { return nil }
