package model

import "time"

type Appointment struct {
	ID                 string
	ClientName         string
	ClientEmail        string
	ClientPhone        string
	ServiceID          string
	StartTime          time.Time
	EndTime            time.Time
	Status             Status
	Notes              string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Blocking reports whether the appointment still holds its slot on the calendar.
func (a Appointment) Blocking() bool {
	return a.Status.Blocking()
}

// AuditEntry is one append-only line in an appointment's history.
type AuditEntry struct {
	ID            string
	AppointmentID string
	Action        string
	Detail        string
	Actor         string
	CreatedAt     time.Time
}

const (
	AuditCreated       = "created"
	AuditUpdated       = "updated"
	AuditStatusChanged = "status_changed"
)
