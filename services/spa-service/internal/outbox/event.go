package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateAppointment = "appointment"

	EventAppointmentCreated       = "spa.appointment.created.v1"
	EventAppointmentUpdated       = "spa.appointment.updated.v1"
	EventAppointmentStatusChanged = "spa.appointment.status_changed.v1"
)

type AppointmentPayload struct {
	AppointmentID  string    `json:"appointment_id"`
	ServiceID      string    `json:"service_id"`
	ClientName     string    `json:"client_name"`
	ClientEmail    string    `json:"client_email"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	ChangedFields  []string  `json:"changed_fields,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func PayloadFor(appt model.Appointment) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: appt.ID,
		ServiceID:     appt.ServiceID,
		ClientName:    appt.ClientName,
		ClientEmail:   appt.ClientEmail,
		StartTime:     appt.StartTime.UTC(),
		EndTime:       appt.EndTime.UTC(),
		Status:        string(appt.Status),
		OccurredAt:    time.Now().UTC(),
	}
}

func NewAppointmentEvent(eventType string, p AppointmentPayload) (Event, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   p.AppointmentID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
