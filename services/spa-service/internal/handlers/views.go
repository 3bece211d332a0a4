package handlers

import (
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/availability"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

type serviceView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	Active          bool   `json:"active"`
}

func toServiceView(s model.Service) serviceView {
	return serviceView{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		Price:           s.PriceString(),
		Active:          s.Active,
	}
}

type appointmentView struct {
	ID                 string `json:"id"`
	ClientName         string `json:"client_name"`
	ClientEmail        string `json:"client_email"`
	ClientPhone        string `json:"client_phone"`
	ServiceID          string `json:"service_id"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	Status             string `json:"status"`
	Notes              string `json:"notes,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

func toAppointmentView(a model.Appointment) appointmentView {
	return appointmentView{
		ID:                 a.ID,
		ClientName:         a.ClientName,
		ClientEmail:        a.ClientEmail,
		ClientPhone:        a.ClientPhone,
		ServiceID:          a.ServiceID,
		StartTime:          formatTime(a.StartTime),
		EndTime:            formatTime(a.EndTime),
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CreatedAt:          formatTime(a.CreatedAt),
		UpdatedAt:          formatTime(a.UpdatedAt),
	}
}

type auditView struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Detail    string `json:"detail"`
	Actor     string `json:"actor"`
	CreatedAt string `json:"created_at"`
}

type hoursView struct {
	Weekday     int    `json:"weekday"`
	WeekdayName string `json:"weekday_name"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Active      bool   `json:"active"`
}

func toHoursViews(rows []model.WeeklyHours) []hoursView {
	out := make([]hoursView, 0, len(rows))
	for _, h := range rows {
		out = append(out, hoursView{
			Weekday:     int(h.Weekday),
			WeekdayName: h.Weekday.String(),
			Start:       model.FormatMinute(h.StartMinute),
			End:         model.FormatMinute(h.EndMinute),
			Active:      h.Active,
		})
	}
	return out
}

type blackoutView struct {
	ID          string `json:"id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

func toBlackoutView(b model.Blackout) blackoutView {
	return blackoutView{
		ID:          b.ID,
		StartTime:   formatTime(b.StartTime),
		EndTime:     formatTime(b.EndTime),
		Reason:      b.Reason,
		Description: b.Description,
		Active:      b.Active,
	}
}

func toBlackoutViews(rows []model.Blackout) []blackoutView {
	out := make([]blackoutView, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBlackoutView(b))
	}
	return out
}

type slotView struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Weekday string `json:"weekday"`
	// Local is the start rendered in the business time zone.
	Local string `json:"local"`
}

func toSlotView(s availability.Slot, loc *time.Location) slotView {
	return slotView{
		Start:   formatTime(s.Start),
		End:     formatTime(s.End),
		Weekday: s.Weekday,
		Local:   s.Start.In(loc).Format("2006-01-02 15:04"),
	}
}
