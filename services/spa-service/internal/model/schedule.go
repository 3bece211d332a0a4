package model

import (
	"fmt"
	"time"
)

const MinutesPerDay = 24 * 60

// WeeklyHours is the opening range for one weekday, in minutes since local midnight.
type WeeklyHours struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Active      bool
}

// OpenClose returns the opening and closing instants of these hours on the given local date.
func (h WeeklyHours) OpenClose(year int, month time.Month, day int, loc *time.Location) (time.Time, time.Time) {
	open := time.Date(year, month, day, 0, h.StartMinute, 0, 0, loc)
	closeAt := time.Date(year, month, day, 0, h.EndMinute, 0, 0, loc)
	return open, closeAt
}

func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMinute parses "HH:MM" into minutes since midnight. "24:00" is accepted as end of day.
func ParseMinute(raw string) (int, error) {
	if raw == "24:00" {
		return MinutesPerDay, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Blackout blocks bookings between Start and End, both inclusive.
type Blackout struct {
	ID          string
	StartTime   time.Time
	EndTime     time.Time
	Reason      string
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
