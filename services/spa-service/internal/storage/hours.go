package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

func (r queries) weeklyHours(ctx context.Context, activeOnly bool) ([]model.WeeklyHours, error) {
	rows, err := r.q.Query(ctx, `
		SELECT weekday, start_minute, end_minute, active
		FROM weekly_hours
		WHERE $1 = false OR active
		ORDER BY weekday
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyHours
	for rows.Next() {
		var weekday, start, end int16
		var active bool
		if err := rows.Scan(&weekday, &start, &end, &active); err != nil {
			return nil, err
		}
		out = append(out, model.WeeklyHours{
			Weekday:     time.Weekday(weekday),
			StartMinute: int(start),
			EndMinute:   int(end),
			Active:      active,
		})
	}
	return out, rows.Err()
}

func (r queries) ActiveWeeklyHours(ctx context.Context) ([]model.WeeklyHours, error) {
	return r.weeklyHours(ctx, true)
}

func (r queries) WeeklyHours(ctx context.Context) ([]model.WeeklyHours, error) {
	return r.weeklyHours(ctx, false)
}

// ReplaceWeeklyHours deletes every row and inserts rows. Run it inside the Tx so readers never
// see the empty intermediate state.
func (t *Tx) ReplaceWeeklyHours(ctx context.Context, rows []model.WeeklyHours) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM weekly_hours`); err != nil {
		return err
	}
	for _, h := range rows {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO weekly_hours (weekday, start_minute, end_minute, active)
			VALUES ($1, $2, $3, $4)
		`, int16(h.Weekday), int16(h.StartMinute), int16(h.EndMinute), h.Active); err != nil {
			return err
		}
	}
	return nil
}
