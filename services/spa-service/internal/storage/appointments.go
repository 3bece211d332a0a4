package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

const appointmentColumns = `id::text, client_name, client_email, client_phone, service_id::text,
	start_time, end_time, status, notes, cancellation_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ClientName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&appt.Notes,
		&appt.CancellationReason,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	appt.Status = model.Status(status)
	return appt, err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func statusStrings(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r queries) ConflictingAppointments(ctx context.Context, from, to time.Time, statuses []model.Status, excludeID string) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = ANY($1)
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time ASC
	`, statusStrings(statuses), from, to, excludeID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r queries) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	return appt, notFound(err, "appointment")
}

// ListAppointments returns one page ordered by start descending plus the total match count.
func (r queries) ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, int, error) {
	where, args := Where(f.Clauses()...)
	limit, offset := f.page()
	args = append(args, limit, offset)
	n := len(args)

	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`, count(*) OVER ()
		FROM appointments
		`+where+`
		ORDER BY start_time DESC
		LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		appts []model.Appointment
		total int
	)
	for rows.Next() {
		var appt model.Appointment
		var status string
		if err := rows.Scan(
			&appt.ID, &appt.ClientName, &appt.ClientEmail, &appt.ClientPhone, &appt.ServiceID,
			&appt.StartTime, &appt.EndTime, &status, &appt.Notes, &appt.CancellationReason,
			&appt.CreatedAt, &appt.UpdatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		appt.Status = model.Status(status)
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return appts, total, nil
}

// StatusCounts counts appointments starting in [from, to) per status.
func (r queries) StatusCounts(ctx context.Context, from, to time.Time) (map[model.Status]int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE start_time >= $1 AND start_time < $2
		GROUP BY status
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

func (t *Tx) InsertAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	created, err := scanAppointment(t.q.QueryRow(ctx, `
		INSERT INTO appointments
			(id, client_name, client_email, client_phone, service_id, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+appointmentColumns,
		appt.ID, appt.ClientName, appt.ClientEmail, appt.ClientPhone, appt.ServiceID,
		appt.StartTime, appt.EndTime, string(appt.Status), appt.Notes))
	return created, slotTaken(err)
}

func (t *Tx) GetAppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(t.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	return appt, notFound(err, "appointment")
}

// UpdateAppointment rewrites the editable fields of appt.
func (t *Tx) UpdateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	updated, err := scanAppointment(t.q.QueryRow(ctx, `
		UPDATE appointments
		SET client_name = $2,
			client_email = $3,
			client_phone = $4,
			service_id = $5,
			start_time = $6,
			end_time = $7,
			notes = $8,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		appt.ID, appt.ClientName, appt.ClientEmail, appt.ClientPhone, appt.ServiceID,
		appt.StartTime, appt.EndTime, appt.Notes))
	if err != nil {
		return model.Appointment{}, slotTaken(notFound(err, "appointment"))
	}
	return updated, nil
}

func (t *Tx) UpdateStatus(ctx context.Context, id string, status model.Status, cancellationReason string) (model.Appointment, error) {
	updated, err := scanAppointment(t.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			cancellation_reason = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancellation_reason END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, string(status), cancellationReason))
	return updated, notFound(err, "appointment")
}
