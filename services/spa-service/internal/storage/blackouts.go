package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

const blackoutColumns = `id::text, start_time, end_time, reason, description, active, created_at, updated_at`

func scanBlackout(row pgx.Row) (model.Blackout, error) {
	var b model.Blackout
	err := row.Scan(&b.ID, &b.StartTime, &b.EndTime, &b.Reason, &b.Description, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func collectBlackouts(rows pgx.Rows) ([]model.Blackout, error) {
	defer rows.Close()
	var out []model.Blackout
	for rows.Next() {
		b, err := scanBlackout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ActiveBlackouts returns active windows touching the closed range [from, to].
func (r queries) ActiveBlackouts(ctx context.Context, from, to time.Time) ([]model.Blackout, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+blackoutColumns+`
		FROM blackout_windows
		WHERE active AND start_time <= $2 AND end_time >= $1
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectBlackouts(rows)
}

type BlackoutFilter struct {
	ActiveOnly bool
	From       *time.Time
	To         *time.Time
}

func (r queries) ListBlackouts(ctx context.Context, f BlackoutFilter) ([]model.Blackout, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+blackoutColumns+`
		FROM blackout_windows
		WHERE ($1 = false OR active)
			AND ($2::timestamptz IS NULL OR end_time >= $2)
			AND ($3::timestamptz IS NULL OR start_time <= $3)
		ORDER BY start_time DESC
	`, f.ActiveOnly, f.From, f.To)
	if err != nil {
		return nil, err
	}
	return collectBlackouts(rows)
}

func (r queries) GetBlackout(ctx context.Context, id string) (model.Blackout, error) {
	b, err := scanBlackout(r.q.QueryRow(ctx, `SELECT `+blackoutColumns+` FROM blackout_windows WHERE id = $1`, id))
	return b, notFound(err, "blackout")
}

// LockBlackouts serialises blackout writers for the rest of the transaction, so two admins
// cannot both pass the overlap check.
func (t *Tx) LockBlackouts(ctx context.Context) error {
	_, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('blackout_windows'))`)
	return err
}

func (t *Tx) GetBlackoutForUpdate(ctx context.Context, id string) (model.Blackout, error) {
	b, err := scanBlackout(t.q.QueryRow(ctx, `SELECT `+blackoutColumns+` FROM blackout_windows WHERE id = $1 FOR UPDATE`, id))
	return b, notFound(err, "blackout")
}

func (t *Tx) InsertBlackout(ctx context.Context, b model.Blackout) (model.Blackout, error) {
	return scanBlackout(t.q.QueryRow(ctx, `
		INSERT INTO blackout_windows (id, start_time, end_time, reason, description, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+blackoutColumns,
		b.ID, b.StartTime, b.EndTime, b.Reason, b.Description, b.Active))
}

func (t *Tx) UpdateBlackout(ctx context.Context, b model.Blackout) (model.Blackout, error) {
	updated, err := scanBlackout(t.q.QueryRow(ctx, `
		UPDATE blackout_windows
		SET start_time = $2, end_time = $3, reason = $4, description = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+blackoutColumns,
		b.ID, b.StartTime, b.EndTime, b.Reason, b.Description, b.Active))
	return updated, notFound(err, "blackout")
}

func (t *Tx) DeleteBlackout(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM blackout_windows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "blackout")
	}
	return nil
}
