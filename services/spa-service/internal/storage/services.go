package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"github.com/shopspring/decimal"
)

const serviceColumns = `id::text, name, description, duration_minutes, price::text, active, created_at, updated_at`

func scanService(row pgx.Row) (model.Service, error) {
	var s model.Service
	var price string
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.DurationMinutes, &price, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Service{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return model.Service{}, err
	}
	s.Price = p
	return s, nil
}

func (r queries) Service(ctx context.Context, id string) (model.Service, error) {
	s, err := scanService(r.q.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	return s, notFound(err, "service")
}

func (r queries) ListServices(ctx context.Context, activeOnly bool) ([]model.Service, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE $1 = false OR active
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *Tx) InsertService(ctx context.Context, s model.Service) (model.Service, error) {
	return scanService(t.q.QueryRow(ctx, `
		INSERT INTO services (id, name, description, duration_minutes, price, active)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		RETURNING `+serviceColumns,
		s.ID, s.Name, s.Description, s.DurationMinutes, s.Price.StringFixed(2), s.Active))
}

func (t *Tx) UpdateService(ctx context.Context, s model.Service) (model.Service, error) {
	updated, err := scanService(t.q.QueryRow(ctx, `
		UPDATE services
		SET name = $2, description = $3, duration_minutes = $4, price = $5::numeric, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+serviceColumns,
		s.ID, s.Name, s.Description, s.DurationMinutes, s.Price.StringFixed(2), s.Active))
	return updated, notFound(err, "service")
}
