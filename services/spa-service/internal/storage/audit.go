package storage

import (
	"context"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

func (t *Tx) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO appointment_audit (id, appointment_id, action, detail, actor)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.AppointmentID, e.Action, e.Detail, e.Actor)
	return err
}

// ListAudit returns an appointment's history, newest first.
func (r queries) ListAudit(ctx context.Context, appointmentID string) ([]model.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text, appointment_id::text, action, detail, actor, created_at
		FROM appointment_audit
		WHERE appointment_id = $1
		ORDER BY created_at DESC, id DESC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.Action, &e.Detail, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
