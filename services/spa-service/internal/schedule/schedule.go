// Package schedule administers the calendar's shape: weekly opening hours and blackout
// windows.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/availability"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/validation"
)

const ReasonBlackoutOverlap = "blackout_overlap"

type Tx interface {
	availability.Store
	ReplaceWeeklyHours(ctx context.Context, rows []model.WeeklyHours) error
	LockBlackouts(ctx context.Context) error
	GetBlackoutForUpdate(ctx context.Context, id string) (model.Blackout, error)
	InsertBlackout(ctx context.Context, b model.Blackout) (model.Blackout, error)
	UpdateBlackout(ctx context.Context, b model.Blackout) (model.Blackout, error)
	DeleteBlackout(ctx context.Context, id string) error
}

type UnitOfWork interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

type Manager struct {
	engine *availability.Engine
	uow    UnitOfWork
	logger *slog.Logger
	newID  func() string
}

func NewManager(engine *availability.Engine, uow UnitOfWork, logger *slog.Logger) *Manager {
	return &Manager{engine: engine, uow: uow, logger: logger, newID: uuid.NewString}
}

type HoursInput struct {
	Weekday *int   `json:"weekday" validate:"required,gte=0,lte=6"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
	Active  *bool  `json:"active"`
}

type hoursBatch struct {
	Rows []HoursInput `json:"hours" validate:"max=7,dive"`
}

// ReplaceWeeklyHours swaps the whole weekly table for rows in one transaction.
func (m *Manager) ReplaceWeeklyHours(ctx context.Context, rows []HoursInput, actor string) ([]model.WeeklyHours, error) {
	if err := validation.Struct(hoursBatch{Rows: rows}); err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	out := make([]model.WeeklyHours, 0, len(rows))
	for i, r := range rows {
		field := fmt.Sprintf("hours[%d]", i)
		weekday := *r.Weekday
		if seen[weekday] {
			return nil, validation.Field(field, fmt.Sprintf("duplicate weekday %d", weekday))
		}
		seen[weekday] = true

		start, err := model.ParseMinute(strings.TrimSpace(r.Start))
		if err != nil {
			return nil, validation.Field(field+".start", err.Error())
		}
		end, err := model.ParseMinute(strings.TrimSpace(r.End))
		if err != nil {
			return nil, validation.Field(field+".end", err.Error())
		}
		if start >= end {
			return nil, validation.Field(field, "start must be before end")
		}
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		out = append(out, model.WeeklyHours{Weekday: time.Weekday(weekday), StartMinute: start, EndMinute: end, Active: active})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })

	err := m.uow.InTx(ctx, func(tx Tx) error {
		return tx.ReplaceWeeklyHours(ctx, out)
	})
	if err != nil {
		return nil, apperror.FromStore("replace weekly hours", "weekly hours", err)
	}
	m.logger.Info("weekly hours replaced", "rows", len(out), "actor", actor)
	return out, nil
}

type BlackoutInput struct {
	StartTime   string `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime     string `json:"end_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Reason      string `json:"reason" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Active      *bool  `json:"active"`
}

func (in BlackoutInput) parse() (model.Blackout, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return model.Blackout{}, err
	}
	start, err := time.Parse(time.RFC3339, in.StartTime)
	if err != nil {
		return model.Blackout{}, validation.Field("start_time", "must be an RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, in.EndTime)
	if err != nil {
		return model.Blackout{}, validation.Field("end_time", "must be an RFC3339 timestamp")
	}
	if start.After(end) {
		return model.Blackout{}, validation.Field("end_time", "must not be before start_time")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return model.Blackout{
		StartTime:   start.UTC(),
		EndTime:     end.UTC(),
		Reason:      in.Reason,
		Description: in.Description,
		Active:      active,
	}, nil
}

func (m *Manager) CreateBlackout(ctx context.Context, in BlackoutInput, actor string) (model.Blackout, error) {
	b, err := in.parse()
	if err != nil {
		return model.Blackout{}, err
	}
	b.ID = m.newID()

	var created model.Blackout
	err = m.uow.InTx(ctx, func(tx Tx) error {
		if err := tx.LockBlackouts(ctx); err != nil {
			return err
		}
		if b.Active {
			if err := m.ensureNoOverlap(ctx, tx, b.StartTime, b.EndTime, ""); err != nil {
				return err
			}
		}
		created, err = tx.InsertBlackout(ctx, b)
		return err
	})
	if err != nil {
		return model.Blackout{}, apperror.FromStore("create blackout", "blackout", err)
	}
	m.logger.Info("blackout created", "blackout_id", created.ID, "reason", created.Reason, "actor", actor)
	return created, nil
}

func (m *Manager) UpdateBlackout(ctx context.Context, id string, in BlackoutInput, actor string) (model.Blackout, error) {
	b, err := in.parse()
	if err != nil {
		return model.Blackout{}, err
	}
	b.ID = id

	var updated model.Blackout
	err = m.uow.InTx(ctx, func(tx Tx) error {
		if err := tx.LockBlackouts(ctx); err != nil {
			return err
		}
		current, err := tx.GetBlackoutForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Activation is toggled separately; an edit without "active" keeps it.
		if in.Active == nil {
			b.Active = current.Active
		}
		if b.Active {
			if err := m.ensureNoOverlap(ctx, tx, b.StartTime, b.EndTime, id); err != nil {
				return err
			}
		}
		updated, err = tx.UpdateBlackout(ctx, b)
		return err
	})
	if err != nil {
		return model.Blackout{}, apperror.FromStore("update blackout", "blackout", err)
	}
	m.logger.Info("blackout updated", "blackout_id", id, "actor", actor)
	return updated, nil
}

// SetBlackoutActive toggles a window. Re-activation runs the overlap check again.
func (m *Manager) SetBlackoutActive(ctx context.Context, id string, active bool, actor string) (model.Blackout, error) {
	var updated model.Blackout
	err := m.uow.InTx(ctx, func(tx Tx) error {
		if err := tx.LockBlackouts(ctx); err != nil {
			return err
		}
		current, err := tx.GetBlackoutForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Active == active {
			updated = current
			return nil
		}
		if active {
			if err := m.ensureNoOverlap(ctx, tx, current.StartTime, current.EndTime, id); err != nil {
				return err
			}
		}
		current.Active = active
		updated, err = tx.UpdateBlackout(ctx, current)
		return err
	})
	if err != nil {
		return model.Blackout{}, apperror.FromStore("toggle blackout", "blackout", err)
	}
	m.logger.Info("blackout toggled", "blackout_id", id, "active", active, "actor", actor)
	return updated, nil
}

func (m *Manager) DeleteBlackout(ctx context.Context, id, actor string) error {
	err := m.uow.InTx(ctx, func(tx Tx) error {
		return tx.DeleteBlackout(ctx, id)
	})
	if err != nil {
		return apperror.FromStore("delete blackout", "blackout", err)
	}
	m.logger.Info("blackout deleted", "blackout_id", id, "actor", actor)
	return nil
}

func (m *Manager) ensureNoOverlap(ctx context.Context, tx Tx, start, end time.Time, excludeID string) error {
	conflicts, err := m.engine.WithStore(tx).BlackoutConflicts(ctx, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	c := conflicts[0]
	return apperror.Conflict(ReasonBlackoutOverlap, fmt.Sprintf("overlaps blackout %q (%s to %s)",
		c.Reason, c.StartTime.Format(time.RFC3339), c.EndTime.Format(time.RFC3339)))
}
