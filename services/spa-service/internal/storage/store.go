// Package storage is the PostgreSQL side of the spa calendar. Reads run on the pool; writes
// run on a Tx so the orchestrator can group them with its availability check.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/spabook/libs/db"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/outbox"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

type Store struct {
	queries
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool, outbox: outbox.NewRepository()}
}

// Tx exposes the same reads as Store plus every write, all bound to one transaction.
type Tx struct {
	queries
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&Tx{queries: queries{q: tx}, tx: tx, outbox: s.outbox})
	})
}

func (t *Tx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	if err := t.outbox.Insert(ctx, t.tx, evt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows onto the shared sentinel.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperror.ErrNotFound)
	}
	return err
}

// slotTaken maps overlap constraint violations onto the shared sentinel.
func slotTaken(err error) error {
	if db.IsOverlapViolation(err) {
		return fmt.Errorf("%w: %s", apperror.ErrSlotTaken, db.ErrorCode(err))
	}
	return err
}
