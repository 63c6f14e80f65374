package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// letting every store run against the pool or inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB owns the connection pool and implements domain.UnitOfWork.
type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// Stores returns pool-bound store handles.
func (db *DB) Stores() domain.Stores {
	return storesFor(db.pool)
}

// InTx runs fn against transaction-bound stores, committing only when fn
// returns nil.
func (db *DB) InTx(ctx context.Context, fn func(domain.Stores) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(storesFor(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func storesFor(q Querier) domain.Stores {
	return domain.Stores{
		Captures:      NewCaptureStore(q),
		Patterns:      NewPatternStore(q),
		Interventions: NewInterventionStore(q),
		Predictions:   NewPredictionStore(q),
		Rewrites:      NewRewriteStore(q),
		Encounters:    NewEncounterStore(q),
		Graph:         NewGraphStore(q),
	}
}
