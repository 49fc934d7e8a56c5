package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is the part of pgxpool.Pool and pgx.Tx the adapter calls
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgAdapter wraps a pgx pool and implements TxRunner
// query tracing is installed on the pool config, so nothing is emitted here
type pgAdapter struct {
	pool *pgxpool.Pool
}

func newPGAdapter(p *pgxpool.Pool) *pgAdapter { return &pgAdapter{pool: p} }

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.pool == nil {
		return errors.New("pg: nil adapter")
	}
	return a.pool.Ping(ctx)
}

func (a *pgAdapter) Close() error { a.pool.Close(); return nil }

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return querier{a.pool}.Exec(ctx, sql, args...)
}

func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return querier{a.pool}.QueryRow(ctx, sql, args...)
}

// Tx runs fn in a transaction; fn's error rolls back, nil commits
func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(querier{tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// querier adapts pool or tx to RowQuerier
type querier struct{ q pgxQuerier }

func (x querier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	ct, err := x.q.Exec(ctx, sql, args...)
	return tag{ct}, err
}

func (x querier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return x.q.QueryRow(ctx, sql, args...)
}

// wrap pgconn.CommandTag so we satisfy our CommandTag interface
type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }
