package kv

import (
	"context"
	"errors"
	"sync"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/store"

	"github.com/jackc/pgx/v5"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	namespace  text        NOT NULL,
	k          text        NOT NULL,
	v          bytea       NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, k)
)`

// Postgres stores values in kv_entries, one row per (namespace, key)
// The namespace lets several installs share one database
type Postgres struct {
	db        store.TxRunner
	namespace string

	schemaMu sync.Mutex
	schemaOK bool
}

// NewPostgres returns a driver over db; the table is created lazily on first use
func NewPostgres(db store.TxRunner, namespace string) *Postgres {
	if namespace == "" {
		namespace = "default"
	}
	return &Postgres{db: db, namespace: namespace}
}

// EnsureSchema creates the table once per process
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaOK {
		return nil
	}
	if _, err := s.db.Exec(ctx, pgSchema); err != nil {
		return perr.FromPostgres(err, "kv: create kv_entries")
	}
	s.schemaOK = true
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, false, err
	}
	var v []byte
	err := s.db.QueryRow(ctx, `SELECT v FROM kv_entries WHERE namespace = $1 AND k = $2`, s.namespace, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perr.FromPostgres(err, "kv: select "+key)
	}
	return v, true, nil
}

func (s *Postgres) Set(ctx context.Context, key string, val []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	if val == nil {
		val = []byte{}
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO kv_entries (namespace, k, v, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, k) DO UPDATE SET v = EXCLUDED.v, updated_at = EXCLUDED.updated_at`,
		s.namespace, key, val)
	if err != nil {
		return perr.FromPostgres(err, "kv: upsert "+key)
	}
	return nil
}

func (s *Postgres) Remove(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM kv_entries WHERE namespace = $1 AND k = $2`, s.namespace, key); err != nil {
		return perr.FromPostgres(err, "kv: delete "+key)
	}
	return nil
}
