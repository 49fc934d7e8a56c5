// Package kv is the durable key value store the persona table and comment parent map persist through
// Drivers: memory (tests), file (one atomic file per key), postgres and redis
package kv

import (
	"context"
	"strings"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
)

// Well known keys
const (
	KeyPersonas        = "anonymous_personas"
	KeyCommentParents  = "comment_parent_map"
	KeyExpandedReplies = "expanded_replies" // UI state; reserved so other writers never collide with it
)

// Store is a string keyed blob store
// Writes are last-writer-wins; a missing key is (nil, false, nil), never an error
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Remove(ctx context.Context, key string) error
}

// Driver names accepted by Config
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// validKey rejects keys that would escape a namespace or a directory
func validKey(key string) error {
	if key == "" || len(key) > 200 {
		return perr.InvalidArgf("kv: key must be 1..200 bytes")
	}
	if strings.ContainsAny(key, "/\\:\x00") || key == "." || key == ".." {
		return perr.InvalidArgf("kv: key %q has reserved characters", key)
	}
	return nil
}

// Load reads key and decodes it into T
// A missing key yields (zero, false, nil); undecodable bytes yield a JSON coded error
func Load[T any](ctx context.Context, s Store, c Codec, key string) (T, bool, error) {
	var out T
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := c.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, false, perr.Wrapf(err, perr.ErrorCodeJSON, "kv: decode %s (%s)", key, c.Name())
	}
	return out, true, nil
}

// Save encodes v and writes it under key
func Save[T any](ctx context.Context, s Store, c Codec, key string, v T) error {
	raw, err := c.Marshal(v)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "kv: encode %s (%s)", key, c.Name())
	}
	return s.Set(ctx, key, raw)
}

// logged wraps a Store and logs every failure at warn with the key
type logged struct {
	Store
	driver string
}

// WithLogging decorates s so failures are visible even where callers swallow them
func WithLogging(s Store, driver string) Store { return logged{Store: s, driver: driver} }

func (l logged) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := l.Store.Get(ctx, key)
	if err != nil {
		l.warn(ctx, "get", key, err)
	}
	return v, ok, err
}

func (l logged) Set(ctx context.Context, key string, val []byte) error {
	err := l.Store.Set(ctx, key, val)
	if err != nil {
		l.warn(ctx, "set", key, err)
	}
	return err
}

func (l logged) Remove(ctx context.Context, key string) error {
	err := l.Store.Remove(ctx, key)
	if err != nil {
		l.warn(ctx, "remove", key, err)
	}
	return err
}

func (l logged) warn(ctx context.Context, op, key string, err error) {
	logger.C(ctx).Warn().Str("component", "kv").Str("driver", l.driver).
		Str("op", op).Str("key", key).Err(err).Msg("kv operation failed")
}
