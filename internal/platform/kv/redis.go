package kv

import (
	"context"
	"errors"

	perr "dayonme/internal/platform/errors"

	"github.com/redis/go-redis/v9"
)

// Redis stores values as plain strings under prefix+key with no expiry
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedis returns a driver over rdb; prefix is usually "dayonme:"
func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (s *Redis) k(key string) string { return s.prefix + key }

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}
	v, err := s.rdb.Get(ctx, s.k(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perr.FromTransport(err, "kv: redis get "+key)
	}
	return v, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, val []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.k(key), val, 0).Err(); err != nil {
		return perr.FromTransport(err, "kv: redis set "+key)
	}
	return nil
}

func (s *Redis) Remove(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.k(key)).Err(); err != nil {
		return perr.FromTransport(err, "kv: redis del "+key)
	}
	return nil
}
