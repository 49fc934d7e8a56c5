package store

import (
	"context"
	"fmt"
	"time"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	"dayonme/internal/platform/store/pg"

	"github.com/redis/go-redis/v9"
)

// seams
var (
	sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	newRedis = func(o *redis.Options) redis.UniversalClient { return redis.NewClient(o) }
)

// pingWithBackoff retries ping until it succeeds, attempts run out, or ctx ends
func pingWithBackoff(ctx context.Context, attempts int, timeout time.Duration, ping func(context.Context) error) error {
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)
	if attempts <= 0 {
		attempts = 8
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	var lastErr error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = ping(toCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, backoffCeiling)
	}
	return fmt.Errorf("ping failed after %d attempts: %w", attempts, lastErr)
}

// openPG opens the pool and publishes the adapter only after the pool answers
func openPG(ctx context.Context, cfg PGConfig, log logger.Logger) (TxRunner, error) {
	var tracer *pg.Tracer
	if cfg.LogSQL {
		tracer = pg.NewTracer(log, cfg.SlowQueryMs)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.URL,
		AppName:  cfg.AppName,
		MaxConns: cfg.MaxConns,
	}, tracer, nil)
	if err != nil {
		return nil, perr.FromPostgres(err, "postgres open")
	}
	if err := pingWithBackoff(ctx, cfg.ConnectRetries, cfg.PingTimeout, p.Pool.Ping); err != nil {
		p.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "postgres unreachable")
	}
	return newPGAdapter(p.Pool), nil
}

// openRedis dials redis and pings it with the same backoff as postgres
func openRedis(ctx context.Context, cfg RedisConfig) (redis.UniversalClient, error) {
	c := newRedis(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	err := pingWithBackoff(ctx, 5, 2*time.Second, func(ctx context.Context) error {
		return c.Ping(ctx).Err()
	})
	if err != nil {
		_ = c.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "redis unreachable")
	}
	return c, nil
}
