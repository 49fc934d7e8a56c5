package service

import (
	"time"

	"dayonme/internal/platform/config"
)

const (
	defaultPageSize       = 10
	defaultSortBy         = "latest"
	defaultStaleTime      = 60 * time.Second
	defaultReconcileDelay = 2 * time.Second
	defaultLoadTimeout    = 30 * time.Second
	defaultCommentWorkers = 4
)

// Config tunes the feed engine
type Config struct {
	PageSize int
	SortBy   string

	// StaleTime is how long a loaded page 1 is served without a network call
	StaleTime time.Duration
	// ReconcileDelay is the settle window before a created post forces a refetch
	ReconcileDelay time.Duration
	// LoadTimeout bounds one aggregated load, detached from the caller that started it
	LoadTimeout time.Duration

	CommentWorkers  int
	ResolveComments bool
	// CacheBust sends _t on forced refreshes
	CacheBust bool
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		PageSize:        defaultPageSize,
		SortBy:          defaultSortBy,
		StaleTime:       defaultStaleTime,
		ReconcileDelay:  defaultReconcileDelay,
		LoadTimeout:     defaultLoadTimeout,
		CommentWorkers:  defaultCommentWorkers,
		ResolveComments: true,
		CacheBust:       true,
	}
}

// FromConfig reads FEED_* settings
func FromConfig(c config.Conf) Config {
	fc := c.Prefix("FEED_")
	return Config{
		PageSize:        fc.MayIntIn("PAGE_SIZE", defaultPageSize, 1, 100),
		SortBy:          fc.MayEnum("SORT_BY", defaultSortBy, "latest", "popular"),
		StaleTime:       fc.MayDuration("STALE_TIME", defaultStaleTime),
		ReconcileDelay:  fc.MayDuration("RECONCILE_DELAY", defaultReconcileDelay),
		LoadTimeout:     fc.MayDuration("LOAD_TIMEOUT", defaultLoadTimeout),
		CommentWorkers:  fc.MayIntIn("COMMENT_WORKERS", defaultCommentWorkers, 1, 32),
		ResolveComments: fc.MayBool("RESOLVE_COMMENTS", true),
		CacheBust:       fc.MayBool("CACHE_BUST", true),
	}
}

// withDefaults fills zero values; a negative StaleTime means every read refetches
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.SortBy == "" {
		c.SortBy = d.SortBy
	}
	if c.StaleTime == 0 {
		c.StaleTime = d.StaleTime
	}
	if c.StaleTime < 0 {
		c.StaleTime = 0
	}
	if c.ReconcileDelay <= 0 {
		c.ReconcileDelay = d.ReconcileDelay
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = d.LoadTimeout
	}
	if c.CommentWorkers <= 0 {
		c.CommentWorkers = d.CommentWorkers
	}
	return c
}
