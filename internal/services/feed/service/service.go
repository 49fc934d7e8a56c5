// Package service implements the feed aggregator, its per fingerprint cache and the optimistic mutation engine
package service

import (
	"dayonme/internal/services/feed/domain"
)

// Service is the feed as the http layer sees it: cache reads plus mutations
type Service struct {
	*Cache
	*Engine

	agg *Aggregator
}

var _ domain.ServicePort = (*Service)(nil)

// Deps are the collaborators of a Service; only Remote is required
type Deps struct {
	Remote   Remote
	Personas domain.Personas
	Parents  domain.ParentStore
	Notifier domain.Notifier
}

// New wires an Aggregator, a Cache and an Engine over one Remote
func New(d Deps, cfg Config) *Service {
	if d.Remote == nil {
		panic("feed.Service requires a non nil Remote")
	}
	if d.Notifier == nil {
		d.Notifier = LogNotifier{}
	}
	cfg = cfg.withDefaults()
	agg := NewAggregator(d.Remote, d.Personas, d.Parents, cfg)
	cache := NewCache(agg, d.Notifier, cfg)
	return &Service{
		Cache:  cache,
		Engine: NewEngine(cache, d.Remote, d.Personas, d.Parents, d.Notifier),
		agg:    agg,
	}
}

// Aggregator exposes the loader behind the cache
func (s *Service) Aggregator() *Aggregator { return s.agg }
