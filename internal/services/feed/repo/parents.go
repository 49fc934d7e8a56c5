// Package repo keeps the comment parent map in the durable key value store
package repo

import (
	"context"
	"sync"

	"dayonme/internal/platform/kv"
	"dayonme/internal/platform/logger"
)

// Parents is the comment id to parent id map stored under kv.KeyCommentParents
// It is loaded once and written through on every Record
type Parents struct {
	store kv.Store
	codec kv.Codec

	mu     sync.Mutex
	loaded bool
	m      map[int64]int64
}

// NewParents returns a Parents bound to s; a nil codec means JSON
func NewParents(s kv.Store, c kv.Codec) *Parents {
	if s == nil {
		panic("feed.Parents requires a non nil kv.Store")
	}
	if c == nil {
		c = kv.JSON{}
	}
	return &Parents{store: s, codec: c}
}

// Lookup returns the recorded parent of commentID
func (p *Parents) Lookup(ctx context.Context, commentID int64) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure(ctx)
	id, ok := p.m[commentID]
	return id, ok
}

// Record remembers parentID for commentID and persists the map
// the entry is kept in memory even when the write fails
func (p *Parents) Record(ctx context.Context, commentID, parentID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure(ctx)
	if cur, ok := p.m[commentID]; ok && cur == parentID {
		return nil
	}
	p.m[commentID] = parentID
	return kv.Save(ctx, p.store, p.codec, kv.KeyCommentParents, p.m)
}

// Len reports how many parents are known
func (p *Parents) Len(ctx context.Context) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensure(ctx)
	return len(p.m)
}

// ensure loads the map once; an unreadable value starts an empty map
func (p *Parents) ensure(ctx context.Context) {
	if p.loaded {
		return
	}
	m, _, err := kv.Load[map[int64]int64](ctx, p.store, p.codec, kv.KeyCommentParents)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("component", "feed").Msg("comment parent map unreadable; starting empty")
	}
	if m == nil {
		m = map[int64]int64{}
	}
	p.m = m
	p.loaded = true
}
