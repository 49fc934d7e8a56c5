// Package repo persists the persona table through the durable key value store
package repo

import (
	"context"

	"dayonme/internal/platform/kv"
	"dayonme/internal/services/persona/domain"
)

// Repo loads and saves the whole persona table
type Repo interface {
	Load(ctx context.Context) (domain.Table, error)
	Save(ctx context.Context, t domain.Table) error
	Clear(ctx context.Context) error
}

// KV implements Repo over a kv.Store under kv.KeyPersonas
type KV struct {
	store kv.Store
	codec kv.Codec
}

// NewKV returns a Repo bound to s; a nil codec means JSON
func NewKV(s kv.Store, c kv.Codec) *KV {
	if s == nil {
		panic("persona.Repo requires a non nil kv.Store")
	}
	if c == nil {
		c = kv.JSON{}
	}
	return &KV{store: s, codec: c}
}

// Load returns the stored table; a missing key is an empty table
// a corrupt value comes back as an error so the caller can log it
func (r *KV) Load(ctx context.Context) (domain.Table, error) {
	t, ok, err := kv.Load[domain.Table](ctx, r.store, r.codec, kv.KeyPersonas)
	if err != nil {
		return domain.Table{}, err
	}
	if !ok || t == nil {
		return domain.Table{}, nil
	}
	return t, nil
}

// Save writes the full table
func (r *KV) Save(ctx context.Context, t domain.Table) error {
	return kv.Save(ctx, r.store, r.codec, kv.KeyPersonas, t)
}

// Clear removes the stored table
func (r *KV) Clear(ctx context.Context) error {
	return r.store.Remove(ctx, kv.KeyPersonas)
}
