// Package service contains the anonymous persona allocator
package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	"dayonme/internal/services/persona/domain"
	"dayonme/internal/services/persona/repo"
)

// Service defines the persona service contract
type Service interface{ domain.ServicePort }

const (
	maxSuffix = 99
	maxDraws  = 100
)

// Config carries the injectable parts of the allocator
type Config struct {
	Pool domain.Pool
	// Intn returns a uniform int in [0, n); defaults to math/rand/v2
	Intn func(n int) int
	Now  func() time.Time
}

// Allocator hands out personas that are unique per scope and persists every change
// One instance per process; it owns the in-memory copy of the table
type Allocator struct {
	repo repo.Repo
	pool domain.Pool
	intn func(int) int
	now  func() time.Time
	log  *logger.Logger

	mu     sync.Mutex
	loaded bool
	table  domain.Table
}

// New constructs an allocator over r
func New(r repo.Repo, cfg Config) *Allocator {
	if r == nil {
		panic("persona.Service requires a non nil Repo")
	}
	if len(cfg.Pool) == 0 {
		cfg.Pool = domain.DefaultPool
	}
	if cfg.Intn == nil {
		cfg.Intn = rand.IntN
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Allocator{
		repo: r,
		pool: cfg.Pool,
		intn: cfg.Intn,
		now:  cfg.Now,
		log:  logger.Named("persona"),
	}
}

// ensureLoaded reads the table once; failures leave an empty table and are only logged
// caller holds mu
func (a *Allocator) ensureLoaded(ctx context.Context) {
	if a.loaded {
		return
	}
	t, err := a.repo.Load(ctx)
	if err != nil {
		logger.C(ctx).Warn().Str("component", "persona").Err(err).Msg("persona table unreadable; starting empty")
		t = domain.Table{}
	}
	a.table = t
	a.loaded = true
}

// persist writes the table back; failures are logged and swallowed
// caller holds mu
func (a *Allocator) persist(ctx context.Context) {
	if err := a.repo.Save(ctx, a.table); err != nil {
		logger.C(ctx).Warn().Str("component", "persona").Err(err).Int("scopes", len(a.table)).Msg("persona table not saved")
	}
}

// GetOrCreate returns the assignment for (scopeID, identityKey), allocating one on first request
func (a *Allocator) GetOrCreate(ctx context.Context, scopeID int64, identityKey string) (domain.Assignment, error) {
	if err := validate(scopeID, identityKey); err != nil {
		return domain.Assignment{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureLoaded(ctx)

	scope := a.table[scopeID]
	if got, ok := scope[identityKey]; ok {
		return got, nil
	}
	if scope == nil {
		scope = map[string]domain.Assignment{}
		a.table[scopeID] = scope
	}

	used := make(map[string]bool, len(scope))
	for _, as := range scope {
		used[as.Nickname] = true
	}
	p, nick := a.pick(used)
	if used[nick] {
		a.log.Warn().Int64("scope_id", scopeID).Str("nickname", nick).Msg("persona names exhausted; accepting duplicate")
	}

	as := domain.Assignment{
		ScopeID:     scopeID,
		IdentityKey: identityKey,
		Nickname:    nick,
		Icon:        p.Icon,
		Color:       p.Color,
		AssignedAt:  a.now().UTC(),
	}
	scope[identityKey] = as
	a.persist(ctx)
	return as, nil
}

// pick draws a base persona and finds a free nickname for it
// each draw tries the base name then _01.._99; after maxDraws the first draw is reused as is
func (a *Allocator) pick(used map[string]bool) (domain.Persona, string) {
	var first domain.Persona
	for draw := range maxDraws {
		p := a.pool[a.intn(len(a.pool))]
		if draw == 0 {
			first = p
		}
		if !used[p.Name] {
			return p, p.Name
		}
		for n := 1; n <= maxSuffix; n++ {
			if name := fmt.Sprintf("%s_%02d", p.Name, n); !used[name] {
				return p, name
			}
		}
	}
	return first, first.Name
}

// GetOrCreateAnonymousUser uses the per-comment key when commentID is set and the stable key otherwise
func (a *Allocator) GetOrCreateAnonymousUser(ctx context.Context, scopeID, userID int64, commentID *int64) (domain.Assignment, error) {
	mode := domain.ModeStable
	if commentID != nil {
		mode = domain.ModePerInstance
	}
	return a.Resolve(ctx, scopeID, userID, mode, commentID)
}

// Resolve allocates under an explicit mode; per-instance mode needs a comment id
func (a *Allocator) Resolve(ctx context.Context, scopeID, userID int64, mode domain.Mode, commentID *int64) (domain.Assignment, error) {
	if mode == "" {
		mode = domain.ModeStable
	}
	if !mode.Valid() {
		return domain.Assignment{}, perr.WithField(perr.InvalidArgf("unknown persona mode %q", mode), "mode")
	}
	var cid int64
	if mode == domain.ModePerInstance {
		if commentID == nil {
			return domain.Assignment{}, perr.WithField(perr.InvalidArgf("per-instance persona needs a comment id"), "commentId")
		}
		cid = *commentID
	}
	if userID < 0 || cid < 0 {
		return domain.Assignment{}, perr.InvalidArgf("user and comment ids must be non-negative")
	}
	return a.GetOrCreate(ctx, scopeID, domain.IdentityKey(mode, userID, cid))
}

// GetAllForScope lists a scope's assignments, oldest first
func (a *Allocator) GetAllForScope(ctx context.Context, scopeID int64) ([]domain.Assignment, error) {
	if scopeID < 0 {
		return nil, perr.WithField(perr.InvalidArgf("scope id must be non-negative"), "scopeId")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureLoaded(ctx)

	out := make([]domain.Assignment, 0, len(a.table[scopeID]))
	for _, as := range a.table[scopeID] {
		out = append(out, as)
	}
	slices.SortFunc(out, func(x, y domain.Assignment) int {
		if c := x.AssignedAt.Compare(y.AssignedAt); c != 0 {
			return c
		}
		return strings.Compare(x.IdentityKey, y.IdentityKey)
	})
	return out, nil
}

// ClearScope drops every assignment of one scope
func (a *Allocator) ClearScope(ctx context.Context, scopeID int64) error {
	if scopeID < 0 {
		return perr.WithField(perr.InvalidArgf("scope id must be non-negative"), "scopeId")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureLoaded(ctx)

	if _, ok := a.table[scopeID]; !ok {
		return nil
	}
	delete(a.table, scopeID)
	a.persist(ctx)
	return nil
}

// ClearAll drops the whole table, in memory and in the store
func (a *Allocator) ClearAll(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table = domain.Table{}
	a.loaded = true
	if err := a.repo.Clear(ctx); err != nil {
		logger.C(ctx).Warn().Str("component", "persona").Err(err).Msg("persona table not cleared in store")
	}
	return nil
}

// validate checks a scope id and an identity key of the form "<userId>" or "<userId>_<commentId>"
func validate(scopeID int64, identityKey string) error {
	if scopeID < 0 {
		return perr.WithField(perr.InvalidArgf("scope id must be non-negative"), "scopeId")
	}
	user, comment, composite := strings.Cut(identityKey, "_")
	if !nonNegInt(user) || (composite && !nonNegInt(comment)) {
		return perr.WithField(perr.InvalidArgf("identity key %q is not <userId> or <userId>_<commentId>", identityKey), "identityKey")
	}
	return nil
}

func nonNegInt(s string) bool {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 63)
	return err == nil
}
