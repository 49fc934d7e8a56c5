package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	ptime "dayonme/internal/platform/time"
	"dayonme/internal/services/feed/domain"

	"golang.org/x/sync/singleflight"
)

type loadOp uint8

const (
	opQuery loadOp = iota
	opRefresh
	opNext
)

func (o loadOp) String() string {
	switch o {
	case opRefresh:
		return "refresh"
	case opNext:
		return "next_page"
	default:
		return "query"
	}
}

// satisfies reports whether a finished load of kind ran answers a request of kind want
func (o loadOp) satisfies(want loadOp) bool {
	switch want {
	case opNext:
		return true
	case opQuery:
		return o != opNext
	default:
		return o == opRefresh
	}
}

// slot is one cached entry plus the bookkeeping the cache needs around it
type slot struct {
	domain.Entry
	loading bool
	// version changes whenever Posts or BookmarkIDs are replaced wholesale
	version uint64
}

// Cache holds the aggregated feed per fingerprint
type Cache struct {
	loader   domain.Loader
	notifier domain.Notifier
	cfg      Config
	now      func() time.Time

	sf    singleflight.Group
	recon *reconciler

	mu    sync.Mutex
	slots map[domain.Fingerprint]*slot
	// gens survive Reset so loads started before it can be recognised
	gens map[domain.Fingerprint]uint64
}

// NewCache returns an empty Cache fed by loader
func NewCache(loader domain.Loader, n domain.Notifier, cfg Config) *Cache {
	if loader == nil {
		panic("feed.Cache requires a non nil Loader")
	}
	if n == nil {
		n = LogNotifier{}
	}
	cfg = cfg.withDefaults()
	return &Cache{
		loader:   loader,
		notifier: n,
		cfg:      cfg,
		now:      time.Now,
		recon:    newReconciler(cfg.ReconcileDelay),
		slots:    map[domain.Fingerprint]*slot{},
		gens:     map[domain.Fingerprint]uint64{},
	}
}

// Get returns a copy of the entry for fp
func (c *Cache) Get(fp domain.Fingerprint) (domain.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[fp]
	if !ok {
		return domain.Entry{}, false
	}
	return s.Entry.Clone(), true
}

// Put replaces the entry for fp with page 1 of res
func (c *Cache) Put(fp domain.Fingerprint, res domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(c.slot(fp), res)
}

// Merge appends page of res to the entry for fp, skipping posts already cached
func (c *Cache) Merge(fp domain.Fingerprint, page int, res domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(c.slot(fp), page, res)
}

// Invalidate marks fp stale, drops results of loads already in flight and cancels reconciliation
// cached posts stay visible until the next load replaces them
func (c *Cache) Invalidate(fp domain.Fingerprint) {
	c.mu.Lock()
	c.gens[fp]++
	if s, ok := c.slots[fp]; ok {
		s.FetchedAt = time.Time{}
		s.loading = false
	}
	c.mu.Unlock()
	c.recon.cancel(fp)
}

// Reset forgets fp entirely, as after sign out
func (c *Cache) Reset(fp domain.Fingerprint) {
	c.mu.Lock()
	c.gens[fp]++
	delete(c.slots, fp)
	c.mu.Unlock()
	c.recon.cancel(fp)
}

// IsStale reports whether e must be refetched before it is served
func (c *Cache) IsStale(e domain.Entry, staleTime time.Duration) bool {
	return e.FetchedAt.IsZero() || c.now().Sub(e.FetchedAt) > staleTime
}

// Close cancels every pending reconciliation
func (c *Cache) Close() { c.recon.stopAll() }

// Query serves the cached feed while it is fresh and loads page 1 otherwise
func (c *Cache) Query(ctx context.Context, auth domain.Auth) (domain.Snapshot, error) {
	fp := auth.Fingerprint()
	c.mu.Lock()
	s, ok := c.slots[fp]
	fresh := ok && !c.IsStale(s.Entry, c.cfg.StaleTime)
	c.mu.Unlock()
	if fresh {
		return c.Snapshot(fp), nil
	}
	return c.run(ctx, auth, opQuery)
}

// Refetch loads page 1 regardless of staleness and replaces the entry
func (c *Cache) Refetch(ctx context.Context, auth domain.Auth) (domain.Snapshot, error) {
	return c.run(ctx, auth, opRefresh)
}

// FetchNextPage appends the next page; it is a no-op once the feed has no more pages
func (c *Cache) FetchNextPage(ctx context.Context, auth domain.Auth) (domain.Snapshot, error) {
	return c.run(ctx, auth, opNext)
}

// Snapshot is the UI view of fp
func (c *Cache) Snapshot(fp domain.Fingerprint) domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := domain.Snapshot{Posts: []domain.PostRecord{}, BookmarkIDs: []int64{}}
	s, ok := c.slots[fp]
	if !ok {
		return snap
	}
	if s.Posts != nil {
		snap.Posts = domain.ClonePosts(s.Posts)
	}
	snap.BookmarkIDs = s.BookmarkIDs.IDs()
	snap.IsLoading = s.loading
	snap.HasNextPage = s.HasMore
	if s.LastErr != nil {
		snap.IsError = true
		snap.Error = userMessage(s.LastErr)
	}
	snap.FetchedAt = ptime.Ptr(s.FetchedAt)
	return snap
}

// loadFlight is what a shared load reports to everyone waiting on it
type loadFlight struct {
	op        loadOp
	gen       uint64
	discarded bool
}

// run shares one network operation per fingerprint between concurrent callers
func (c *Cache) run(ctx context.Context, auth domain.Auth, op loadOp) (domain.Snapshot, error) {
	fp := auth.Fingerprint()
	for range 2 {
		want := c.generation(fp)
		v, err, _ := c.sf.Do(string(fp), func() (any, error) {
			gen, discarded, err := c.exec(ctx, auth, op)
			return loadFlight{op: op, gen: gen, discarded: discarded}, err
		})
		if err != nil {
			return c.Snapshot(fp), err
		}
		// joining a flight that an invalidation after it started made worthless means loading again
		f, _ := v.(loadFlight)
		if !(f.discarded && f.gen < want) && f.op.satisfies(op) {
			break
		}
	}
	return c.Snapshot(fp), nil
}

// exec performs one load; it runs detached from the caller so a shared flight survives one caller leaving
func (c *Cache) exec(ctx context.Context, auth domain.Auth, op loadOp) (gen uint64, discarded bool, err error) {
	fp := auth.Fingerprint()
	gen, page, ok := c.begin(fp, op)
	if !ok {
		return gen, false, nil
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.LoadTimeout)
	defer cancel()

	p := domain.Pagination{Page: page, Limit: c.cfg.PageSize}
	if op == opRefresh && c.cfg.CacheBust {
		p.CacheBust = strconv.FormatInt(c.now().UnixMilli(), 10)
	}
	res, err := c.loader.Load(lctx, auth, p)
	discarded, err = c.finish(ctx, fp, gen, op, page, res, err)
	return gen, discarded, err
}

func (c *Cache) generation(fp domain.Fingerprint) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[fp]
}

func (c *Cache) begin(fp domain.Fingerprint, op loadOp) (gen uint64, page int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, exists := c.slots[fp]
	page = 1
	switch op {
	case opNext:
		if !exists || !s.HasMore || s.Page < 1 {
			return c.gens[fp], 0, false
		}
		page = s.Page + 1
	case opQuery:
		// a flight that finished just before this one may have refreshed it
		if exists && !c.IsStale(s.Entry, c.cfg.StaleTime) {
			return c.gens[fp], 0, false
		}
	}
	c.slot(fp).loading = true
	return c.gens[fp], page, true
}

// finish applies a load result unless fp was invalidated or reset while it ran
func (c *Cache) finish(ctx context.Context, fp domain.Fingerprint, gen uint64, op loadOp, page int, res domain.Result, err error) (bool, error) {
	c.mu.Lock()
	if c.gens[fp] != gen {
		c.mu.Unlock()
		logger.C(ctx).Debug().Str("component", "feed").Str("op", op.String()).Msg("feed load discarded after invalidation")
		return true, nil
	}
	s := c.slot(fp)
	s.loading = false
	if err != nil {
		s.LastErr = err
		c.mu.Unlock()
		c.notifier.Notify(ctx, domain.Notice{
			Kind: domain.NoticeLoad, Op: op.String(), Fingerprint: fp, Err: err, Message: userMessage(err),
		})
		return false, err
	}
	if page == 1 {
		c.putLocked(s, res)
	} else {
		c.mergeLocked(s, page, res)
	}
	c.mu.Unlock()
	return false, nil
}

// slot returns the slot for fp, creating it; callers hold mu
func (c *Cache) slot(fp domain.Fingerprint) *slot {
	s, ok := c.slots[fp]
	if !ok {
		s = &slot{Entry: domain.Entry{Fingerprint: fp, BookmarkIDs: domain.BookmarkSet{}}}
		c.slots[fp] = s
	}
	return s
}

func (c *Cache) putLocked(s *slot, res domain.Result) {
	s.Posts = res.Posts
	if s.Posts == nil {
		s.Posts = []domain.PostRecord{}
	}
	s.BookmarkIDs = res.BookmarkIDs.Clone()
	s.Page = 1
	s.HasMore = res.HasMore
	s.FetchedAt = c.now()
	s.LastErr = nil
	s.version++
}

func (c *Cache) mergeLocked(s *slot, page int, res domain.Result) {
	have := make(map[int64]struct{}, len(s.Posts))
	for _, p := range s.Posts {
		have[p.PostID] = struct{}{}
	}
	for _, p := range res.Posts {
		if _, dup := have[p.PostID]; dup {
			continue
		}
		have[p.PostID] = struct{}{}
		s.Posts = append(s.Posts, p)
	}
	if s.BookmarkIDs == nil {
		s.BookmarkIDs = domain.BookmarkSet{}
	}
	for id := range res.BookmarkIDs {
		s.BookmarkIDs[id] = struct{}{}
	}
	s.Page = page
	s.HasMore = res.HasMore
	s.LastErr = nil
}

// edit runs fn on the slot of fp under the lock; it reports false when fp has nothing cached
func (c *Cache) edit(fp domain.Fingerprint, fn func(s *slot) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[fp]
	if !ok {
		return false
	}
	return fn(s)
}

// userMessage is the text shown for err; server messages pass through verbatim
func userMessage(err error) string {
	if e, ok := perr.As(err); ok && e.Message() != "" {
		return e.Message()
	}
	return err.Error()
}
