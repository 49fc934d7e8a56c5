package service

import (
	"context"
	"slices"

	"dayonme/internal/adapters/upstream"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	pnet "dayonme/internal/platform/net"
	"dayonme/internal/services/feed/domain"
	personadom "dayonme/internal/services/persona/domain"

	"golang.org/x/sync/errgroup"
)

// Aggregator merges the general and daily post services and the bookmark list into one page
type Aggregator struct {
	remote   Remote
	personas domain.Personas
	parents  domain.ParentStore
	cfg      Config
}

// NewAggregator returns an Aggregator; personas and parents may be nil
func NewAggregator(r Remote, personas domain.Personas, parents domain.ParentStore, cfg Config) *Aggregator {
	if r == nil {
		panic("feed.Aggregator requires a non nil Remote")
	}
	return &Aggregator{remote: r, personas: personas, parents: parents, cfg: cfg.withDefaults()}
}

// Load fetches one page from every source and merges it
// Only a failure of the general source is returned; everything else degrades to empty
func (a *Aggregator) Load(ctx context.Context, auth domain.Auth, p domain.Pagination) (domain.Result, error) {
	ctx = pnet.WithAuth(ctx, auth.UserID, auth.Token)
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = a.cfg.PageSize
	}
	q := upstream.PageQuery{Page: p.Page, Limit: p.Limit, SortBy: a.cfg.SortBy, CacheBust: p.CacheBust}
	log := logger.C(ctx).With().Str("component", "feed").Int("page", p.Page).Logger()

	var (
		general upstream.PostPage
		daily   upstream.PostPage
		dailyOK bool
		marks   domain.BookmarkSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pg, err := a.remote.ListPosts(gctx, upstream.SourceGeneral, q)
		if err != nil {
			return perr.WithOp(err, "feed.load.general")
		}
		general = pg
		return nil
	})
	g.Go(func() error {
		pg, err := a.remote.ListPosts(gctx, upstream.SourceDaily, q)
		if err != nil {
			log.Warn().Err(err).Msg("daily posts unavailable; continuing without them")
			return nil
		}
		daily, dailyOK = pg, true
		return nil
	})
	if auth.Authenticated() && p.Page == 1 {
		g.Go(func() error {
			marks = a.bookmarks(gctx, &log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("feed load failed")
		return domain.Result{}, err
	}

	posts := merge(general.Posts, daily.Posts)
	a.decorate(ctx, posts)

	res := domain.Result{Posts: posts, BookmarkIDs: marks, HasMore: hasMore(general, p.Limit)}
	if dailyOK && hasMore(daily, p.Limit) {
		res.HasMore = true
	}
	log.Debug().Int("general", len(general.Posts)).Int("daily", len(daily.Posts)).Int("merged", len(posts)).
		Bool("has_more", res.HasMore).Msg("feed page aggregated")
	return res, nil
}

// merge drops daily posts already present in general, then sorts newest first
// the sort is stable so equal timestamps keep general before daily and server order within each
func merge(general, daily []upstream.Post) []domain.PostRecord {
	out := make([]domain.PostRecord, 0, len(general)+len(daily))
	seen := make(map[int64]struct{}, len(general)+len(daily))
	add := func(src domain.Source, in []upstream.Post) {
		for _, up := range in {
			id := up.Key()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, toPost(up, src))
		}
	}
	add(domain.SourceGeneral, general)
	add(domain.SourceDaily, daily)
	slices.SortStableFunc(out, func(x, y domain.PostRecord) int { return y.CreatedAt.Compare(x.CreatedAt) })
	return out
}

func hasMore(pg upstream.PostPage, limit int) bool {
	if pg.HasMore != nil {
		return *pg.HasMore
	}
	return len(pg.Posts)+pg.Dropped >= limit
}

func (a *Aggregator) bookmarks(ctx context.Context, log *logger.Logger) domain.BookmarkSet {
	set := domain.BookmarkSet{}
	list, err := a.remote.ListBookmarks(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("bookmarks unavailable; continuing without them")
		return set
	}
	for _, b := range list {
		if id, ok := b.Live(); ok {
			set[id] = struct{}{}
		}
	}
	return set
}

// decorate resolves author personas and comment threads with bounded concurrency
// each worker owns one element of posts
func (a *Aggregator) decorate(ctx context.Context, posts []domain.PostRecord) {
	g := new(errgroup.Group)
	g.SetLimit(a.cfg.CommentWorkers)
	for i := range posts {
		p := &posts[i]
		g.Go(func() error {
			if p.IsAnonymous {
				p.AnonymousUser = a.persona(ctx, p.PostID, p.UserID)
			}
			if a.cfg.ResolveComments {
				p.Comments = a.comments(ctx, p)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// comments never fails; an unreachable comment list leaves the post with none
func (a *Aggregator) comments(ctx context.Context, p *domain.PostRecord) []domain.CommentRecord {
	list, err := a.remote.ListComments(ctx, upstream.Source(p.Source), p.PostID)
	if err != nil {
		logger.C(ctx).Warn().Str("component", "feed").Int64("post_id", p.PostID).Err(err).Msg("comments unavailable")
		return []domain.CommentRecord{}
	}
	flat := make([]domain.CommentRecord, 0, len(list))
	for _, c := range list {
		rec := toComment(c, p.PostID)
		if rec.ParentCommentID == nil && a.parents != nil {
			if pid, ok := a.parents.Lookup(ctx, rec.CommentID); ok {
				rec.ParentCommentID = &pid
			}
		}
		if rec.IsAnonymous {
			rec.AnonymousUser = a.persona(ctx, p.PostID, rec.UserID)
		}
		flat = append(flat, rec)
	}
	return Thread(flat)
}

// persona keys by user id alone so one author keeps one persona across a post
func (a *Aggregator) persona(ctx context.Context, postID, userID int64) *personadom.Assignment {
	if a.personas == nil {
		return nil
	}
	as, err := a.personas.GetOrCreate(ctx, postID, personadom.IdentityKey(personadom.ModeStable, userID, 0))
	if err != nil {
		logger.C(ctx).Debug().Str("component", "feed").Int64("post_id", postID).Err(err).Msg("persona not resolved")
		return nil
	}
	return &as
}
