package service

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dayonme/internal/adapters/upstream"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	pnet "dayonme/internal/platform/net"
	"dayonme/internal/platform/net/http/bind"
	pstrings "dayonme/internal/platform/strings"
	"dayonme/internal/services/feed/domain"
	personadom "dayonme/internal/services/persona/domain"
)

type flightKey struct {
	fp     domain.Fingerprint
	kind   string
	postID int64
}

// flight is the one server slot of a key; refs counts holders and waiters
type flight struct {
	sem  chan struct{}
	refs int
}

// Engine applies user actions to the cache before the server confirms them
// and undoes them exactly when it refuses
type Engine struct {
	cache    *Cache
	remote   Remote
	personas domain.Personas
	parents  domain.ParentStore
	notifier domain.Notifier
	now      func() time.Time
	nonce    func() string

	// temp hands out negative ids for provisional posts and synthesized comments
	temp atomic.Int64

	mu       sync.Mutex
	inflight map[flightKey]*flight
}

// NewEngine returns an Engine writing into cache; personas and parents may be nil
func NewEngine(cache *Cache, r Remote, personas domain.Personas, parents domain.ParentStore, n domain.Notifier) *Engine {
	if cache == nil || r == nil {
		panic("feed.Engine requires a Cache and a Remote")
	}
	if n == nil {
		n = LogNotifier{}
	}
	return &Engine{
		cache:    cache,
		remote:   r,
		personas: personas,
		parents:  parents,
		notifier: n,
		now:      time.Now,
		nonce:    uuid.NewString,
		inflight: map[flightKey]*flight{},
	}
}

func (e *Engine) join(k flightKey) *flight {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.inflight[k]
	if f == nil {
		f = &flight{sem: make(chan struct{}, 1)}
		e.inflight[k] = f
	}
	f.refs++
	return f
}

func (e *Engine) leave(k flightKey, f *flight) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f.refs--; f.refs == 0 && e.inflight[k] == f {
		delete(e.inflight, k)
	}
}

// acquire admits one mutation of kind per post and fingerprint; a second one is refused
func (e *Engine) acquire(fp domain.Fingerprint, kind string, postID int64) (func(), error) {
	k := flightKey{fp: fp, kind: kind, postID: postID}
	f := e.join(k)
	select {
	case f.sem <- struct{}{}:
		return func() { <-f.sem; e.leave(k, f) }, nil
	default:
		e.leave(k, f)
		return nil, perr.Conflictf("%s already in progress for post %d", kind, postID)
	}
}

// queue waits for the key's server slot so toggles reach the server one at a time, in turn
func (e *Engine) queue(ctx context.Context, k flightKey) (func(), error) {
	f := e.join(k)
	select {
	case f.sem <- struct{}{}:
		return func() { <-f.sem; e.leave(k, f) }, nil
	case <-ctx.Done():
		e.leave(k, f)
		return nil, perr.FromTransport(ctx.Err(), "feed "+k.kind+" queued")
	}
}

// waiting counts the toggles of k queued behind the current holder
func (e *Engine) waiting(k flightKey) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f := e.inflight[k]; f != nil {
		return f.refs - 1
	}
	return 0
}

func (e *Engine) tempID() int64 { return e.temp.Add(-1) }

func (e *Engine) notify(ctx context.Context, kind domain.NoticeKind, op string, fp domain.Fingerprint, postID int64, msg string, err error) {
	e.notifier.Notify(ctx, domain.Notice{Kind: kind, Op: op, Fingerprint: fp, PostID: postID, Message: msg, Err: err})
}

// sourceOf returns the source of a cached post
func (e *Engine) sourceOf(fp domain.Fingerprint, postID int64) (domain.Source, bool) {
	var src domain.Source
	ok := e.cache.edit(fp, func(s *slot) bool {
		i := domain.IndexOf(s.Posts, postID)
		if i < 0 {
			return false
		}
		src = s.Posts[i].Source
		return true
	})
	return src, ok
}

func notInFeed(postID int64) error {
	return perr.NotFoundf("post %d is not in the feed", postID)
}

// Like toggles the caller's like and adjusts the count by one
// Rapid toggles apply at once and queue their server calls per post; an undo is
// one more local toggle, so the cache ends where the server does whichever calls fail
func (e *Engine) Like(ctx context.Context, auth domain.Auth, postID int64) (domain.LikeResult, error) {
	ctx = pnet.WithAuth(ctx, auth.UserID, auth.Token)
	fp := auth.Fingerprint()

	var (
		src domain.Source
		ver uint64
		out domain.LikeResult
	)
	applied := e.cache.edit(fp, func(s *slot) bool {
		i := domain.IndexOf(s.Posts, postID)
		if i < 0 {
			return false
		}
		p := &s.Posts[i]
		src, ver = p.Source, s.version
		flipLike(p)
		out = domain.LikeResult{PostID: postID, IsLiked: p.IsLiked, LikeCount: p.LikeCount}
		return true
	})
	if !applied {
		return domain.LikeResult{}, notInFeed(postID)
	}

	release, err := e.queue(ctx, flightKey{fp: fp, kind: "like", postID: postID})
	if err == nil {
		defer release()
		err = withCandidates(src, func(s upstream.Source) error { return e.remote.ToggleLike(ctx, s, postID) })
	}
	if err != nil {
		e.cache.edit(fp, func(s *slot) bool {
			i := domain.IndexOf(s.Posts, postID)
			// a replaced feed already holds server truth
			if i < 0 || s.version != ver {
				return false
			}
			flipLike(&s.Posts[i])
			return true
		})
		e.notify(ctx, domain.NoticeRollback, "like", fp, postID, msgLikeFailed, err)
		return domain.LikeResult{}, err
	}

	e.cache.edit(fp, func(s *slot) bool {
		if i := domain.IndexOf(s.Posts, postID); i >= 0 {
			out.IsLiked, out.LikeCount = s.Posts[i].IsLiked, s.Posts[i].LikeCount
		}
		return true
	})
	return out, nil
}

func flipLike(p *domain.PostRecord) {
	if p.IsLiked {
		p.LikeCount--
	} else {
		p.LikeCount++
	}
	p.IsLiked = !p.IsLiked
}

// ToggleBookmark flips membership of postID in the bookmark set
// Toggles queue like likes; the server's answer wins when it disagrees with the guess
// and no later toggle of the same post is still waiting
func (e *Engine) ToggleBookmark(ctx context.Context, auth domain.Auth, postID int64) (domain.BookmarkResult, error) {
	if !auth.Authenticated() {
		return domain.BookmarkResult{}, perr.Unauthorizedf("sign in to bookmark posts")
	}
	ctx = pnet.WithAuth(ctx, auth.UserID, auth.Token)
	fp := auth.Fingerprint()
	key := flightKey{fp: fp, kind: "bookmark", postID: postID}

	var (
		src   domain.Source
		ver   uint64
		guess bool
	)
	applied := e.cache.edit(fp, func(s *slot) bool {
		i := domain.IndexOf(s.Posts, postID)
		if i < 0 {
			return false
		}
		src, ver = s.Posts[i].Source, s.version
		guess = !s.BookmarkIDs.Has(postID)
		setMember(s, postID, guess)
		return true
	})
	if !applied {
		return domain.BookmarkResult{}, notInFeed(postID)
	}

	var (
		got, known bool
		postType   string
	)
	release, err := e.queue(ctx, key)
	if err == nil {
		defer release()
		err = withCandidates(src, func(s upstream.Source) error {
			var err error
			postType = s.PostType()
			got, known, err = e.remote.ToggleBookmark(ctx, postType, postID)
			return err
		})
	}
	if err != nil {
		e.cache.edit(fp, func(s *slot) bool {
			if s.version != ver {
				return false
			}
			setMember(s, postID, !s.BookmarkIDs.Has(postID))
			return true
		})
		e.notify(ctx, domain.NoticeRollback, "bookmark", fp, postID, msgBookmarkFailed, err)
		return domain.BookmarkResult{}, err
	}

	if e.waiting(key) > 0 {
		// a queued toggle will flip it again; its own answer settles the state
		return domain.BookmarkResult{PostID: postID, Bookmarked: guess}, nil
	}
	final := guess
	if !known {
		// the toggle answer was silent; ask once, keep the guess if that fails too
		if got, err = e.remote.BookmarkStatus(ctx, postType, postID); err == nil {
			known = true
		} else {
			logger.C(ctx).Debug().Str("component", "feed").Int64("post_id", postID).Err(err).Msg("bookmark status unavailable; keeping local state")
		}
	}
	if known && got != final {
		logger.C(ctx).Info().Str("component", "feed").Int64("post_id", postID).Bool("server", got).Msg("bookmark reconciled to server state")
		final = got
		e.cache.edit(fp, func(s *slot) bool {
			setMember(s, postID, final)
			return true
		})
	}
	return domain.BookmarkResult{PostID: postID, Bookmarked: final}, nil
}

func setMember(s *slot, postID int64, on bool) {
	if s.BookmarkIDs == nil {
		s.BookmarkIDs = domain.BookmarkSet{}
	}
	if on {
		s.BookmarkIDs[postID] = struct{}{}
		return
	}
	delete(s.BookmarkIDs, postID)
}

// DeletePost removes the post only after the server confirmed the delete
func (e *Engine) DeletePost(ctx context.Context, auth domain.Auth, postID int64) error {
	ctx = pnet.WithAuth(ctx, auth.UserID, auth.Token)
	fp := auth.Fingerprint()
	release, err := e.acquire(fp, "delete", postID)
	if err != nil {
		return err
	}
	defer release()

	src, ok := e.sourceOf(fp, postID)
	if !ok {
		return notInFeed(postID)
	}
	if err := withCandidates(src, func(s upstream.Source) error { return e.remote.DeletePost(ctx, s, postID) }); err != nil {
		e.notify(ctx, domain.NoticeFailed, "delete", fp, postID, msgDeleteFailed, err)
		return err
	}
	e.cache.edit(fp, func(s *slot) bool {
		s.Posts = slices.DeleteFunc(s.Posts, func(p domain.PostRecord) bool { return p.PostID == postID })
		delete(s.BookmarkIDs, postID)
		return true
	})
	return nil
}

// AddComment posts a comment and appends whatever the server confirmed
// An answer without a usable comment still counts as success; the comment is built locally
// and the result carries a notice asking for a refresh
func (e *Engine) AddComment(ctx context.Context, auth domain.Auth, postID int64, in domain.CommentInput) (domain.CommentResult, error) {
	in.Content = pstrings.NormalizeContent(in.Content)
	if err := bind.Validate(in); err != nil {
		return domain.CommentResult{}, err
	}
	if !auth.Authenticated() {
		return domain.CommentResult{}, perr.Unauthorizedf("sign in to comment")
	}
	ctx = pnet.WithAuth(ctx, auth.UserID, auth.Token)
	fp := auth.Fingerprint()
	src, ok := e.sourceOf(fp, postID)
	if !ok {
		return domain.CommentResult{}, notInFeed(postID)
	}

	body := upstream.CommentInput{Content: in.Content, IsAnonymous: in.IsAnonymous, ParentCommentID: in.ParentCommentID}
	var (
		got    upstream.Comment
		usable bool
	)
	err := withCandidates(src, func(s upstream.Source) error {
		var err error
		got, usable, err = e.remote.CreateComment(ctx, s, postID, body)
		return err
	})
	if err != nil {
		e.notify(ctx, domain.NoticeFailed, "comment", fp, postID, msgCommentFailed, err)
		return domain.CommentResult{}, err
	}

	rec := e.commentRecord(auth, postID, in, got, usable)
	if rec.IsAnonymous && e.personas != nil {
		if as, err := e.personas.GetOrCreate(ctx, postID, personadom.IdentityKey(personadom.ModeStable, rec.UserID, 0)); err == nil {
			rec.AnonymousUser = &as
		}
	}
	if !rec.Synthesized && rec.ParentCommentID != nil && e.parents != nil {
		if err := e.parents.Record(ctx, rec.CommentID, *rec.ParentCommentID); err != nil {
			logger.C(ctx).Warn().Str("component", "feed").Int64("comment_id", rec.CommentID).Err(err).Msg("comment parent not persisted")
		}
	}

	e.cache.edit(fp, func(s *slot) bool {
		i := domain.IndexOf(s.Posts, postID)
		if i < 0 {
			return false
		}
		p := &s.Posts[i]
		p.Comments = attach(p.Comments, rec)
		p.CommentCount++
		return true
	})

	res := domain.CommentResult{Comment: rec}
	if rec.Synthesized {
		res.Notice = msgCommentSynthetic
		e.notify(ctx, domain.NoticeDegraded, "comment", fp, postID, msgCommentSynthetic, nil)
		// the next read replaces the local stand-in with the server's comment
		e.cache.Invalidate(fp)
	}
	return res, nil
}

// commentRecord fills whatever the server left out from what was sent
func (e *Engine) commentRecord(auth domain.Auth, postID int64, in domain.CommentInput, got upstream.Comment, usable bool) domain.CommentRecord {
	uid, _ := strconv.ParseInt(auth.UserID, 10, 64)
	if !usable {
		rec := domain.CommentRecord{
			CommentID:       e.tempID(),
			PostID:          postID,
			UserID:          uid,
			Content:         in.Content,
			IsAnonymous:     in.IsAnonymous,
			CreatedAt:       e.now(),
			ParentCommentID: cloneID(in.ParentCommentID),
			Synthesized:     true,
		}
		rec.AuthorName = authorName(rec.IsAnonymous, "", nil)
		return rec
	}

	rec := toComment(got, postID)
	rec.PostID = postID
	rec.IsAnonymous = rec.IsAnonymous || in.IsAnonymous
	if rec.Content == "" {
		rec.Content = in.Content
	}
	if rec.UserID == 0 {
		rec.UserID = uid
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = e.now()
	}
	if rec.ParentCommentID == nil {
		rec.ParentCommentID = cloneID(in.ParentCommentID)
	}
	rec.AuthorName = authorName(rec.IsAnonymous, "", got.User)
	return rec
}

// CreatePost prepends a provisional post, creates it upstream and schedules a refetch
// that replaces the provisional record with the server's
func (e *Engine) CreatePost(ctx context.Context, auth domain.Auth, in domain.PostInput) (domain.PostRecord, error) {
	in.Content = pstrings.NormalizeContent(in.Content)
	if err := bind.Validate(in); err != nil {
		return domain.PostRecord{}, err
	}
	if !auth.Authenticated() {
		return domain.PostRecord{}, perr.Unauthorizedf("sign in to post")
	}
	ctx = pnet.WithAuth(ctx, auth.UserID, auth.Token)
	fp := auth.Fingerprint()
	uid, _ := strconv.ParseInt(auth.UserID, 10, 64)

	now := e.now()
	tmp := e.tempID()
	prov := domain.PostRecord{
		PostID:      tmp,
		Source:      domain.SourceGeneral,
		AuthorName:  authorName(in.IsAnonymous, "", nil),
		Content:     in.Content,
		Emotions:    make([]domain.Emotion, 0, len(in.EmotionIDs)),
		ImageURL:    in.ImageURL,
		Images:      in.Images,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsAnonymous: in.IsAnonymous,
		UserID:      uid,
		Comments:    []domain.CommentRecord{},
		Provisional: true,
	}
	for _, id := range in.EmotionIDs {
		prov.Emotions = append(prov.Emotions, domain.Emotion{EmotionID: id})
	}
	e.cache.edit(fp, func(s *slot) bool {
		s.Posts = slices.Insert(s.Posts, 0, prov)
		return true
	})

	got, err := e.remote.CreatePost(ctx, upstream.PostInput{
		Content:     in.Content,
		EmotionIDs:  in.EmotionIDs,
		IsAnonymous: in.IsAnonymous,
		ImageURL:    in.ImageURL,
		Images:      in.Images,
		ClientNonce: e.nonce(),
	})
	if err != nil {
		e.cache.edit(fp, func(s *slot) bool {
			s.Posts = slices.DeleteFunc(s.Posts, func(p domain.PostRecord) bool { return p.PostID == tmp })
			return true
		})
		e.notify(ctx, domain.NoticeRollback, "create_post", fp, tmp, msgPostFailed, err)
		return domain.PostRecord{}, err
	}

	final := prov
	if id := got.Key(); id != 0 {
		final.PostID = id
		if t := got.CreatedAt.Time(); !t.IsZero() {
			final.CreatedAt, final.UpdatedAt = t, t
		}
	}
	e.cache.edit(fp, func(s *slot) bool {
		i := domain.IndexOf(s.Posts, tmp)
		if i < 0 {
			return false
		}
		// a refetch may already have brought the real post in
		if final.PostID != tmp && domain.IndexOf(s.Posts, final.PostID) >= 0 {
			s.Posts = slices.Delete(s.Posts, i, i+1)
			return true
		}
		s.Posts[i] = final
		return true
	})

	bg := context.WithoutCancel(ctx)
	e.cache.recon.schedule(fp, func() {
		if _, err := e.cache.Refetch(bg, auth); err != nil {
			logger.C(bg).Warn().Str("component", "feed").Err(err).Msg("post reconciliation refetch failed")
		}
	})
	return final, nil
}
