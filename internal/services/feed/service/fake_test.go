package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"dayonme/internal/adapters/upstream"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/kv"
	"dayonme/internal/platform/testkit"
	ptime "dayonme/internal/platform/time"
	"dayonme/internal/services/feed/domain"
	"dayonme/internal/services/feed/repo"
	personarepo "dayonme/internal/services/persona/repo"
	personasvc "dayonme/internal/services/persona/service"
)

var (
	base = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	user = domain.Auth{UserID: "42", Token: "tok"}
)

func at(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func upPost(id int64, when time.Time) upstream.Post {
	return upstream.Post{
		PostID:    id,
		Content:   fmt.Sprintf("post %d", id),
		CreatedAt: ptime.Flex(when),
		User:      &upstream.User{UserID: 100 + id, Nickname: fmt.Sprintf("user%d", id)},
	}
}

// fakeRemote records every call; hooks left nil answer with success and no data
type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	queries []upstream.PageQuery

	// gate, when set, holds write calls until opened
	gate *testkit.Gate

	listPosts      func(ctx context.Context, src upstream.Source, q upstream.PageQuery) (upstream.PostPage, error)
	listComments   func(src upstream.Source, postID int64) ([]upstream.Comment, error)
	listBookmarks  func() ([]upstream.Bookmark, error)
	toggleLike     func(src upstream.Source, postID int64) error
	toggleBookmark func(postType string, postID int64) (bool, bool, error)
	bookmarkStatus func(postType string, postID int64) (bool, error)
	deletePost     func(src upstream.Source, postID int64) error
	createComment  func(src upstream.Source, postID int64, in upstream.CommentInput) (upstream.Comment, bool, error)
	createPost     func(in upstream.PostInput) (upstream.Post, error)
}

// newFake serves general and daily as page 1 and empty pages after it
func newFake(general, daily []upstream.Post) *fakeRemote {
	f := &fakeRemote{}
	f.listPosts = func(_ context.Context, src upstream.Source, q upstream.PageQuery) (upstream.PostPage, error) {
		if q.Page > 1 {
			return upstream.PostPage{}, nil
		}
		if src == upstream.SourceDaily {
			return upstream.PostPage{Posts: daily}, nil
		}
		return upstream.PostPage{Posts: general}, nil
	}
	return f
}

func (f *fakeRemote) record(format string, a ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, a...))
	f.mu.Unlock()
}

// count returns how many calls start with prefix
// End a verb with a space to tell "bookmark " writes from "bookmarks" reads
func (f *fakeRemote) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeRemote) callsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) hold(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	return f.gate.Wait(ctx)
}

func (f *fakeRemote) ListPosts(ctx context.Context, src upstream.Source, q upstream.PageQuery) (upstream.PostPage, error) {
	f.record("list %s %d", src, q.Page)
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.listPosts(ctx, src, q)
}

func (f *fakeRemote) ListComments(_ context.Context, src upstream.Source, postID int64) ([]upstream.Comment, error) {
	f.record("comments %s %d", src, postID)
	if f.listComments == nil {
		return nil, nil
	}
	return f.listComments(src, postID)
}

func (f *fakeRemote) ListBookmarks(context.Context) ([]upstream.Bookmark, error) {
	f.record("bookmarks")
	if f.listBookmarks == nil {
		return nil, nil
	}
	return f.listBookmarks()
}

func (f *fakeRemote) ToggleLike(ctx context.Context, src upstream.Source, postID int64) error {
	f.record("like %s %d", src, postID)
	if err := f.hold(ctx); err != nil {
		return err
	}
	if f.toggleLike == nil {
		return nil
	}
	return f.toggleLike(src, postID)
}

func (f *fakeRemote) ToggleBookmark(ctx context.Context, postType string, postID int64) (bool, bool, error) {
	f.record("bookmark %s %d", postType, postID)
	if err := f.hold(ctx); err != nil {
		return false, false, err
	}
	if f.toggleBookmark == nil {
		return false, false, nil
	}
	return f.toggleBookmark(postType, postID)
}

func (f *fakeRemote) BookmarkStatus(_ context.Context, postType string, postID int64) (bool, error) {
	f.record("status %s %d", postType, postID)
	if f.bookmarkStatus == nil {
		return false, perr.FromStatus(404, "no status endpoint")
	}
	return f.bookmarkStatus(postType, postID)
}

func (f *fakeRemote) DeletePost(ctx context.Context, src upstream.Source, postID int64) error {
	f.record("delete %s %d", src, postID)
	if err := f.hold(ctx); err != nil {
		return err
	}
	if f.deletePost == nil {
		return nil
	}
	return f.deletePost(src, postID)
}

func (f *fakeRemote) CreateComment(ctx context.Context, src upstream.Source, postID int64, in upstream.CommentInput) (upstream.Comment, bool, error) {
	f.record("comment %s %d", src, postID)
	if err := f.hold(ctx); err != nil {
		return upstream.Comment{}, false, err
	}
	if f.createComment == nil {
		return upstream.Comment{}, false, nil
	}
	return f.createComment(src, postID, in)
}

func (f *fakeRemote) CreatePost(ctx context.Context, in upstream.PostInput) (upstream.Post, error) {
	f.record("create")
	if err := f.hold(ctx); err != nil {
		return upstream.Post{}, err
	}
	if f.createPost == nil {
		return upstream.Post{}, nil
	}
	return f.createPost(in)
}

// notices collects everything the feed reported
type notices struct {
	mu   sync.Mutex
	list []domain.Notice
}

func (n *notices) Notify(_ context.Context, x domain.Notice) {
	n.mu.Lock()
	n.list = append(n.list, x)
	n.mu.Unlock()
}

func (n *notices) of(kind domain.NoticeKind) []domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notice
	for _, x := range n.list {
		if x.Kind == kind {
			out = append(out, x)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	remote   *fakeRemote
	notes    *notices
	personas *personasvc.Allocator
	parents  *repo.Parents
}

func newFixture(t *testing.T, r *fakeRemote, tweak ...func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	for _, fn := range tweak {
		fn(&cfg)
	}
	fx := &fixture{
		remote:   r,
		notes:    &notices{},
		personas: personasvc.New(personarepo.NewKV(kv.NewMemory(), nil), personasvc.Config{}),
		parents:  repo.NewParents(kv.NewMemory(), nil),
	}
	fx.svc = New(Deps{Remote: r, Personas: fx.personas, Parents: fx.parents, Notifier: fx.notes}, cfg)
	t.Cleanup(fx.svc.Close)
	return fx
}

// load brings page 1 into the cache for auth
func (fx *fixture) load(t *testing.T, auth domain.Auth) domain.Snapshot {
	t.Helper()
	snap, err := fx.svc.Refetch(context.Background(), auth)
	if err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	return snap
}

func (fx *fixture) post(t *testing.T, auth domain.Auth, id int64) domain.PostRecord {
	t.Helper()
	e, ok := fx.svc.Get(auth.Fingerprint())
	if !ok {
		t.Fatalf("no cache entry for %s", auth.Fingerprint())
	}
	i := domain.IndexOf(e.Posts, id)
	if i < 0 {
		t.Fatalf("post %d not in feed", id)
	}
	return e.Posts[i]
}

func ids(posts []domain.PostRecord) []int64 {
	out := make([]int64, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.PostID)
	}
	return out
}
