package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"dayonme/internal/adapters/upstream"
	perr "dayonme/internal/platform/errors"
	ptime "dayonme/internal/platform/time"
	"dayonme/internal/services/feed/domain"
)

func load(t *testing.T, r *fakeRemote, auth domain.Auth) domain.Result {
	t.Helper()
	fx := newFixture(t, r)
	res, err := fx.svc.Aggregator().Load(context.Background(), auth, domain.Pagination{Page: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return res
}

func TestLoad_GeneralWinsDuplicateIDs(t *testing.T) {
	g := upPost(5, at(1))
	g.Content = "from general"
	d := upPost(5, at(3))
	d.Content = "from daily"
	res := load(t, newFake([]upstream.Post{g}, []upstream.Post{d, upPost(6, at(0))}), domain.Auth{})

	if got := ids(res.Posts); !slices.Equal(got, []int64{5, 6}) {
		t.Fatalf("ids = %v", got)
	}
	p := res.Posts[0]
	if p.Source != domain.SourceGeneral || p.Content != "from general" {
		t.Fatalf("kept %+v", p)
	}
}

func TestLoad_SortsNewestFirstAndStable(t *testing.T) {
	cases := []struct {
		name    string
		general []upstream.Post
		daily   []upstream.Post
		want    []int64
	}{
		{"across sources", []upstream.Post{upPost(3, at(3)), upPost(1, at(1))}, []upstream.Post{upPost(2, at(2))}, []int64{3, 2, 1}},
		{"ties keep general first", []upstream.Post{upPost(10, at(1))}, []upstream.Post{upPost(20, at(1))}, []int64{10, 20}},
		{"ties keep server order", []upstream.Post{upPost(8, at(1)), upPost(7, at(1))}, nil, []int64{8, 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := load(t, newFake(tc.general, tc.daily), domain.Auth{})
			if got := ids(res.Posts); !slices.Equal(got, tc.want) {
				t.Fatalf("order = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLoad_PartialFailures(t *testing.T) {
	t.Run("daily down degrades to general only", func(t *testing.T) {
		r := newFake([]upstream.Post{upPost(1, at(1))}, nil)
		r.listPosts = func(_ context.Context, src upstream.Source, _ upstream.PageQuery) (upstream.PostPage, error) {
			if src == upstream.SourceDaily {
				return upstream.PostPage{}, perr.FromStatus(503, "down")
			}
			return upstream.PostPage{Posts: []upstream.Post{upPost(1, at(1))}}, nil
		}
		res := load(t, r, user)
		if len(res.Posts) != 1 {
			t.Fatalf("posts = %v", ids(res.Posts))
		}
	})

	t.Run("bookmarks down degrades to empty set", func(t *testing.T) {
		r := newFake([]upstream.Post{upPost(1, at(1))}, nil)
		r.listBookmarks = func() ([]upstream.Bookmark, error) { return nil, errors.New("boom") }
		res := load(t, r, user)
		if len(res.Posts) != 1 || len(res.BookmarkIDs) != 0 {
			t.Fatalf("res = %+v", res)
		}
	})

	t.Run("general down is terminal", func(t *testing.T) {
		r := newFake(nil, []upstream.Post{upPost(2, at(1))})
		r.listPosts = func(_ context.Context, src upstream.Source, _ upstream.PageQuery) (upstream.PostPage, error) {
			if src == upstream.SourceGeneral {
				return upstream.PostPage{}, perr.FromStatus(502, "bad gateway")
			}
			return upstream.PostPage{Posts: []upstream.Post{upPost(2, at(1))}}, nil
		}
		fx := newFixture(t, r)
		_, err := fx.svc.Aggregator().Load(context.Background(), user, domain.Pagination{})
		if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestLoad_BookmarkSet(t *testing.T) {
	r := newFake([]upstream.Post{upPost(1, at(1))}, nil)
	r.listBookmarks = func() ([]upstream.Bookmark, error) {
		return []upstream.Bookmark{
			{BookmarkID: 1, PostType: "post", PostID: 1, Post: json.RawMessage(`{"id":1}`)},
			{BookmarkID: 2, PostType: "post", PostID: 2, Post: json.RawMessage(`null`)},
			{BookmarkID: 3, PostType: "my_day", PostID: 3},
			{BookmarkID: 4, PostType: "my_day", PostID: 9, Post: json.RawMessage(`{"content":"no id"}`)},
		}, nil
	}

	res := load(t, r, user)
	if got := res.BookmarkIDs.IDs(); !slices.Equal(got, []int64{1, 3, 9}) {
		t.Fatalf("bookmarks = %v", got)
	}

	anon := newFake(nil, nil)
	load(t, anon, domain.Auth{})
	if n := anon.count("bookmarks"); n != 0 {
		t.Fatalf("anonymous load fetched bookmarks %d times", n)
	}
}

func TestLoad_DailyConversion(t *testing.T) {
	anon := upstream.Post{PostID: 1, IsAnonymous: true, UserID: 7, CreatedAt: ptime.Flex(at(4)),
		User: &upstream.User{UserID: 7, Nickname: "secret"}}
	named := upstream.Post{PostID: 2, CreatedAt: ptime.Flex(at(3)), User: &upstream.User{UserID: 8, Nickname: "하늘"},
		EmotionID: 3, EmotionName: "기쁨", EmotionIcon: "😊", EmotionColor: "#FFD93D"}
	unknown := upstream.Post{PostID: 3, CreatedAt: ptime.Flex(at(2))}
	tagged := upstream.Post{PostID: 4, AuthorName: "bob", CreatedAt: ptime.Flex(at(1)),
		Emotions: []upstream.Emotion{{EmotionID: 1, Name: "평온"}, {EmotionID: 2, Name: "설렘"}}}

	res := load(t, newFake(nil, []upstream.Post{anon, named, unknown, tagged}), domain.Auth{})
	byID := map[int64]domain.PostRecord{}
	for _, p := range res.Posts {
		byID[p.PostID] = p
	}

	if p := byID[1]; p.AuthorName != domain.AnonymousAuthor || p.Source != domain.SourceDaily || p.AnonymousUser == nil {
		t.Fatalf("anonymous = %+v", p)
	}
	if p := byID[2]; p.AuthorName != "하늘" || len(p.Emotions) != 1 || p.Emotions[0].Name != "기쁨" || p.UserID != 8 {
		t.Fatalf("named = %+v", p)
	}
	if p := byID[3]; p.AuthorName != domain.UnknownAuthor || p.Emotions == nil || len(p.Emotions) != 0 {
		t.Fatalf("unknown = %+v", p)
	}
	if p := byID[4]; p.AuthorName != "bob" || len(p.Emotions) != 2 {
		t.Fatalf("tagged = %+v", p)
	}
	if !byID[2].UpdatedAt.Equal(byID[2].CreatedAt) {
		t.Fatalf("updatedAt should default to createdAt")
	}
}

func TestLoad_CommentFailureKeepsPost(t *testing.T) {
	r := newFake([]upstream.Post{upPost(1, at(2)), upPost(2, at(1))}, nil)
	r.listComments = func(_ upstream.Source, id int64) ([]upstream.Comment, error) {
		if id == 1 {
			return nil, perr.FromStatus(500, "oops")
		}
		return []upstream.Comment{{CommentID: 9, Content: "hi"}}, nil
	}
	res := load(t, r, domain.Auth{})
	if len(res.Posts) != 2 {
		t.Fatalf("post dropped: %v", ids(res.Posts))
	}
	if c := res.Posts[0].Comments; c == nil || len(c) != 0 {
		t.Fatalf("failed post comments = %#v", c)
	}
	if c := res.Posts[1].Comments; len(c) != 1 || c[0].PostID != 2 {
		t.Fatalf("comments = %+v", c)
	}
}

func TestLoad_AnonymousCommentsShareOnePersonaPerUser(t *testing.T) {
	r := newFake([]upstream.Post{upPost(3, at(1))}, nil)
	r.listComments = func(upstream.Source, int64) ([]upstream.Comment, error) {
		return []upstream.Comment{
			{CommentID: 1, UserID: 10, IsAnonymous: true, Content: "a"},
			{CommentID: 2, UserID: 11, IsAnonymous: true, Content: "b"},
			{CommentID: 3, UserID: 10, IsAnonymous: true, Content: "c"},
			{CommentID: 4, UserID: 12, Content: "d", User: &upstream.User{UserID: 12, Nickname: "visible"}},
		}, nil
	}
	fx := newFixture(t, r)
	res, err := fx.svc.Aggregator().Load(context.Background(), domain.Auth{}, domain.Pagination{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cs := res.Posts[0].Comments
	if cs[0].AnonymousUser == nil || cs[2].AnonymousUser == nil || cs[1].AnonymousUser == nil {
		t.Fatalf("anonymous comments without persona: %+v", cs)
	}
	if cs[0].AnonymousUser.Nickname != cs[2].AnonymousUser.Nickname {
		t.Fatalf("same user got two personas")
	}
	if cs[0].AnonymousUser.Nickname == cs[1].AnonymousUser.Nickname {
		t.Fatalf("two users share a nickname in one post")
	}
	if cs[3].AnonymousUser != nil || cs[3].AuthorName != "visible" {
		t.Fatalf("named comment = %+v", cs[3])
	}
	all, _ := fx.personas.GetAllForScope(context.Background(), 3)
	if len(all) != 2 || all[0].IdentityKey != "10" {
		t.Fatalf("scope 3 assignments = %+v", all)
	}
}

func TestLoad_ThreadsRepliesWithParentMap(t *testing.T) {
	parent := int64(1)
	r := newFake([]upstream.Post{upPost(3, at(1))}, nil)
	r.listComments = func(upstream.Source, int64) ([]upstream.Comment, error) {
		return []upstream.Comment{
			{CommentID: 1, Content: "root"},
			{CommentID: 2, Content: "server knows", ParentCommentID: &parent},
			{CommentID: 3, Content: "server forgot"},
		}, nil
	}
	fx := newFixture(t, r)
	if err := fx.parents.Record(context.Background(), 3, 1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	res, err := fx.svc.Aggregator().Load(context.Background(), domain.Auth{}, domain.Pagination{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cs := res.Posts[0].Comments
	if len(cs) != 1 || len(cs[0].Replies) != 2 {
		t.Fatalf("thread = %+v", cs)
	}
	if r := cs[0].Replies[1]; r.CommentID != 3 || r.ParentCommentID == nil || *r.ParentCommentID != 1 {
		t.Fatalf("mapped reply = %+v", r)
	}
}

func TestLoad_HasMore(t *testing.T) {
	yes, no := true, false
	full := []upstream.Post{upPost(1, at(2)), upPost(2, at(1))}
	cases := []struct {
		name    string
		general upstream.PostPage
		daily   upstream.PostPage
		want    bool
	}{
		{"full general page", upstream.PostPage{Posts: full}, upstream.PostPage{}, true},
		{"short pages", upstream.PostPage{Posts: full[:1]}, upstream.PostPage{}, false},
		{"explicit no beats full page", upstream.PostPage{Posts: full, HasMore: &no}, upstream.PostPage{}, false},
		{"daily says more", upstream.PostPage{Posts: full[:1]}, upstream.PostPage{HasMore: &yes}, true},
		{"dropped items count toward the page", upstream.PostPage{Posts: full[:1], Dropped: 1}, upstream.PostPage{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRemote{listPosts: func(_ context.Context, src upstream.Source, _ upstream.PageQuery) (upstream.PostPage, error) {
				if src == upstream.SourceDaily {
					return tc.daily, nil
				}
				return tc.general, nil
			}}
			fx := newFixture(t, r)
			res, err := fx.svc.Aggregator().Load(context.Background(), domain.Auth{}, domain.Pagination{Limit: 2})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if res.HasMore != tc.want {
				t.Fatalf("HasMore = %v, want %v", res.HasMore, tc.want)
			}
		})
	}
}

func TestLoad_SendsPagingToBothSources(t *testing.T) {
	r := newFake(nil, nil)
	fx := newFixture(t, r, func(c *Config) { c.SortBy = "popular" })
	_, err := fx.svc.Aggregator().Load(context.Background(), domain.Auth{}, domain.Pagination{Page: 3, Limit: 7, CacheBust: "123"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.queries) != 2 {
		t.Fatalf("queries = %+v", r.queries)
	}
	for _, q := range r.queries {
		if q.Page != 3 || q.Limit != 7 || q.SortBy != "popular" || q.CacheBust != "123" {
			t.Fatalf("query = %+v", q)
		}
	}
}
