package service

import (
	"context"

	"dayonme/internal/adapters/upstream"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/services/feed/domain"
)

// Remote is the upstream surface the feed calls; *upstream.Client satisfies it
type Remote interface {
	ListPosts(ctx context.Context, src upstream.Source, q upstream.PageQuery) (upstream.PostPage, error)
	ListComments(ctx context.Context, src upstream.Source, postID int64) ([]upstream.Comment, error)
	ListBookmarks(ctx context.Context) ([]upstream.Bookmark, error)

	ToggleLike(ctx context.Context, src upstream.Source, postID int64) error
	ToggleBookmark(ctx context.Context, postType string, postID int64) (bookmarked, known bool, err error)
	BookmarkStatus(ctx context.Context, postType string, postID int64) (bool, error)
	DeletePost(ctx context.Context, src upstream.Source, postID int64) error
	CreateComment(ctx context.Context, src upstream.Source, postID int64, in upstream.CommentInput) (upstream.Comment, bool, error)
	CreatePost(ctx context.Context, in upstream.PostInput) (upstream.Post, error)
}

var _ Remote = (*upstream.Client)(nil)

// withCandidates calls fn for the post's own source, then the other one
// a 404 moves on to the next candidate; any other error stops immediately
func withCandidates(src domain.Source, fn func(upstream.Source) error) error {
	var err error
	for _, s := range upstream.Source(src).Candidates() {
		if err = fn(s); err == nil || !perr.IsNotFound(err) {
			return err
		}
	}
	return err
}
