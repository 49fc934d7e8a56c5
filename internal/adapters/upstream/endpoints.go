package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
)

// ListPosts fetches one page from a post service
// Items that fail to decode are dropped and counted; an unrecognized envelope is an empty page
func (c *Client) ListPosts(ctx context.Context, src Source, q PageQuery) (PostPage, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.SortBy != "" {
		v.Set("sort_by", q.SortBy)
	}
	if q.CacheBust != "" {
		v.Set("_t", q.CacheBust)
	}
	body, err := c.Do(ctx, http.MethodGet, src.base(), v, nil)
	if err != nil {
		return PostPage{}, err
	}

	env := DecodeList(body, "posts")
	c.noteShape(ctx, src.base(), env.Shape, len(body))
	page := PostPage{HasMore: env.HasMore, Shape: env.Shape, Posts: make([]Post, 0, len(env.Items))}
	for _, it := range env.Items {
		var p Post
		if err := json.Unmarshal(it, &p); err != nil || p.Key() == 0 {
			page.Dropped++
			continue
		}
		page.Posts = append(page.Posts, p)
	}
	if page.Dropped > 0 {
		logger.C(ctx).Warn().Str("component", "upstream").Str("path", src.base()).Int("dropped", page.Dropped).Msg("undecodable posts dropped")
	}
	return page, nil
}

// ListComments fetches the comments of one post, flattening server-nested replies
func (c *Client) ListComments(ctx context.Context, src Source, postID int64) ([]Comment, error) {
	path := src.base() + "/" + strconv.FormatInt(postID, 10) + "/comments"
	body, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	env := DecodeList(body, "comments")
	c.noteShape(ctx, path, env.Shape, len(body))

	out := make([]Comment, 0, len(env.Items))
	for _, it := range env.Items {
		var cm Comment
		if err := json.Unmarshal(it, &cm); err != nil || cm.Key() == 0 {
			continue
		}
		out = flatten(out, cm, nil)
	}
	return out, nil
}

// flatten appends cm and its nested replies; a nested reply without a parent id gets its container's
func flatten(out []Comment, cm Comment, parent *int64) []Comment {
	if cm.ParentCommentID == nil && parent != nil {
		p := *parent
		cm.ParentCommentID = &p
	}
	replies := cm.Replies
	cm.Replies = nil
	out = append(out, cm)
	id := cm.Key()
	for _, r := range replies {
		if r.Key() == 0 {
			continue
		}
		out = flatten(out, r, &id)
	}
	return out
}

// ToggleLike flips the caller's like on a post of src
func (c *Client) ToggleLike(ctx context.Context, src Source, postID int64) error {
	_, err := c.Do(ctx, http.MethodPost, src.base()+"/"+strconv.FormatInt(postID, 10)+"/like", nil, struct{}{})
	return err
}

// DeletePost deletes a post of src
func (c *Client) DeletePost(ctx context.Context, src Source, postID int64) error {
	_, err := c.Do(ctx, http.MethodDelete, src.base()+"/"+strconv.FormatInt(postID, 10), nil, nil)
	return err
}

// CreateComment posts a comment and returns whatever comment the server echoed
// ok is false when the answer held no usable comment; the write still succeeded
func (c *Client) CreateComment(ctx context.Context, src Source, postID int64, in CommentInput) (Comment, bool, error) {
	body, err := c.Do(ctx, http.MethodPost, src.base()+"/"+strconv.FormatInt(postID, 10)+"/comments", nil, in)
	if err != nil {
		return Comment{}, false, err
	}
	rec, ok := DecodeObject(body, "comment")
	if !ok {
		return Comment{}, false, nil
	}
	var cm Comment
	if json.Unmarshal(rec, &cm) != nil {
		return Comment{}, false, nil
	}
	// a partial record still counts when it carries an id
	return cm, cm.Key() != 0, nil
}

// CreatePost creates a general post; the returned post may be partial or empty
func (c *Client) CreatePost(ctx context.Context, in PostInput) (Post, error) {
	body, err := c.Do(ctx, http.MethodPost, SourceGeneral.base(), nil, in)
	if err != nil {
		return Post{}, err
	}
	var p Post
	if rec, ok := DecodeObject(body, "post"); ok {
		_ = json.Unmarshal(rec, &p)
	}
	return p, nil
}

// ListBookmarks returns all of the caller's bookmarks, paging until the server says
// there are no more or a page comes back short
// A failing page fails the whole list so a partial set never passes for the full one
func (c *Client) ListBookmarks(ctx context.Context) ([]Bookmark, error) {
	size := c.opts.BookmarkPageSize
	var out []Bookmark
	for page := 1; ; page++ {
		v := url.Values{}
		v.Set("page", strconv.Itoa(page))
		v.Set("limit", strconv.Itoa(size))
		body, err := c.Do(ctx, http.MethodGet, "/bookmarks", v, nil)
		if err != nil {
			return nil, err
		}
		env := DecodeList(body, "bookmarks")
		c.noteShape(ctx, "/bookmarks", env.Shape, len(body))
		for _, it := range env.Items {
			var b Bookmark
			if json.Unmarshal(it, &b) == nil {
				out = append(out, b)
			}
		}

		more := len(env.Items) >= size
		if env.HasMore != nil {
			more = *env.HasMore
		}
		if !more || len(env.Items) == 0 {
			break
		}
		if page >= c.opts.BookmarkMaxPages {
			logger.C(ctx).Warn().Str("component", "upstream").Int("pages", page).Int("bookmarks", len(out)).Msg("bookmark list truncated at page cap")
			break
		}
	}
	if out == nil {
		out = []Bookmark{}
	}
	return out, nil
}

// ToggleBookmark flips a bookmark and returns the server's resulting state
// known is false when the answer did not say
func (c *Client) ToggleBookmark(ctx context.Context, postType string, postID int64) (bookmarked, known bool, err error) {
	body, err := c.Do(ctx, http.MethodPost, bookmarkPath(postType, postID), nil, struct{}{})
	if err != nil {
		return false, false, err
	}
	bookmarked, known = boolField(body, "is_bookmarked", "isBookmarked", "bookmarked")
	return bookmarked, known, nil
}

// BookmarkStatus reads whether a post is bookmarked
func (c *Client) BookmarkStatus(ctx context.Context, postType string, postID int64) (bool, error) {
	body, err := c.Do(ctx, http.MethodGet, bookmarkPath(postType, postID), nil, nil)
	if err != nil {
		return false, err
	}
	b, ok := boolField(body, "is_bookmarked", "isBookmarked", "bookmarked")
	if !ok {
		return false, perr.JSONErrf("bookmark status missing from response")
	}
	return b, nil
}

func bookmarkPath(postType string, postID int64) string {
	return "/bookmarks/" + url.PathEscape(postType) + "/" + strconv.FormatInt(postID, 10)
}

func boolField(body []byte, names ...string) (bool, bool) {
	for _, n := range names {
		if v, ok := Field(body, n); ok {
			var b bool
			if json.Unmarshal(v, &b) == nil {
				return b, true
			}
		}
	}
	return false, false
}

func (c *Client) noteShape(ctx context.Context, path string, s Shape, n int) {
	if s == ShapeUnrecognized {
		logger.C(ctx).Warn().Str("component", "upstream").Str("path", path).Int("bytes", n).Msg("unrecognized response envelope; treating as empty")
		return
	}
	c.log.Debug().Str("path", path).Str("shape", s.String()).Msg("envelope decoded")
}
