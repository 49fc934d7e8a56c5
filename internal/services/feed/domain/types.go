// Package domain holds the feed records, cache views and service contracts
package domain

import (
	"context"
	"slices"
	"time"

	pnet "dayonme/internal/platform/net"
	personadom "dayonme/internal/services/persona/domain"
)

// Fingerprint keys a cached feed view by auth state: "anon" or "user:<id>"
type Fingerprint string

// Anonymous is the fingerprint of a signed out client
const Anonymous Fingerprint = "anon"

// Placeholder author names
const (
	AnonymousAuthor = "익명"
	UnknownAuthor   = "알 수 없음"
)

// Auth is the caller identity a load or mutation runs as
type Auth struct {
	UserID string
	Token  string
}

// AuthFrom reads the identity the auth middleware put on ctx
func AuthFrom(ctx context.Context) Auth {
	return Auth{UserID: pnet.UserID(ctx), Token: pnet.Token(ctx)}
}

// Authenticated reports whether bookmark and write calls can be made
func (a Auth) Authenticated() bool { return a.UserID != "" && a.Token != "" }

// Fingerprint returns the cache key for a
func (a Auth) Fingerprint() Fingerprint {
	if !a.Authenticated() {
		return Anonymous
	}
	return Fingerprint("user:" + a.UserID)
}

// Source is the upstream a post came from
type Source string

const (
	SourceGeneral Source = "general"
	SourceDaily   Source = "daily"
)

// Emotion is one normalized emotion tag
type Emotion struct {
	EmotionID int64  `json:"emotionId"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	Color     string `json:"color,omitempty"`
}

// PostRecord is the canonical post both sources are converted into
type PostRecord struct {
	PostID        int64                  `json:"postId"`
	Source        Source                 `json:"source"`
	AuthorName    string                 `json:"authorName"`
	Content       string                 `json:"content"`
	Emotions      []Emotion              `json:"emotions"`
	ImageURL      string                 `json:"imageUrl,omitempty"`
	Images        []string               `json:"images,omitempty"`
	LikeCount     int                    `json:"likeCount"`
	CommentCount  int                    `json:"commentCount"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	IsAnonymous   bool                   `json:"isAnonymous"`
	UserID        int64                  `json:"userId"`
	IsLiked       bool                   `json:"isLiked"`
	Comments      []CommentRecord        `json:"comments"`
	AnonymousUser *personadom.Assignment `json:"anonymousUser,omitempty"`

	// Provisional marks a locally created post waiting for reconciliation
	Provisional bool `json:"provisional,omitempty"`
}

// CommentRecord is a comment threaded under its parent
type CommentRecord struct {
	CommentID       int64                  `json:"commentId"`
	PostID          int64                  `json:"postId"`
	UserID          int64                  `json:"userId"`
	AuthorName      string                 `json:"authorName"`
	Content         string                 `json:"content"`
	IsAnonymous     bool                   `json:"isAnonymous"`
	CreatedAt       time.Time              `json:"createdAt"`
	ParentCommentID *int64                 `json:"parentCommentId"`
	AnonymousUser   *personadom.Assignment `json:"anonymousUser,omitempty"`
	Replies         []CommentRecord        `json:"replies,omitempty"`

	// Synthesized marks a comment built locally because the server answer held none
	Synthesized bool `json:"synthesized,omitempty"`
}

// Pagination selects one page of both sources
type Pagination struct {
	Page      int
	Limit     int
	CacheBust string
}

// BookmarkSet is the set of bookmarked post ids
type BookmarkSet map[int64]struct{}

// Has reports membership
func (b BookmarkSet) Has(id int64) bool {
	_, ok := b[id]
	return ok
}

// IDs returns the members in ascending order
func (b BookmarkSet) IDs() []int64 {
	out := make([]int64, 0, len(b))
	for id := range b {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Clone copies the set
func (b BookmarkSet) Clone() BookmarkSet {
	out := make(BookmarkSet, len(b))
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

// Result is one aggregated page
type Result struct {
	Posts       []PostRecord
	BookmarkIDs BookmarkSet
	HasMore     bool
}

// Entry is the cached feed of one fingerprint
type Entry struct {
	Fingerprint Fingerprint
	Posts       []PostRecord
	BookmarkIDs BookmarkSet
	FetchedAt   time.Time
	Page        int
	HasMore     bool
	LastErr     error
}

// Snapshot is what the feed hook hands the UI
type Snapshot struct {
	Posts       []PostRecord `json:"posts"`
	BookmarkIDs []int64      `json:"bookmarkIds"`
	IsLoading   bool         `json:"isLoading"`
	IsError     bool         `json:"isError"`
	Error       string       `json:"error,omitempty"`
	HasNextPage bool         `json:"hasNextPage"`
	FetchedAt   *time.Time   `json:"fetchedAt,omitempty"`
}

// Clone deep copies e so callers can hold it outside the cache lock
func (e Entry) Clone() Entry {
	out := e
	out.Posts = ClonePosts(e.Posts)
	out.BookmarkIDs = e.BookmarkIDs.Clone()
	return out
}

// ClonePosts deep copies posts including their comment trees
func ClonePosts(in []PostRecord) []PostRecord {
	if in == nil {
		return nil
	}
	out := make([]PostRecord, len(in))
	for i, p := range in {
		p.Emotions = slices.Clone(p.Emotions)
		p.Images = slices.Clone(p.Images)
		p.Comments = CloneComments(p.Comments)
		out[i] = p
	}
	return out
}

// CloneComments deep copies a comment tree
func CloneComments(in []CommentRecord) []CommentRecord {
	if in == nil {
		return nil
	}
	out := make([]CommentRecord, len(in))
	for i, c := range in {
		c.Replies = CloneComments(c.Replies)
		out[i] = c
	}
	return out
}

// IndexOf returns the position of postID in posts or -1
func IndexOf(posts []PostRecord, postID int64) int {
	return slices.IndexFunc(posts, func(p PostRecord) bool { return p.PostID == postID })
}
