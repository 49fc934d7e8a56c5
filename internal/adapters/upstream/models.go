package upstream

import (
	"encoding/json"

	ptime "dayonme/internal/platform/time"
)

// Source names one of the two post services
type Source string

const (
	// SourceGeneral is the /posts service and wins on id conflicts
	SourceGeneral Source = "general"
	// SourceDaily is the /my-day/posts service
	SourceDaily Source = "daily"
)

// Other returns the alternate source
func (s Source) Other() Source {
	if s == SourceDaily {
		return SourceGeneral
	}
	return SourceDaily
}

// Candidates lists s first, then the alternate source
func (s Source) Candidates() []Source {
	if s != SourceDaily {
		s = SourceGeneral
	}
	return []Source{s, s.Other()}
}

// PostType is the bookmark postType tag for the source
func (s Source) PostType() string {
	if s == SourceDaily {
		return "my_day"
	}
	return "post"
}

// base is the path prefix of the source's posts
func (s Source) base() string {
	if s == SourceDaily {
		return "/my-day/posts"
	}
	return "/posts"
}

// User is the author block some payloads embed
type User struct {
	UserID          int64  `json:"user_id"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Emotion is one emotion tag in an emotions[] array
type Emotion struct {
	EmotionID int64  `json:"emotion_id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
}

// Post is a post as either service sends it
// The my-day service flattens a single emotion into emotion_* fields instead of emotions[]
type Post struct {
	ID           int64      `json:"id"`
	PostID       int64      `json:"post_id"`
	UserID       int64      `json:"user_id"`
	AuthorName   string     `json:"author_name"`
	Content      string     `json:"content"`
	IsAnonymous  bool       `json:"is_anonymous"`
	LikeCount    int        `json:"like_count"`
	CommentCount int        `json:"comment_count"`
	IsLiked      bool       `json:"is_liked"`
	ImageURL     string     `json:"image_url"`
	Images       []string   `json:"images"`
	CreatedAt    ptime.Flex `json:"created_at"`
	UpdatedAt    ptime.Flex `json:"updated_at"`
	User         *User      `json:"user"`
	Emotions     []Emotion  `json:"emotions"`

	EmotionID    int64  `json:"emotion_id"`
	EmotionName  string `json:"emotion_name"`
	EmotionIcon  string `json:"emotion_icon"`
	EmotionColor string `json:"emotion_color"`
}

// Key returns post_id, falling back to id
func (p Post) Key() int64 {
	if p.PostID != 0 {
		return p.PostID
	}
	return p.ID
}

// Comment is a comment as either service sends it
type Comment struct {
	ID              int64      `json:"id"`
	CommentID       int64      `json:"comment_id"`
	PostID          int64      `json:"post_id"`
	UserID          int64      `json:"user_id"`
	Content         string     `json:"content"`
	IsAnonymous     bool       `json:"is_anonymous"`
	CreatedAt       ptime.Flex `json:"created_at"`
	ParentCommentID *int64     `json:"parent_comment_id"`
	User            *User      `json:"user"`
	Replies         []Comment  `json:"replies"`
}

// Key returns comment_id, falling back to id
func (c Comment) Key() int64 {
	if c.CommentID != 0 {
		return c.CommentID
	}
	return c.ID
}

// Bookmark is one entry of the bookmark list; Post is null once the post is gone
type Bookmark struct {
	BookmarkID int64           `json:"bookmark_id"`
	PostType   string          `json:"post_type"`
	PostID     int64           `json:"post_id"`
	Post       json.RawMessage `json:"post"`
}

// Live reports whether the bookmarked post still exists and returns its id
// Only an explicit "post": null marks a deleted post; entries without the key are live
func (b Bookmark) Live() (int64, bool) {
	if len(b.Post) == 0 {
		return b.PostID, b.PostID != 0
	}
	if isNull(b.Post) {
		return 0, false
	}
	var p Post
	if json.Unmarshal(b.Post, &p) == nil && p.Key() != 0 {
		return p.Key(), true
	}
	return b.PostID, b.PostID != 0
}

// PageQuery is the pagination sent to both post services
type PageQuery struct {
	Page      int
	Limit     int
	SortBy    string
	CacheBust string // sent as _t when set
}

// PostPage is one decoded page of posts
type PostPage struct {
	Posts   []Post
	HasMore *bool
	Shape   Shape
	// Dropped counts items that did not decode as a post
	Dropped int
}

// CommentInput is the comment-create body
type CommentInput struct {
	Content         string `json:"content"`
	IsAnonymous     bool   `json:"is_anonymous"`
	ParentCommentID *int64 `json:"parent_comment_id,omitempty"`
}

// PostInput is the post-create body
type PostInput struct {
	Content     string   `json:"content"`
	EmotionIDs  []int64  `json:"emotion_ids,omitempty"`
	IsAnonymous bool     `json:"is_anonymous"`
	ImageURL    string   `json:"image_url,omitempty"`
	Images      []string `json:"images,omitempty"`
	ClientNonce string   `json:"client_nonce,omitempty"`
}
