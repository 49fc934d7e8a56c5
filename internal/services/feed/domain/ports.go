package domain

import (
	"context"

	personadom "dayonme/internal/services/persona/domain"
)

// Loader produces one aggregated page for an identity
type Loader interface {
	Load(ctx context.Context, auth Auth, p Pagination) (Result, error)
}

// Personas is the slice of the persona allocator the feed needs
type Personas interface {
	GetOrCreate(ctx context.Context, scopeID int64, identityKey string) (personadom.Assignment, error)
}

// ParentStore remembers which comment a reply was written under, for servers that drop parent ids
type ParentStore interface {
	Lookup(ctx context.Context, commentID int64) (int64, bool)
	Record(ctx context.Context, commentID, parentID int64) error
}

// NoticeKind classifies what a Notice reports
type NoticeKind string

const (
	// NoticeRollback is an optimistic change undone after the server refused it
	NoticeRollback NoticeKind = "rollback"
	// NoticeFailed is a non optimistic write that failed
	NoticeFailed NoticeKind = "failed"
	// NoticeDegraded is a write that succeeded with an unusable answer
	NoticeDegraded NoticeKind = "degraded"
	// NoticeLoad is a failed feed read
	NoticeLoad NoticeKind = "load"
)

// Notice is a user facing event raised by the feed
type Notice struct {
	Kind        NoticeKind
	Op          string
	Fingerprint Fingerprint
	PostID      int64
	Message     string
	Err         error
}

// Notifier receives notices; implementations must not block
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// ServicePort is the feed contract the http layer serves
type ServicePort interface {
	Query(ctx context.Context, auth Auth) (Snapshot, error)
	Refetch(ctx context.Context, auth Auth) (Snapshot, error)
	FetchNextPage(ctx context.Context, auth Auth) (Snapshot, error)
	Reset(fp Fingerprint)

	Like(ctx context.Context, auth Auth, postID int64) (LikeResult, error)
	ToggleBookmark(ctx context.Context, auth Auth, postID int64) (BookmarkResult, error)
	DeletePost(ctx context.Context, auth Auth, postID int64) error
	AddComment(ctx context.Context, auth Auth, postID int64, in CommentInput) (CommentResult, error)
	CreatePost(ctx context.Context, auth Auth, in PostInput) (PostRecord, error)
}
