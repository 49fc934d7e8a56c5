package domain

import "context"

// ServicePort is the persona allocator contract used by the feed and the http layer
type ServicePort interface {
	GetOrCreate(ctx context.Context, scopeID int64, identityKey string) (Assignment, error)
	GetOrCreateAnonymousUser(ctx context.Context, scopeID, userID int64, commentID *int64) (Assignment, error)
	Resolve(ctx context.Context, scopeID, userID int64, mode Mode, commentID *int64) (Assignment, error)
	GetAllForScope(ctx context.Context, scopeID int64) ([]Assignment, error)
	ClearScope(ctx context.Context, scopeID int64) error
	ClearAll(ctx context.Context) error
}
