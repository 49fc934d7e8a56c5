package domain

// LookupInput is the query of a single persona lookup
type LookupInput struct {
	ScopeID   int64  `json:"scopeId" validate:"min=0"`
	UserID    int64  `json:"userId" validate:"min=0"`
	CommentID *int64 `json:"commentId,omitempty" validate:"omitempty,min=0"`
	Mode      Mode   `json:"mode,omitempty" validate:"omitempty,oneof=stable perInstance"`
}

// ScopeView lists the assignments of one scope
type ScopeView struct {
	ScopeID     int64        `json:"scopeId"`
	Assignments []Assignment `json:"assignments"`
}
