package domain

// CommentInput is a new comment or reply
type CommentInput struct {
	Content         string `json:"content" validate:"required,max=500,no_ctrl"`
	IsAnonymous     bool   `json:"isAnonymous"`
	ParentCommentID *int64 `json:"parentCommentId,omitempty" validate:"omitempty,gt=0"`
}

// PostInput is a new general post
type PostInput struct {
	Content     string   `json:"content" validate:"required,max=2000,no_ctrl"`
	EmotionIDs  []int64  `json:"emotionIds" validate:"max=3,dive,gt=0"`
	IsAnonymous bool     `json:"isAnonymous"`
	ImageURL    string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Images      []string `json:"images,omitempty" validate:"max=10,dive,url"`
}

// LikeResult is the post's like state after a toggle
type LikeResult struct {
	PostID    int64 `json:"postId"`
	IsLiked   bool  `json:"isLiked"`
	LikeCount int   `json:"likeCount"`
}

// BookmarkResult is the post's bookmark state after a toggle
type BookmarkResult struct {
	PostID     int64 `json:"postId"`
	Bookmarked bool  `json:"bookmarked"`
}

// CommentResult is the comment as it now sits in the feed
type CommentResult struct {
	Comment CommentRecord `json:"comment"`
	// Notice is set when the write succeeded but the comment had to be built locally
	Notice string `json:"notice,omitempty"`
}
