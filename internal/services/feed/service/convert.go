package service

import (
	"dayonme/internal/adapters/upstream"
	pstrings "dayonme/internal/platform/strings"
	"dayonme/internal/services/feed/domain"
)

// toPost converts either source's post into the canonical record
func toPost(up upstream.Post, src domain.Source) domain.PostRecord {
	p := domain.PostRecord{
		PostID:       up.Key(),
		Source:       src,
		Content:      up.Content,
		Emotions:     emotionsOf(up),
		ImageURL:     up.ImageURL,
		Images:       up.Images,
		LikeCount:    max(up.LikeCount, 0),
		CommentCount: max(up.CommentCount, 0),
		CreatedAt:    up.CreatedAt.Time(),
		UpdatedAt:    up.UpdatedAt.Time(),
		IsAnonymous:  up.IsAnonymous,
		UserID:       up.UserID,
		IsLiked:      up.IsLiked,
		Comments:     []domain.CommentRecord{},
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.UserID == 0 && up.User != nil {
		p.UserID = up.User.UserID
	}
	p.AuthorName = authorName(up.IsAnonymous, up.AuthorName, up.User)
	return p
}

func toComment(c upstream.Comment, postID int64) domain.CommentRecord {
	rec := domain.CommentRecord{
		CommentID:   c.Key(),
		PostID:      c.PostID,
		UserID:      c.UserID,
		Content:     c.Content,
		IsAnonymous: c.IsAnonymous,
		CreatedAt:   c.CreatedAt.Time(),
	}
	if rec.PostID == 0 {
		rec.PostID = postID
	}
	if rec.UserID == 0 && c.User != nil {
		rec.UserID = c.User.UserID
	}
	if c.ParentCommentID != nil && *c.ParentCommentID > 0 {
		rec.ParentCommentID = cloneID(c.ParentCommentID)
	}
	rec.AuthorName = authorName(c.IsAnonymous, "", c.User)
	return rec
}

func authorName(anonymous bool, name string, u *upstream.User) string {
	if anonymous {
		return domain.AnonymousAuthor
	}
	nick := ""
	if u != nil {
		nick = u.Nickname
	}
	if n := pstrings.FirstNonEmpty(nick, name); n != "" {
		return n
	}
	return domain.UnknownAuthor
}

// emotionsOf prefers emotions[]; the my-day service sends one flattened emotion instead
func emotionsOf(up upstream.Post) []domain.Emotion {
	if len(up.Emotions) > 0 {
		out := make([]domain.Emotion, 0, len(up.Emotions))
		for _, e := range up.Emotions {
			out = append(out, domain.Emotion{EmotionID: e.EmotionID, Name: e.Name, Icon: e.Icon, Color: e.Color})
		}
		return out
	}
	if up.EmotionID != 0 || up.EmotionName != "" {
		return []domain.Emotion{{EmotionID: up.EmotionID, Name: up.EmotionName, Icon: up.EmotionIcon, Color: up.EmotionColor}}
	}
	return []domain.Emotion{}
}

func cloneID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
