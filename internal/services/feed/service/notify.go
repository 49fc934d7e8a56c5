package service

import (
	"context"
	"errors"
	"strconv"

	"dayonme/internal/platform/logger"
	"dayonme/internal/services/feed/domain"
)

// LogNotifier writes notices to the request logger
type LogNotifier struct{}

// Notify implements domain.Notifier
func (LogNotifier) Notify(ctx context.Context, n domain.Notice) {
	ev := logger.C(ctx).Warn()
	if n.Kind == domain.NoticeDegraded {
		ev = logger.C(ctx).Info()
	}
	ev.Str("component", "feed").
		Str("kind", string(n.Kind)).
		Str("op", n.Op).
		Str("fingerprint", string(n.Fingerprint)).
		Int64("post_id", n.PostID).
		Err(n.Err).
		Msg(n.Message)
}

// Notifiers fans a notice out in order
type Notifiers []domain.Notifier

// Notify implements domain.Notifier
func (ns Notifiers) Notify(ctx context.Context, n domain.Notice) {
	for _, x := range ns {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

// Capturer is an error tracker
type Capturer interface {
	Capture(ctx context.Context, err error, tags map[string]string)
}

// ReportNotifier forwards rollbacks, failures and load errors to an error tracker
// Degraded notices are successes and stay local
type ReportNotifier struct{ C Capturer }

// Notify implements domain.Notifier
func (r ReportNotifier) Notify(ctx context.Context, n domain.Notice) {
	if r.C == nil || n.Kind == domain.NoticeDegraded {
		return
	}
	err := n.Err
	if err == nil {
		err = errors.New(n.Message)
	}
	r.C.Capture(ctx, err, map[string]string{
		"component":   "feed",
		"kind":        string(n.Kind),
		"op":          n.Op,
		"fingerprint": string(n.Fingerprint),
		"post_id":     strconv.FormatInt(n.PostID, 10),
	})
}

// user facing texts
const (
	msgLikeFailed       = "좋아요를 반영하지 못했어요. 잠시 후 다시 시도해 주세요."
	msgBookmarkFailed   = "북마크를 반영하지 못했어요. 잠시 후 다시 시도해 주세요."
	msgDeleteFailed     = "게시물을 삭제하지 못했어요."
	msgCommentFailed    = "댓글을 등록하지 못했어요."
	msgPostFailed       = "게시물을 등록하지 못했어요."
	msgCommentSynthetic = "댓글이 등록되었어요. 새로고침하면 정확한 내용을 볼 수 있어요."
)
