// Package http serves the feed and its mutations to the app
package http

import (
	stdhttp "net/http"
	"strconv"

	"dayonme/internal/modkit/httpkit"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/services/feed/domain"
)

// Register mounts feed endpoints on the given router
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}
	r.Get("/feed", httpkit.Call(h.feed))
	r.Post("/feed/next", httpkit.Call(h.next))
	r.Delete("/feed", httpkit.Call(h.reset))

	r.Post("/posts", httpkit.JSON(h.createPost))
	r.Delete("/posts/{postId}", httpkit.Call(h.deletePost))
	r.Post("/posts/{postId}/like", httpkit.Call(h.like))
	r.Post("/posts/{postId}/bookmark", httpkit.Call(h.bookmark))
	r.Post("/posts/{postId}/comments", httpkit.JSON(h.addComment))
}

type handlers struct{ svc domain.ServicePort }

// feed serves GET /feed; ?refresh=1 forces page 1 past the cache
func (h *handlers) feed(r *stdhttp.Request) (any, error) {
	auth := domain.AuthFrom(r.Context())
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		return read(h.svc.Refetch(r.Context(), auth))
	}
	return read(h.svc.Query(r.Context(), auth))
}

func (h *handlers) next(r *stdhttp.Request) (any, error) {
	return read(h.svc.FetchNextPage(r.Context(), domain.AuthFrom(r.Context())))
}

func (h *handlers) reset(r *stdhttp.Request) (any, error) {
	h.svc.Reset(domain.AuthFrom(r.Context()).Fingerprint())
	return httpkit.NoContent(), nil
}

// read never fails a feed read; the cached view goes out with the error as a notice
func read(snap domain.Snapshot, err error) (any, error) {
	if err != nil {
		return httpkit.Degraded(snap, snap.Error), nil
	}
	return snap, nil
}

func (h *handlers) like(r *stdhttp.Request) (any, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	return h.svc.Like(r.Context(), domain.AuthFrom(r.Context()), id)
}

func (h *handlers) bookmark(r *stdhttp.Request) (any, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	return h.svc.ToggleBookmark(r.Context(), domain.AuthFrom(r.Context()), id)
}

func (h *handlers) deletePost(r *stdhttp.Request) (any, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	if err := h.svc.DeletePost(r.Context(), domain.AuthFrom(r.Context()), id); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

func (h *handlers) addComment(r *stdhttp.Request, in domain.CommentInput) (any, error) {
	id, err := postID(r)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.AddComment(r.Context(), domain.AuthFrom(r.Context()), id, in)
	if err != nil {
		return nil, err
	}
	if res.Notice != "" {
		return httpkit.Degraded(res, res.Notice), nil
	}
	return httpkit.Created(res), nil
}

func (h *handlers) createPost(r *stdhttp.Request, in domain.PostInput) (any, error) {
	rec, err := h.svc.CreatePost(r.Context(), domain.AuthFrom(r.Context()), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(rec), nil
}

func postID(r *stdhttp.Request) (int64, error) {
	id, err := strconv.ParseInt(httpkit.Param(r, "postId"), 10, 64)
	if err != nil || id == 0 {
		return 0, perr.WithField(perr.Validationf("postId must be a non-zero integer"), "postId")
	}
	return id, nil
}
