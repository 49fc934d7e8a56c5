// Package http provides http transport for persona lookups and resets
package http

import (
	stdhttp "net/http"
	"strconv"

	"dayonme/internal/modkit/httpkit"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/net/http/bind"
	"dayonme/internal/services/persona/domain"
)

// Register mounts persona endpoints on the given router
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}
	r.Get("/{scopeId}", httpkit.Call(h.scope))
	r.Get("/{scopeId}/{userId}", httpkit.Call(h.lookup))
	r.Delete("/{scopeId}", httpkit.Call(h.clearScope))
	r.Delete("/", httpkit.Call(h.clearAll))
}

type handlers struct{ svc domain.ServicePort }

func (h *handlers) scope(r *stdhttp.Request) (any, error) {
	id, err := pathID(r, "scopeId")
	if err != nil {
		return nil, err
	}
	as, err := h.svc.GetAllForScope(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return domain.ScopeView{ScopeID: id, Assignments: as}, nil
}

// lookup serves GET /{scopeId}/{userId}?commentId=&mode=
func (h *handlers) lookup(r *stdhttp.Request) (any, error) {
	in, err := lookupInput(r)
	if err != nil {
		return nil, err
	}
	if in.Mode == "" {
		return h.svc.GetOrCreateAnonymousUser(r.Context(), in.ScopeID, in.UserID, in.CommentID)
	}
	return h.svc.Resolve(r.Context(), in.ScopeID, in.UserID, in.Mode, in.CommentID)
}

func (h *handlers) clearScope(r *stdhttp.Request) (any, error) {
	id, err := pathID(r, "scopeId")
	if err != nil {
		return nil, err
	}
	if err := h.svc.ClearScope(r.Context(), id); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

func (h *handlers) clearAll(r *stdhttp.Request) (any, error) {
	if err := h.svc.ClearAll(r.Context()); err != nil {
		return nil, err
	}
	return httpkit.NoContent(), nil
}

func lookupInput(r *stdhttp.Request) (domain.LookupInput, error) {
	var in domain.LookupInput
	var err error
	if in.ScopeID, err = pathID(r, "scopeId"); err != nil {
		return in, err
	}
	if in.UserID, err = pathID(r, "userId"); err != nil {
		return in, err
	}
	q := r.URL.Query()
	if s := q.Get("commentId"); s != "" {
		cid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return in, perr.WithField(perr.Validationf("commentId must be an integer"), "commentId")
		}
		in.CommentID = &cid
	}
	in.Mode = domain.Mode(q.Get("mode"))
	return in, bind.Validate(in)
}

func pathID(r *stdhttp.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(httpkit.Param(r, name), 10, 64)
	if err != nil || id < 0 {
		return 0, perr.WithField(perr.Validationf("%s must be a non-negative integer", name), name)
	}
	return id, nil
}
