package httpkit

import (
	"net/http"
	"strings"
)

// MountAPI mounts a subrouter under /{version}, applies scope middleware,
// then invokes mount to register routes on that scoped router
//
// example:
//
//	httpkit.MountAPI(r, "v1", nil, func(api httpkit.Router) {
//	  feed.MountRoutes(api)
//	})
func MountAPI(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountUnder(r, "/"+strings.Trim(version, "/"), mw, mount)
}

// MountAPIV1 is MountAPI with version v1
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountAPI(r, "v1", mw, mount)
}

// MountUnder mounts a subrouter at prefix and applies per-module middlewares
// An empty or "/" prefix mounts a group at the current level
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	scoped := func(sub Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	}
	if strings.Trim(prefix, "/") == "" {
		r.Group(scoped)
		return
	}
	r.Route(prefix, scoped)
}
