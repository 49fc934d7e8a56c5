// Package api composes the feed API: shared middleware, versioned routes and every module
package api

import (
	"context"
	"time"

	"dayonme/internal/platform/config"
	"dayonme/internal/platform/kv"
	"dayonme/internal/platform/logger"
	phttp "dayonme/internal/platform/net/http"
	"dayonme/internal/platform/net/middleware"
	"dayonme/internal/platform/report"
	"dayonme/internal/platform/store"

	"dayonme/internal/modkit"
	"dayonme/internal/modkit/httpkit"
	"dayonme/internal/modkit/module"

	feedmod "dayonme/internal/services/feed/module"
	metahttp "dayonme/internal/services/meta/http"
	metamod "dayonme/internal/services/meta/module"
	personamod "dayonme/internal/services/persona/module"
)

// ServiceName is how the API names itself in meta and logs
const ServiceName = "dayonme-feedd"

// Options are the API options
type Options struct {
	Config config.Conf
	Store  *store.Store // optional backends, may be nil
	KV     kv.Store
	Codec  kv.Codec
	Logger *logger.Logger
	Report *report.Reporter
}

// Mount mounts the API onto r and returns a func that stops background work
func Mount(r phttp.Router, opt Options) func() {
	deps := modkit.Deps{
		Log:    opt.Logger,
		Cfg:    opt.Config,
		Store:  opt.Store,
		KV:     opt.KV,
		Codec:  opt.Codec,
		Report: opt.Report,
	}

	// personas first; the feed finds their port in the registry when it is built
	personas := personamod.New(deps)
	module.Register(personas)
	feed := feedmod.New(deps)

	mods := []modkit.Module{
		metamod.New(deps, ServiceName, readiness(opt)...),
		personas,
		feed,
	}

	r.Use(middleware.Stack(stackOptions(opt))...)
	httpkit.MountAPIV1(r, nil, func(api httpkit.Router) {
		for _, m := range mods {
			module.Register(m)
			m.MountRoutes(api)
		}
	})
	return feed.Close
}

func stackOptions(opt Options) middleware.StackOptions {
	ac := opt.Config.Prefix("API_")
	so := middleware.StackOptions{
		CORS: middleware.CORSOptions{
			AllowedOrigins:   opt.Config.MayCSV("CORS_ORIGINS", nil),
			AllowCredentials: true,
			MaxAge:           300,
		},
		Auth:    middleware.BearerAuth{},
		Timeout: ac.MayDuration("TIMEOUT", 30*time.Second),
		SlowLog: ac.MayDuration("SLOW_LOG", time.Second),
	}
	if opt.Report.Enabled() {
		so.PanicHooks = append(so.PanicHooks, opt.Report.PanicHook)
	}
	return so
}

// readiness lists a probe per configured backend
func readiness(opt Options) []metahttp.Check {
	var checks []metahttp.Check
	if opt.Store == nil {
		return checks
	}
	if p, ok := opt.Store.PG.(store.Pinger); ok {
		checks = append(checks, metahttp.Check{Name: "pg", Ping: p.Ping})
	}
	if rc := opt.Store.Redis; rc != nil {
		checks = append(checks, metahttp.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}})
	}
	return checks
}
