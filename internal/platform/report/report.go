// Package report forwards errors and recovered panics to Sentry
// A Reporter without a DSN drops everything, so callers never branch on whether reporting is on
package report

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"dayonme/internal/platform/config"
	"dayonme/internal/platform/logger"
	pnet "dayonme/internal/platform/net"

	"github.com/getsentry/sentry-go"
)

// Options configures the Sentry client
type Options struct {
	DSN         string
	Environment string
	Release     string
	// SamplePercent of error events are sent; 0 turns reporting off
	SamplePercent int

	// Transport replaces the HTTP transport, mostly for tests
	Transport sentry.Transport
}

// FromConfig reads SENTRY_* settings
func FromConfig(c config.Conf) Options {
	sc := c.Prefix("SENTRY_")
	return Options{
		DSN:           sc.MayString("DSN", ""),
		Environment:   sc.MayString("ENVIRONMENT", "development"),
		Release:       sc.MayString("RELEASE", ""),
		SamplePercent: sc.MayIntIn("SAMPLE_PERCENT", 100, 0, 100),
	}
}

// Reporter captures errors on its own hub; it never touches the global one
type Reporter struct {
	hub *sentry.Hub
}

// New builds a Reporter; an empty DSN without a Transport yields a disabled one
func New(o Options) (*Reporter, error) {
	if (o.DSN == "" && o.Transport == nil) || o.SamplePercent == 0 {
		return &Reporter{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         o.DSN,
		Environment: o.Environment,
		Release:     o.Release,
		SampleRate:  float64(o.SamplePercent) / 100,
		Transport:   o.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events leave the process
func (r *Reporter) Enabled() bool { return r != nil && r.hub != nil }

// Capture sends err with tags and the request id found on ctx
func (r *Reporter) Capture(ctx context.Context, err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	h := r.hub.Clone()
	h.ConfigureScope(func(s *sentry.Scope) {
		s.SetTags(tags)
		if id := pnet.RequestID(ctx); id != "" {
			s.SetTag("request_id", id)
		}
	})
	if id := h.CaptureException(err); id != nil {
		logger.C(ctx).Debug().Str("component", "report").Str("event_id", string(*id)).Msg("error reported")
	}
}

// PanicHook reports a panic the recover middleware caught
func (r *Reporter) PanicHook(req *stdhttp.Request, v any) {
	if !r.Enabled() {
		return
	}
	h := r.hub.Clone()
	h.ConfigureScope(func(s *sentry.Scope) {
		s.SetRequest(req)
		s.SetLevel(sentry.LevelFatal)
	})
	h.RecoverWithContext(req.Context(), v)
}

// Flush waits up to d for queued events
func (r *Reporter) Flush(d time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(d)
}
