// Package http provides meta endpoints
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"dayonme/internal/modkit/httpkit"
	"dayonme/internal/platform/version"
)

// Check is one readiness probe
type Check struct {
	Name string
	Ping func(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Checks      []Check

	// now is swapped in tests
	now func() time.Time
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	if d.now == nil {
		d.now = time.Now
	}
	h := &handlers{deps: d}

	r.Get("/health", httpkit.Call(h.health))
	r.Get("/ready", httpkit.Call(h.ready))
	r.Get("/version", httpkit.Call(h.version))
	r.Get("/service", httpkit.Call(h.service))
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Now     string `json:"now"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status"` // ok fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"`
}

// ServiceResponse describes service info
type ServiceResponse struct {
	Name    string `json:"name"`
	Started string `json:"started"`
	Uptime  int64  `json:"uptime"`
}

func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     h.deps.now().UTC().Format(time.RFC3339),
	}, nil
}

// ready pings every configured backend; a failing one answers 200 with status fail
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := stdctx.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	out := ReadyResponse{Status: "ok", Checks: []ReadyCheck{}, Now: h.deps.now().UTC().Format(time.RFC3339)}
	for _, c := range h.deps.Checks {
		rc := ReadyCheck{Name: c.Name, Status: "ok"}
		switch {
		case c.Ping == nil:
			rc.Status = "skipped"
		default:
			if err := c.Ping(ctx); err != nil {
				rc.Status, rc.Error = "fail", err.Error()
				out.Status = "fail"
			}
		}
		out.Checks = append(out.Checks, rc)
	}
	return out, nil
}

func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}

func (h *handlers) service(_ *http.Request) (any, error) {
	return ServiceResponse{
		Name:    h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.deps.now().Sub(h.deps.StartedAt) / time.Second),
	}, nil
}
