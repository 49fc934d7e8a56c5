// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"net/http"
	"time"

	modkit "dayonme/internal/modkit"
	"dayonme/internal/modkit/httpkit"
	metahttp "dayonme/internal/services/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
}

// New constructs a meta module; checks are the readiness probes /meta/ready runs
func New(deps modkit.Deps, service string, checks ...metahttp.Check) *Module {
	b := modkit.Build(modkit.WithName("meta"), modkit.WithPrefix("/meta"))
	started := time.Now()
	deps.Logger("meta").Debug().Int("checks", len(checks)).Msg("meta module ready")

	m := &Module{name: b.Name, prefix: b.Prefix, mws: b.Mw}
	m.register = func(r httpkit.Router) {
		metahttp.Register(r, metahttp.Deps{
			ServiceName: service,
			StartedAt:   started,
			Checks:      checks,
		})
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// Ports implements the modkit.Module interface; meta exposes none
func (m *Module) Ports() any { return nil }

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.name }
