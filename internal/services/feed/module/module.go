// Package module wires the feed engine into the API using modkit
package module

import (
	"net/http"

	"dayonme/internal/adapters/upstream"
	modkit "dayonme/internal/modkit"
	"dayonme/internal/modkit/httpkit"
	modreg "dayonme/internal/modkit/module"
	"dayonme/internal/services/feed/domain"
	feedhttp "dayonme/internal/services/feed/http"
	feedrepo "dayonme/internal/services/feed/repo"
	feedsvc "dayonme/internal/services/feed/service"
	personamod "dayonme/internal/services/persona/module"
	personarepo "dayonme/internal/services/persona/repo"
	personasvc "dayonme/internal/services/persona/service"
)

// Ports is the feed port set
type Ports struct {
	Feed domain.ServicePort
}

// Module implements the modkit.Module interface
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	svc      *feedsvc.Service
}

// New constructs the feed module
// Personas come from modkit.WithPorts (the persona module's Ports or any domain.Personas),
// else from a persona module already in the registry; without either the feed runs its
// own allocator over deps.KV
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("feed")}, opts...)...)

	store, codec := deps.MustKV("feed")
	log := deps.Logger("feed")

	notifier := feedsvc.Notifiers{feedsvc.LogNotifier{}}
	if deps.Report.Enabled() {
		notifier = append(notifier, feedsvc.ReportNotifier{C: deps.Report})
	}

	cfg := feedsvc.FromConfig(deps.Cfg)
	svc := feedsvc.New(feedsvc.Deps{
		Remote:   upstream.NewClient(upstream.FromConfig(deps.Cfg)),
		Personas: personasFrom(b.Ports, deps),
		Parents:  feedrepo.NewParents(store, codec),
		Notifier: notifier,
	}, cfg)
	log.Info().Int("page_size", cfg.PageSize).Dur("stale_time", cfg.StaleTime).Msg("feed module ready")

	m := &Module{name: b.Name, prefix: b.Prefix, mws: b.Mw, svc: svc}
	external := b.Register
	m.register = func(r httpkit.Router) {
		feedhttp.Register(r, m.svc)
		external(r)
	}
	return m
}

// personasFrom prefers ports passed in, then a registered persona module, then an allocator of its own
func personasFrom(p any, deps modkit.Deps) domain.Personas {
	switch v := p.(type) {
	case domain.Personas:
		return v
	case personamod.Ports:
		if v.Personas != nil {
			return v.Personas
		}
	}
	if ps, ok := modreg.PortsAs[domain.Personas](personamod.ModuleName); ok {
		return ps
	}
	store, codec := deps.MustKV("feed")
	return personasvc.New(personarepo.NewKV(store, codec), personasvc.Config{})
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// Ports exposes the feed service
func (m *Module) Ports() any { return Ports{Feed: m.svc} }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Close stops pending reconciliation refetches
func (m *Module) Close() { m.svc.Close() }
