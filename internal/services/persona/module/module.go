// Package module wires the persona allocator into the API using modkit
package module

import (
	"net/http"

	modkit "dayonme/internal/modkit"
	"dayonme/internal/modkit/httpkit"
	personadom "dayonme/internal/services/persona/domain"
	personahttp "dayonme/internal/services/persona/http"
	personarepo "dayonme/internal/services/persona/repo"
	personasvc "dayonme/internal/services/persona/service"
)

// ModuleName is the name the module mounts and registers under unless overridden
const ModuleName = "persona"

// Ports is the persona port set other modules pull through module.PortsOf
type Ports struct {
	Personas personadom.ServicePort
}

// Module implements the modkit.Module interface
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
	svc      *personasvc.Allocator
}

// New constructs the persona module; the allocator persists through deps.KV
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName(ModuleName), modkit.WithPrefix("/personas")}, opts...)...)

	store, codec := deps.MustKV("persona")
	svc := personasvc.New(personarepo.NewKV(store, codec), personasvc.Config{})

	m := &Module{name: b.Name, prefix: b.Prefix, mws: b.Mw, svc: svc}
	external := b.Register
	m.register = func(r httpkit.Router) {
		personahttp.Register(r, m.svc)
		external(r)
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// Ports exposes the allocator to the feed module
func (m *Module) Ports() any { return Ports{Personas: m.svc} }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Allocator returns the underlying allocator for in-process callers such as the CLI
func (m *Module) Allocator() *personasvc.Allocator { return m.svc }
