// Package modkit provides module wiring and the shared deps every service module receives
package modkit

import (
	phttp "dayonme/internal/platform/net/http"
)

// Module is the common surface for service modules that mount routes and expose ports
type Module interface {
	// MountRoutes mounts HTTP routes under the provided router seam
	MountRoutes(r phttp.Router)
	// Ports returns a module specific port set for cross wiring
	Ports() any

	Name() string
}

// Builder constructs a Module from shared deps and options
type Builder func(Deps, ...Option) Module
