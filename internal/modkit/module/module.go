// Package module holds the module contract plus port lookup used when main composes modules
package module

import (
	phttp "dayonme/internal/platform/net/http"
)

// Module is the minimal contract the api mounts and the port helpers read from
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
