package modkit

import (
	"dayonme/internal/platform/config"
	"dayonme/internal/platform/kv"
	"dayonme/internal/platform/logger"
	"dayonme/internal/platform/report"
	"dayonme/internal/platform/store"
)

// Deps holds core dependencies passed to modules
type Deps struct {
	Log   *logger.Logger
	Cfg   config.Conf
	Store *store.Store // optional backends, may be nil

	// KV is the durable store personas and the comment parent map live in
	KV    kv.Store
	Codec kv.Codec

	// Report is the error tracker; nil means errors are only logged
	Report *report.Reporter
}

// Logger returns Log or a component logger when unset
func (d Deps) Logger(component string) *logger.Logger {
	if d.Log != nil {
		l := d.Log.With().Str("component", component).Logger()
		return &l
	}
	return logger.Named(component)
}

// MustKV returns the kv store and codec, panicking when the store is missing
func (d Deps) MustKV(module string) (kv.Store, kv.Codec) {
	if d.KV == nil {
		panic(module + " module requires Deps.KV")
	}
	if d.Codec == nil {
		return d.KV, kv.JSON{}
	}
	return d.KV, d.Codec
}
