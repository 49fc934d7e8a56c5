package modkit

import (
	"net/http"
	"testing"

	"dayonme/internal/platform/kv"
	phttp "dayonme/internal/platform/net/http"
	kit "dayonme/internal/platform/testkit"
)

type stub struct {
	mounted bool
	ports   any
}

func (s *stub) MountRoutes(_ phttp.Router) { s.mounted = true }
func (s *stub) Ports() any                 { return s.ports }
func (s *stub) Name() string               { return "stub" }

var _ Module = (*stub)(nil)

func TestBuilder_Use(t *testing.T) {
	var b Builder = func(_ Deps, _ ...Option) Module { return &stub{ports: "ok"} }
	m := b(Deps{})
	if p := m.Ports(); p != "ok" {
		t.Fatalf("Ports = %v", p)
	}
}

func TestBuild_DefaultsAndOptions(t *testing.T) {
	b := Build()
	if b.Name != "" || b.Prefix != "" || b.Ports != nil || len(b.Mw) != 0 {
		t.Fatalf("unexpected defaults: %+v", b)
	}
	kit.MustNotPanic(t, func() { b.Register(nil) })

	called := false
	mw := func(next http.Handler) http.Handler { return next }
	in := []func(http.Handler) http.Handler{mw}
	b = Build(
		WithName("feed"),
		WithPrefix("/feed"),
		WithMiddlewares(in...),
		WithMiddlewares(mw),
		WithPorts(42),
		WithRegister(func(phttp.Router) { called = true }),
	)
	if b.Name != "feed" || b.Prefix != "/feed" || b.Ports != 42 || len(b.Mw) != 2 {
		t.Fatalf("options not applied: %+v", b)
	}
	in[0] = nil
	if b.Mw[0] == nil {
		t.Fatalf("Build must copy the middleware slice")
	}
	b.Register(nil)
	if !called {
		t.Fatalf("register hook not kept")
	}
}

func TestDeps_MustKV(t *testing.T) {
	kit.MustPanic(t, func() { Deps{}.MustKV("persona") })

	s, c := Deps{KV: kv.NewMemory()}.MustKV("persona")
	if s == nil || c.Name() != kv.CodecJSON {
		t.Fatalf("MustKV defaults = %v %v", s, c)
	}
	_, c = Deps{KV: kv.NewMemory(), Codec: kv.Msgpack{}}.MustKV("persona")
	if c.Name() != kv.CodecMsgpack {
		t.Fatalf("codec = %s", c.Name())
	}
}

func TestDeps_Logger(t *testing.T) {
	if (Deps{}).Logger("feed") == nil {
		t.Fatalf("nil logger")
	}
}
