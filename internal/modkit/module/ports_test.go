package module

import (
	"testing"

	phttp "dayonme/internal/platform/net/http"
	kit "dayonme/internal/platform/testkit"
)

type lookupPort interface{ Lookup() int }

type lookupImpl struct{ v int }

func (l lookupImpl) Lookup() int { return l.v }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Name() string             { return m.name }
func (m fakeModule) Ports() PortSet           { return m.ports }
func (m fakeModule) MountRoutes(phttp.Router) {}

func TestPortsOf(t *testing.T) {
	type bundle struct {
		Personas lookupPort
		Count    int
	}
	type hidden struct{ personas lookupPort }

	tests := []struct {
		name  string
		ports any
		want  int
		ok    bool
	}{
		{"nil", nil, 0, false},
		{"direct", lookupPort(lookupImpl{v: 42}), 42, true},
		{"exported field", bundle{Personas: lookupImpl{v: 7}}, 7, true},
		{"unexported field", hidden{personas: lookupImpl{v: 1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PortsOf[lookupPort](fakeModule{name: tt.name, ports: tt.ports})
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Lookup() != tt.want {
				t.Fatalf("Lookup = %d, want %d", got.Lookup(), tt.want)
			}
		})
	}
}

func TestModule_Contract(t *testing.T) {
	var m Module = fakeModule{name: "feed"}
	kit.MustNotPanic(t, func() { m.MountRoutes(nil) })
}
