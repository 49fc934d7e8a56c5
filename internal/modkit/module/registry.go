package module

import "sync"

// process wide registry of mounted modules; api.Mount fills it in mount order so a
// module built later can find the ports of one built before it
var (
	mu  sync.RWMutex
	reg = map[string]Module{}
)

// Register records m under its name; a later module with the same name replaces it
func Register(m Module) {
	mu.Lock()
	reg[m.Name()] = m
	mu.Unlock()
}

// Lookup returns the module registered under name
func Lookup(name string) (Module, bool) {
	mu.RLock()
	m, ok := reg[name]
	mu.RUnlock()
	return m, ok
}

// PortsAs pulls T out of the ports of the module registered under name, see PortsOf
func PortsAs[T any](name string) (T, bool) {
	m, ok := Lookup(name)
	if !ok {
		var zero T
		return zero, false
	}
	return PortsOf[T](m)
}

// Reset clears the registry for tests
func Reset() {
	mu.Lock()
	reg = map[string]Module{}
	mu.Unlock()
}
