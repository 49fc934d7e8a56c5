package testkit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Eventually polls cond every few milliseconds until it holds or timeout elapses
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Gate parks callers of Wait until Open is called, and records how many arrived
// Fakes use it to hold a remote call in flight while a test inspects intermediate state
type Gate struct {
	once    sync.Once
	open    chan struct{}
	mu      sync.Mutex
	arrived int
	entered chan struct{}
}

// NewGate returns a closed gate
func NewGate() *Gate {
	return &Gate{open: make(chan struct{}), entered: make(chan struct{}, 64)}
}

// Wait blocks until the gate opens or ctx ends
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	g.arrived++
	g.mu.Unlock()
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entered blocks until one caller reached Wait, failing the test after timeout
func (g *Gate) Entered(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(timeout):
		t.Fatalf("nobody reached the gate within %v", timeout)
	}
}

// Open releases every current and future waiter
func (g *Gate) Open() { g.once.Do(func() { close(g.open) }) }

// Arrived reports how many callers reached Wait
func (g *Gate) Arrived() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.arrived
}
