package service

import (
	"sync"
	"time"

	"dayonme/internal/services/feed/domain"
)

type stopper interface{ Stop() bool }

// reconciler runs delayed refetches after a post is created
// tasks are tied to a fingerprint and die with its cache entry
type reconciler struct {
	delay time.Duration
	after func(time.Duration, func()) stopper

	mu     sync.Mutex
	seq    uint64
	timers map[domain.Fingerprint]map[uint64]stopper
}

func newReconciler(delay time.Duration) *reconciler {
	return &reconciler{
		delay:  delay,
		after:  func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		timers: map[domain.Fingerprint]map[uint64]stopper{},
	}
}

// schedule runs fn once after the delay unless fp is cancelled first
func (r *reconciler) schedule(fp domain.Fingerprint, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := r.seq
	if r.timers[fp] == nil {
		r.timers[fp] = map[uint64]stopper{}
	}
	r.timers[fp][id] = r.after(r.delay, func() {
		r.mu.Lock()
		_, live := r.timers[fp][id]
		delete(r.timers[fp], id)
		r.mu.Unlock()
		if live {
			fn()
		}
	})
}

// cancel stops every pending task of fp and reports how many there were
func (r *reconciler) cancel(fp domain.Fingerprint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.timers[fp] {
		t.Stop()
		n++
	}
	delete(r.timers, fp)
	return n
}

func (r *reconciler) pending(fp domain.Fingerprint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers[fp])
}

func (r *reconciler) stopAll() {
	r.mu.Lock()
	fps := make([]domain.Fingerprint, 0, len(r.timers))
	for fp := range r.timers {
		fps = append(fps, fp)
	}
	r.mu.Unlock()
	for _, fp := range fps {
		r.cancel(fp)
	}
}
