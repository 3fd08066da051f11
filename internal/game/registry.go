package game

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Registry hands out one Controller per user so that every request for the
// same user goes through the same session.
type Registry struct {
	deps Deps

	mu          sync.Mutex
	controllers map[string]*Controller
	listeners   []func(Event)
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, controllers: make(map[string]*Controller)}
}

// Get returns the user's controller, creating it on first use. The balance
// is loaded from the store without holding the registry lock.
func (r *Registry) Get(ctx context.Context, userID string) (*Controller, error) {
	userID = strings.TrimSpace(userID)
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	c, ok := r.controllers[userID]
	r.mu.Unlock()
	if ok {
		c.touch()
		return c, nil
	}

	fresh, err := NewController(ctx, userID, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[userID]; ok {
		c.touch()
		return c, nil
	}
	for _, fn := range r.listeners {
		fresh.Subscribe(fn)
	}
	r.controllers[userID] = fresh
	return fresh, nil
}

// Sweep drops controllers whose session is Idle and that have seen no
// activity for maxIdle. It returns how many were dropped. A dropped user gets
// a fresh controller, with the balance reloaded from the store, on the next
// Get.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := time.Now
	if r.deps.Now != nil {
		now = r.deps.Now
	}
	cutoff := now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, c := range r.controllers {
		if c.idleSince(cutoff) {
			delete(r.controllers, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. after, if set,
// sees the number dropped and the remaining count.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration, after func(dropped, remaining int)) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n := r.Sweep(maxIdle)
			if after != nil {
				after(n, r.Len())
			}
		}
	}
}

// OnEvent subscribes fn to every controller, current and future.
func (r *Registry) OnEvent(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
	for _, c := range r.controllers {
		c.Subscribe(fn)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

func (r *Registry) Odds() *OddsTable {
	if r.deps.Odds == nil {
		return DefaultOdds()
	}
	return r.deps.Odds
}
