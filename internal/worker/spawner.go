// Package worker abstracts the creation of long-lived goroutines so failure to
// start one can be handled, and simulated in tests.
package worker

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSpawnLimit is returned when no more workers may be created.
var ErrSpawnLimit = errors.New("worker: spawn limit reached")

// Spawner starts fn on a new worker named name.
type Spawner interface {
	Spawn(name string, fn func()) error
}

// GoSpawner runs every worker on its own goroutine.
type GoSpawner struct{}

func (GoSpawner) Spawn(name string, fn func()) error {
	go fn()
	return nil
}

// LimitedSpawner allows at most Limit workers over its whole life. Workers
// started directly through it count toward the same limit.
type LimitedSpawner struct {
	mu      sync.Mutex
	limit   int
	spawned []string
	next    Spawner
}

// NewLimitedSpawner wraps next, defaulting to GoSpawner.
func NewLimitedSpawner(limit int, next Spawner) *LimitedSpawner {
	if next == nil {
		next = GoSpawner{}
	}
	return &LimitedSpawner{limit: limit, next: next}
}

func (s *LimitedSpawner) Spawn(name string, fn func()) error {
	s.mu.Lock()
	if len(s.spawned) >= s.limit {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w (%d)", name, ErrSpawnLimit, s.limit)
	}
	s.spawned = append(s.spawned, name)
	s.mu.Unlock()

	return s.next.Spawn(name, fn)
}

// Spawned returns the names of the workers created so far.
func (s *LimitedSpawner) Spawned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spawned...)
}
