package services

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"
)

// RunGuard rejects overlapping update runs. The mutex covers the HTTP
// trigger and the in-process cron; the optional file lock covers separate
// scheduler processes on the same host.
type RunGuard struct {
	mu   sync.Mutex
	file *flock.Flock
}

// NewRunGuard creates a guard. An empty lockPath disables the file lock.
func NewRunGuard(lockPath string) *RunGuard {
	g := &RunGuard{}
	if lockPath != "" {
		g.file = flock.New(lockPath)
	}
	return g
}

// TryAcquire returns a release func, or ErrRunInProgress when a run holds the guard.
func (g *RunGuard) TryAcquire() (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	if g.file != nil {
		ok, err := g.file.TryLock()
		if err != nil {
			g.mu.Unlock()
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			g.mu.Unlock()
			return nil, ErrRunInProgress
		}
	}
	return func() {
		if g.file != nil {
			_ = g.file.Unlock()
		}
		g.mu.Unlock()
	}, nil
}
