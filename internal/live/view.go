// Package live keeps a per-connection dashboard current. A View holds the
// latest snapshot of each source and recomputes from all of them whenever
// any one changes, so sources may arrive in any order.
package live

import (
	"sync"
	"time"

	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/tracker"
)

// Composer turns a snapshot into a dashboard
type Composer interface {
	ComposeDashboard(snap *tracker.Snapshot, now time.Time) *tracker.Dashboard
}

// ComposerFunc adapts a function to Composer
type ComposerFunc func(snap *tracker.Snapshot, now time.Time) *tracker.Dashboard

// ComposeDashboard calls f
func (f ComposerFunc) ComposeDashboard(snap *tracker.Snapshot, now time.Time) *tracker.Dashboard {
	return f(snap, now)
}

// View is the latest-known state for one user
type View struct {
	mu       sync.Mutex
	snap     tracker.Snapshot
	received map[models.Collection]bool
	composer Composer
}

// NewView creates an empty view for userID
func NewView(userID string, composer Composer) *View {
	return &View{
		snap:     tracker.Snapshot{UserID: userID},
		received: make(map[models.Collection]bool),
		composer: composer,
	}
}

// Apply replaces the c part of the view with the same part of part and
// returns a dashboard computed from everything held.
func (v *View) Apply(c models.Collection, part *tracker.Snapshot, now time.Time) *tracker.Dashboard {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.snap.Merge(c, part)
	v.received[c] = true
	return v.composeLocked(now)
}

// Recompute returns a dashboard from the held state at now
func (v *View) Recompute(now time.Time) *tracker.Dashboard {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.composeLocked(now)
}

// Complete reports whether every source has been received at least once
func (v *View) Complete() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range tracker.AllCollections() {
		if !v.received[c] {
			return false
		}
	}
	return true
}

func (v *View) composeLocked(now time.Time) *tracker.Dashboard {
	snap := v.snap
	return v.composer.ComposeDashboard(&snap, now)
}
