// Package rollover notices when the calendar day changes and tells every
// live view to recompute, so deadlines from yesterday drop out even when no
// record has changed.
package rollover

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/pathway-engine/internal/deadlines"
	"github.com/terra-clan/pathway-engine/internal/observability"
)

// Broadcaster is the part of the feed the worker needs
type Broadcaster interface {
	Broadcast(ctx context.Context, reason string) error
}

// Reason is sent with every rollover broadcast
const Reason = "day rollover"

// Worker checks the clock on an interval and broadcasts once per new day
type Worker struct {
	feed     Broadcaster
	interval time.Duration
	loc      *time.Location
	clock    func() time.Time

	day time.Time
}

// NewWorker creates a rollover worker. Days are counted in loc.
func NewWorker(feed Broadcaster, interval time.Duration, loc *time.Location) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Worker{
		feed:     feed,
		interval: interval,
		loc:      loc,
		clock:    time.Now,
	}
}

// Start begins the worker in a goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	slog.Info("rollover worker started", "interval", w.interval, "timezone", w.loc.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Record today without broadcasting
	w.check(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("rollover worker stopped")
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check broadcasts if the day has changed since the last check. It reports
// whether a broadcast was sent.
func (w *Worker) check(ctx context.Context) bool {
	now := w.clock().In(w.loc)
	today := deadlines.StartOfDay(now)

	if w.day.IsZero() {
		w.day = today
		return false
	}
	if !today.After(w.day) {
		return false
	}

	slog.Info("calendar day rolled over", "from", w.day.Format(time.DateOnly), "to", today.Format(time.DateOnly))

	if err := w.feed.Broadcast(ctx, Reason); err != nil {
		// Keep the old day so the next tick retries.
		slog.Error("failed to broadcast rollover", "error", err)
		return false
	}

	w.day = today
	observability.RecordRollover(now)
	return true
}
