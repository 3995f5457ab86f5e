package live

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/terra-clan/pathway-engine/internal/feed"
	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/observability"
	"github.com/terra-clan/pathway-engine/internal/tracker"
)

// Source is what a stream reads from
type Source interface {
	Composer
	LoadSnapshot(ctx context.Context, userID string, collections ...models.Collection) (*tracker.Snapshot, error)
	Watch(ctx context.Context, userID string, fn feed.Handler) (func(), error)
	Now() time.Time
}

const changeBuffer = 64

// Stream sends an initial dashboard for userID and a fresh one after every
// change, until ctx ends or send fails. Only the changed source is re-read;
// a broadcast, or a burst that overflows the buffer, re-reads everything.
func Stream(ctx context.Context, src Source, userID string, send func(*tracker.Dashboard) error) error {
	changes := make(chan feed.Change, changeBuffer)
	var overflowed atomic.Bool

	// Subscribe before the first read so nothing between them is lost.
	unsubscribe, err := src.Watch(ctx, userID, func(c feed.Change) {
		select {
		case changes <- c:
		default:
			if !overflowed.Swap(true) {
				// Leave a marker so the loop wakes up and reloads.
				select {
				case changes <- feed.Change{Reason: "overflow"}:
				default:
				}
			}
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	view := NewView(userID, src)

	dashboard, err := reloadAll(ctx, src, view, userID)
	if err != nil {
		return err
	}
	observability.RecordRecompute("live")
	if err := send(dashboard); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-changes:
			var d *tracker.Dashboard
			if c.IsBroadcast() || overflowed.Swap(false) {
				d, err = reloadAll(ctx, src, view, userID)
			} else {
				d, err = reloadOne(ctx, src, view, userID, c.Collection)
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Warn("live reload failed, keeping previous snapshot",
					"user_id", userID,
					"collection", c.Collection,
					"error", err,
				)
				continue
			}

			observability.RecordRecompute("live")
			if err := send(d); err != nil {
				return err
			}
		}
	}
}

func reloadAll(ctx context.Context, src Source, view *View, userID string) (*tracker.Dashboard, error) {
	snap, err := src.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := src.Now()
	var d *tracker.Dashboard
	for _, c := range tracker.AllCollections() {
		d = view.Apply(c, snap, now)
	}
	return d, nil
}

func reloadOne(ctx context.Context, src Source, view *View, userID string, c models.Collection) (*tracker.Dashboard, error) {
	part, err := src.LoadSnapshot(ctx, userID, c)
	if err != nil {
		return nil, err
	}
	return view.Apply(c, part, src.Now()), nil
}
