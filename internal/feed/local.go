package feed

import (
	"context"
	"fmt"
	"sync"
)

// LocalFeed delivers changes within a single process. It backs SQLite
// deployments and tests.
type LocalFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
	closed bool
}

type subscription struct {
	userID string
	fn     Handler
}

// NewLocalFeed creates an in-process feed
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[int]subscription)}
}

// Publish delivers change to the user's subscribers before returning
func (f *LocalFeed) Publish(ctx context.Context, change Change) error {
	if change.IsBroadcast() {
		return fmt.Errorf("publish requires a user id")
	}
	return f.deliver(change)
}

// Broadcast delivers a refresh to every subscriber before returning
func (f *LocalFeed) Broadcast(ctx context.Context, reason string) error {
	return f.deliver(Change{Reason: reason})
}

func (f *LocalFeed) deliver(change Change) error {
	payload, err := encode(change)
	if err != nil {
		return err
	}
	// Round-trip so local and Redis subscribers see identical values.
	change, err = decode(string(payload))
	if err != nil {
		return err
	}

	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return fmt.Errorf("feed closed")
	}
	var targets []Handler
	for _, s := range f.subs {
		if change.IsBroadcast() || s.userID == change.UserID {
			targets = append(targets, s.fn)
		}
	}
	f.mu.RUnlock()

	for _, fn := range targets {
		fn(change)
	}
	return nil
}

// Subscribe registers fn for userID
func (f *LocalFeed) Subscribe(ctx context.Context, userID string, fn Handler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fmt.Errorf("feed closed")
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = subscription{userID: userID, fn: fn}

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				unsubscribe()
			case <-stop:
			}
		}()
	}

	return unsubscribe, nil
}

// Subscribers returns the number of active subscriptions
func (f *LocalFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// HealthCheck always succeeds while the feed is open
func (f *LocalFeed) HealthCheck(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return fmt.Errorf("feed closed")
	}
	return nil
}

// Close drops all subscriptions
func (f *LocalFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.subs = make(map[int]subscription)
	return nil
}
