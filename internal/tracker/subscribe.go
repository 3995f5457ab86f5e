package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/terra-clan/pathway-engine/internal/feed"
	"github.com/terra-clan/pathway-engine/internal/models"
)

// ProfileDocument returns the profile with its activities attached. A user
// with no stored profile still gets a document carrying their activities.
func (s *Service) ProfileDocument(ctx context.Context, userID string) (*models.ProfileDocument, error) {
	snap, err := s.LoadSnapshot(ctx, userID, models.CollectionProfile, models.CollectionActivities)
	if err != nil {
		return nil, err
	}

	doc := &models.ProfileDocument{Activities: snap.Activities}
	if snap.Profile != nil {
		doc.Profile = *snap.Profile
	} else {
		doc.Profile = models.Profile{UserID: userID}
	}
	return doc, nil
}

// Watch forwards raw change notifications for userID
func (s *Service) Watch(ctx context.Context, userID string, fn feed.Handler) (func(), error) {
	return s.feed.Subscribe(ctx, userID, fn)
}

// SubscribeToUser calls fn with the current profile document, then again
// after every change to the user's profile or activities. Bursts of changes
// are coalesced: fn always sees the latest document, not every step. fn
// runs on a single goroutine, never concurrently with itself.
func (s *Service) SubscribeToUser(ctx context.Context, userID string, fn func(*models.ProfileDocument)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	kick := make(chan struct{}, 1)
	signal := func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}

	unsubscribe, err := s.feed.Subscribe(ctx, userID, func(c feed.Change) {
		switch {
		case c.IsBroadcast(),
			c.Collection == models.CollectionActivities,
			c.Collection == models.CollectionProfile:
			signal()
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}

	signal()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
				doc, err := s.ProfileDocument(ctx, userID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Warn("failed to load profile document", "user_id", userID, "error", err)
					continue
				}
				if ctx.Err() != nil {
					return
				}
				fn(doc)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			cancel()
		})
	}, nil
}
