// Package feed carries change notifications from writers to live
// subscribers. A subscriber learns that one of a user's collections moved
// and re-reads it; the payload never carries the documents themselves.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// Change announces a write to one of a user's collections. A Change with
// an empty UserID is a broadcast addressed to every subscriber.
type Change struct {
	UserID     string            `json:"user_id,omitempty"`
	Collection models.Collection `json:"collection,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	At         time.Time         `json:"at"`
}

// IsBroadcast reports whether the change is addressed to everyone
func (c Change) IsBroadcast() bool {
	return c.UserID == ""
}

// Handler receives changes. It runs on the feed's delivery goroutine and
// must not block.
type Handler func(Change)

// Feed is the publish/subscribe surface used by the tracker and live views
type Feed interface {
	// Publish notifies subscribers of change.UserID
	Publish(ctx context.Context, change Change) error

	// Broadcast notifies every subscriber
	Broadcast(ctx context.Context, reason string) error

	// Subscribe delivers changes for userID, and broadcasts, to fn until
	// the returned function is called or ctx ends.
	Subscribe(ctx context.Context, userID string, fn Handler) (func(), error)

	HealthCheck(ctx context.Context) error
	Close() error
}

const (
	channelPrefix    = "pathway:user:"
	broadcastChannel = "pathway:broadcast"
)

func userChannel(userID string) string {
	return channelPrefix + userID
}

func encode(c Change) ([]byte, error) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change: %w", err)
	}
	return data, nil
}

func decode(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("failed to decode change: %w", err)
	}
	return c, nil
}
