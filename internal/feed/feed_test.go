package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pathway-engine/internal/models"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) handle(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func TestLocalFeedRoutesByUser(t *testing.T) {
	ctx := context.Background()
	f := NewLocalFeed()

	var alice, bob recorder
	_, err := f.Subscribe(ctx, "alice", alice.handle)
	require.NoError(t, err)
	_, err = f.Subscribe(ctx, "bob", bob.handle)
	require.NoError(t, err)

	require.NoError(t, f.Publish(ctx, Change{UserID: "alice", Collection: models.CollectionActivities}))
	require.NoError(t, f.Broadcast(ctx, "day rollover"))

	got := alice.all()
	require.Len(t, got, 2)
	assert.Equal(t, models.CollectionActivities, got[0].Collection)
	assert.False(t, got[0].At.IsZero())
	assert.True(t, got[1].IsBroadcast())
	assert.Equal(t, "day rollover", got[1].Reason)

	require.Len(t, bob.all(), 1, "bob only sees the broadcast")
}

func TestLocalFeedUnsubscribe(t *testing.T) {
	ctx := context.Background()
	f := NewLocalFeed()

	var rec recorder
	unsubscribe, err := f.Subscribe(ctx, "alice", rec.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, f.Subscribers())

	require.NoError(t, f.Publish(ctx, Change{UserID: "alice", Collection: models.CollectionTasks}))
	assert.Empty(t, rec.all())
}

func TestLocalFeedContextCancel(t *testing.T) {
	f := NewLocalFeed()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := f.Subscribe(ctx, "alice", func(Change) {})
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool { return f.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLocalFeedClosed(t *testing.T) {
	ctx := context.Background()
	f := NewLocalFeed()
	require.NoError(t, f.Close())

	assert.Error(t, f.HealthCheck(ctx))
	assert.Error(t, f.Publish(ctx, Change{UserID: "alice"}))
	_, err := f.Subscribe(ctx, "alice", func(Change) {})
	assert.Error(t, err)
}

func TestPublishRequiresUser(t *testing.T) {
	f := NewLocalFeed()
	assert.Error(t, f.Publish(context.Background(), Change{Collection: models.CollectionProfile}))
}

func TestCodec(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := encode(Change{UserID: "u1", Collection: models.CollectionEvents, At: at})
	require.NoError(t, err)

	c, err := decode(string(payload))
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, models.CollectionEvents, c.Collection)
	assert.True(t, c.At.Equal(at))

	_, err = decode("not json")
	assert.Error(t, err)

	assert.Equal(t, "pathway:user:u1", userChannel("u1"))
}
