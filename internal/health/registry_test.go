package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckAll(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register("database", CheckFunc(func(ctx context.Context) error { return nil }))
	r.Register("feed", CheckFunc(func(ctx context.Context) error { return errors.New("connection refused") }))

	assert.Equal(t, []string{"database", "feed"}, r.List())

	results := r.HealthCheckAll(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results["database"])
	assert.EqualError(t, results["feed"], "connection refused")
	assert.False(t, Healthy(results))

	r.Unregister("feed")
	assert.True(t, Healthy(r.HealthCheckAll(context.Background())))
}

func TestHealthCheckTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("slow", CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	results := r.HealthCheckAll(context.Background())
	assert.ErrorIs(t, results["slow"], context.DeadlineExceeded)
}
