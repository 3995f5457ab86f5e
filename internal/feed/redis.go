package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFeed fans changes out across engine instances with Redis pub/sub
type RedisFeed struct {
	client *redis.Client
}

// RedisConfig holds connection settings for the feed
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisFeed connects to Redis and verifies the connection
func NewRedisFeed(ctx context.Context, cfg RedisConfig) (*RedisFeed, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisFeed{client: client}, nil
}

// Publish sends change on the user's channel
func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	if change.IsBroadcast() {
		return fmt.Errorf("publish requires a user id")
	}
	payload, err := encode(change)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, userChannel(change.UserID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Broadcast sends a refresh to every subscriber
func (f *RedisFeed) Broadcast(ctx context.Context, reason string) error {
	payload, err := encode(Change{Reason: reason})
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, broadcastChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to broadcast: %w", err)
	}
	return nil
}

// Subscribe listens on the user's channel and the broadcast channel
func (f *RedisFeed) Subscribe(ctx context.Context, userID string, fn Handler) (func(), error) {
	pubsub := f.client.Subscribe(ctx, userChannel(userID), broadcastChannel)

	// Wait for the subscription to be confirmed so no publish is missed
	// between Subscribe returning and the first message.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	var once sync.Once
	done := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	msgs := pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				change, err := decode(msg.Payload)
				if err != nil {
					slog.Warn("dropping malformed change", "channel", msg.Channel, "error", err)
					continue
				}
				fn(change)
			}
		}
	}()

	slog.Debug("subscribed to change feed", "user_id", userID)
	return unsubscribe, nil
}

// HealthCheck pings Redis
func (f *RedisFeed) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := f.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (f *RedisFeed) Close() error {
	return f.client.Close()
}
