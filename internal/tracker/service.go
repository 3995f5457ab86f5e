// Package tracker owns a trainee's records: it validates writes, stores
// them, announces every change on the feed and assembles the dashboard and
// pathway views by re-running the readiness engine over fresh reads.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/terra-clan/pathway-engine/internal/catalog"
	"github.com/terra-clan/pathway-engine/internal/feed"
	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/observability"
	"github.com/terra-clan/pathway-engine/internal/readiness"
	"github.com/terra-clan/pathway-engine/internal/storage"
)

// Common errors
var (
	ErrActivityNotFound  = errors.New("activity not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrSpecialtyNotFound = errors.New("specialty not found")
	ErrNegativePoints    = errors.New("points must not be negative")
)

// Manager defines the interface for trainee record management
type Manager interface {
	CreateActivity(ctx context.Context, userID string, in models.ActivityInput) (*models.Activity, error)
	GetActivity(ctx context.Context, userID, id string) (*models.Activity, error)
	UpdateActivity(ctx context.Context, userID, id string, in models.ActivityInput) (*models.Activity, error)
	DeleteActivity(ctx context.Context, userID, id string) error
	GetActivities(ctx context.Context, userID string) ([]*models.Activity, error)

	CreateTask(ctx context.Context, userID string, doc models.DeadlineDoc) (*models.StoredDeadline, error)
	UpdateTask(ctx context.Context, userID, id string, doc models.DeadlineDoc) (*models.StoredDeadline, error)
	CompleteTask(ctx context.Context, userID, id string) (*models.StoredDeadline, error)
	DeleteTask(ctx context.Context, userID, id string) error
	ListTasks(ctx context.Context, userID string) ([]*models.StoredDeadline, error)

	CreateEvent(ctx context.Context, userID string, doc models.DeadlineDoc) (*models.StoredDeadline, error)
	DeleteEvent(ctx context.Context, userID, id string) error
	ListEvents(ctx context.Context, userID string) ([]*models.StoredDeadline, error)

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error)

	LoadSnapshot(ctx context.Context, userID string, collections ...models.Collection) (*Snapshot, error)
	Dashboard(ctx context.Context, userID string) (*Dashboard, error)
	Pathway(ctx context.Context, userID, specialtyID string) (*Pathway, error)
	ComposeDashboard(snap *Snapshot, now time.Time) *Dashboard
	Now() time.Time

	SubscribeToUser(ctx context.Context, userID string, fn func(*models.ProfileDocument)) (func(), error)
	Watch(ctx context.Context, userID string, fn feed.Handler) (func(), error)

	Ping(ctx context.Context) error
}

// Options tunes a Service
type Options struct {
	Policy   readiness.Policy
	Location *time.Location
	Clock    func() time.Time
}

// Service implements Manager on a Repository and a Feed
type Service struct {
	repo    storage.Repository
	feed    feed.Feed
	catalog *catalog.Catalog
	policy  readiness.Policy
	loc     *time.Location
	clock   func() time.Time
}

// NewService creates a new Service
func NewService(repo storage.Repository, f feed.Feed, cat *catalog.Catalog, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		repo:    repo,
		feed:    f,
		catalog: cat,
		policy:  opts.Policy,
		loc:     loc,
		clock:   clock,
	}
}

// Now returns the current time in the service's calendar location
func (s *Service) Now() time.Time {
	return s.clock().In(s.loc)
}

// Ping checks that the store and the feed are reachable
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.feed.HealthCheck(ctx); err != nil {
		return fmt.Errorf("feed health check failed: %w", err)
	}
	return nil
}

// notify announces a write. A failed publish is logged and counted but
// never fails the write that caused it.
func (s *Service) notify(ctx context.Context, userID string, c models.Collection) {
	change := feed.Change{UserID: userID, Collection: c, At: s.clock().UTC()}
	if err := s.feed.Publish(ctx, change); err != nil {
		observability.RecordPublishFailure()
		slog.Warn("failed to publish change",
			"user_id", userID,
			"collection", c,
			"error", err,
		)
	}
}
