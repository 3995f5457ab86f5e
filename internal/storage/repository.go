package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// ErrNotFound is returned by updates and deletes that matched no row.
// Getters return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for the trainee document store
type Repository interface {
	// Activities
	CreateActivity(ctx context.Context, a *models.Activity) error
	GetActivity(ctx context.Context, userID, id string) (*models.Activity, error)
	UpdateActivity(ctx context.Context, a *models.Activity) error
	DeleteActivity(ctx context.Context, userID, id string) error
	GetActivities(ctx context.Context, userID string) ([]*models.Activity, error)

	// Tasks and events
	CreateDeadline(ctx context.Context, c models.Collection, d *models.StoredDeadline) error
	GetDeadline(ctx context.Context, c models.Collection, userID, id string) (*models.StoredDeadline, error)
	UpdateDeadline(ctx context.Context, c models.Collection, d *models.StoredDeadline) error
	DeleteDeadline(ctx context.Context, c models.Collection, userID, id string) error
	ListDeadlines(ctx context.Context, c models.Collection, userID string) ([]*models.StoredDeadline, error)

	// Profiles
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// deadlineTable maps a collection to its table. Table names are never
// taken from user input.
func deadlineTable(c models.Collection) (string, error) {
	switch c {
	case models.CollectionTasks:
		return "tasks", nil
	case models.CollectionEvents:
		return "events", nil
	}
	return "", fmt.Errorf("not a deadline collection: %q", c)
}
