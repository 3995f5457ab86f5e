package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/storage"
)

// --- Activities ---

// CreateActivity stores a new activity with a fresh ID
func (s *Service) CreateActivity(ctx context.Context, userID string, in models.ActivityInput) (*models.Activity, error) {
	if err := s.checkPoints(in.Points); err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	a := &models.Activity{
		ID:          uuid.New().String(),
		UserID:      userID,
		Description: in.Description,
		Date:        in.Date,
		Category:    in.Category,
		Type:        in.Type,
		Points:      in.Points,
		Comments:    in.Comments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateActivity(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save activity: %w", err)
	}

	slog.Info("activity created", "user_id", userID, "activity_id", a.ID, "points", a.Points.Float())
	s.notify(ctx, userID, models.CollectionActivities)
	return a, nil
}

// GetActivity returns one activity
func (s *Service) GetActivity(ctx context.Context, userID, id string) (*models.Activity, error) {
	a, err := s.repo.GetActivity(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if a == nil {
		return nil, ErrActivityNotFound
	}
	return a, nil
}

// UpdateActivity replaces an activity's fields. ID and creation time are
// kept.
func (s *Service) UpdateActivity(ctx context.Context, userID, id string, in models.ActivityInput) (*models.Activity, error) {
	if err := s.checkPoints(in.Points); err != nil {
		return nil, err
	}

	a, err := s.GetActivity(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	a.Description = in.Description
	a.Date = in.Date
	a.Category = in.Category
	a.Type = in.Type
	a.Points = in.Points
	a.Comments = in.Comments
	a.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateActivity(ctx, a); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}

	s.notify(ctx, userID, models.CollectionActivities)
	return a, nil
}

// DeleteActivity removes an activity
func (s *Service) DeleteActivity(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteActivity(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrActivityNotFound
		}
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	slog.Info("activity deleted", "user_id", userID, "activity_id", id)
	s.notify(ctx, userID, models.CollectionActivities)
	return nil
}

// GetActivities returns every activity a user has logged
func (s *Service) GetActivities(ctx context.Context, userID string) ([]*models.Activity, error) {
	activities, err := s.repo.GetActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (s *Service) checkPoints(p models.Points) error {
	if s.policy.RejectNegative && p < 0 {
		return fmt.Errorf("%w: got %v", ErrNegativePoints, p.Float())
	}
	return nil
}

// --- Tasks ---

// CreateTask stores a task document as given
func (s *Service) CreateTask(ctx context.Context, userID string, doc models.DeadlineDoc) (*models.StoredDeadline, error) {
	return s.createDeadline(ctx, models.CollectionTasks, userID, doc)
}

// UpdateTask replaces a task document
func (s *Service) UpdateTask(ctx context.Context, userID, id string, doc models.DeadlineDoc) (*models.StoredDeadline, error) {
	d, err := s.getDeadline(ctx, models.CollectionTasks, userID, id)
	if err != nil {
		return nil, err
	}
	d.Doc = doc
	return s.saveDeadline(ctx, models.CollectionTasks, d)
}

// CompleteTask marks a task done. Both completion spellings are written so
// older clients agree.
func (s *Service) CompleteTask(ctx context.Context, userID, id string) (*models.StoredDeadline, error) {
	d, err := s.getDeadline(ctx, models.CollectionTasks, userID, id)
	if err != nil {
		return nil, err
	}
	d.Doc.Completed = true
	d.Doc.Status = "completed"
	return s.saveDeadline(ctx, models.CollectionTasks, d)
}

// DeleteTask removes a task
func (s *Service) DeleteTask(ctx context.Context, userID, id string) error {
	return s.deleteDeadline(ctx, models.CollectionTasks, userID, id)
}

// ListTasks returns a user's task documents
func (s *Service) ListTasks(ctx context.Context, userID string) ([]*models.StoredDeadline, error) {
	return s.listDeadlines(ctx, models.CollectionTasks, userID)
}

// --- Events ---

// CreateEvent stores an event document as given
func (s *Service) CreateEvent(ctx context.Context, userID string, doc models.DeadlineDoc) (*models.StoredDeadline, error) {
	return s.createDeadline(ctx, models.CollectionEvents, userID, doc)
}

// DeleteEvent removes an event
func (s *Service) DeleteEvent(ctx context.Context, userID, id string) error {
	return s.deleteDeadline(ctx, models.CollectionEvents, userID, id)
}

// ListEvents returns a user's event documents
func (s *Service) ListEvents(ctx context.Context, userID string) ([]*models.StoredDeadline, error) {
	return s.listDeadlines(ctx, models.CollectionEvents, userID)
}

// --- Shared deadline plumbing ---

func notFound(c models.Collection) error {
	if c == models.CollectionEvents {
		return ErrEventNotFound
	}
	return ErrTaskNotFound
}

func (s *Service) createDeadline(ctx context.Context, c models.Collection, userID string, doc models.DeadlineDoc) (*models.StoredDeadline, error) {
	now := s.clock().UTC()
	d := &models.StoredDeadline{
		ID:        uuid.New().String(),
		UserID:    userID,
		Doc:       doc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.Doc.ID = d.ID

	if err := s.repo.CreateDeadline(ctx, c, d); err != nil {
		return nil, fmt.Errorf("failed to save %s document: %w", c, err)
	}

	slog.Info("deadline created", "user_id", userID, "collection", c, "id", d.ID)
	s.notify(ctx, userID, c)
	return d, nil
}

func (s *Service) getDeadline(ctx context.Context, c models.Collection, userID, id string) (*models.StoredDeadline, error) {
	d, err := s.repo.GetDeadline(ctx, c, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s document: %w", c, err)
	}
	if d == nil {
		return nil, notFound(c)
	}
	return d, nil
}

func (s *Service) saveDeadline(ctx context.Context, c models.Collection, d *models.StoredDeadline) (*models.StoredDeadline, error) {
	d.Doc.ID = d.ID
	d.UpdatedAt = s.clock().UTC()

	if err := s.repo.UpdateDeadline(ctx, c, d); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound(c)
		}
		return nil, fmt.Errorf("failed to update %s document: %w", c, err)
	}

	s.notify(ctx, d.UserID, c)
	return d, nil
}

func (s *Service) deleteDeadline(ctx context.Context, c models.Collection, userID, id string) error {
	if err := s.repo.DeleteDeadline(ctx, c, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound(c)
		}
		return fmt.Errorf("failed to delete %s document: %w", c, err)
	}

	s.notify(ctx, userID, c)
	return nil
}

func (s *Service) listDeadlines(ctx context.Context, c models.Collection, userID string) ([]*models.StoredDeadline, error) {
	docs, err := s.repo.ListDeadlines(ctx, c, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c, err)
	}
	return docs, nil
}

// --- Profile ---

// GetProfile returns a user's profile
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// UpsertProfile creates or replaces a profile. A selected specialty must
// exist in the catalog.
func (s *Service) UpsertProfile(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error) {
	if in.SpecialtyID != "" && s.catalog.Specialty(in.SpecialtyID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrSpecialtyNotFound, in.SpecialtyID)
	}

	existing, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	now := s.clock().UTC()
	p := &models.Profile{
		UserID:      userID,
		DisplayName: in.DisplayName,
		Grade:       in.Grade,
		SpecialtyID: in.SpecialtyID,
		LegacyTasks: in.LegacyTasks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		p.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	s.notify(ctx, userID, models.CollectionProfile)
	return p, nil
}
