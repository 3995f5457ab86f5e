package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terra-clan/pathway-engine/internal/catalog"
	"github.com/terra-clan/pathway-engine/internal/deadlines"
	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/observability"
	"github.com/terra-clan/pathway-engine/internal/readiness"
)

// Snapshot is everything the views are computed from, as last read
type Snapshot struct {
	UserID     string
	Profile    *models.Profile
	Activities []*models.Activity
	Tasks      []models.DeadlineDoc
	Events     []models.DeadlineDoc
}

// Sources returns the three deadline sources
func (s *Snapshot) Sources() deadlines.Sources {
	src := deadlines.Sources{Tasks: s.Tasks, Events: s.Events}
	if s.Profile != nil {
		src.LegacyTasks = s.Profile.LegacyTasks
	}
	return src
}

// Merge replaces the part of s named by c with the same part of other
func (s *Snapshot) Merge(c models.Collection, other *Snapshot) {
	switch c {
	case models.CollectionActivities:
		s.Activities = other.Activities
	case models.CollectionTasks:
		s.Tasks = other.Tasks
	case models.CollectionEvents:
		s.Events = other.Events
	case models.CollectionProfile:
		s.Profile = other.Profile
	}
}

// AllCollections lists every collection a snapshot holds
func AllCollections() []models.Collection {
	return []models.Collection{
		models.CollectionActivities,
		models.CollectionTasks,
		models.CollectionEvents,
		models.CollectionProfile,
	}
}

// LoadSnapshot reads the named collections, or all of them when none are
// named. Parts not requested are left empty.
func (s *Service) LoadSnapshot(ctx context.Context, userID string, collections ...models.Collection) (*Snapshot, error) {
	if len(collections) == 0 {
		collections = AllCollections()
	}

	snap := &Snapshot{UserID: userID}
	for _, c := range collections {
		switch c {
		case models.CollectionActivities:
			activities, err := s.GetActivities(ctx, userID)
			if err != nil {
				return nil, err
			}
			snap.Activities = activities
		case models.CollectionTasks, models.CollectionEvents:
			docs, err := s.listDeadlines(ctx, c, userID)
			if err != nil {
				return nil, err
			}
			if c == models.CollectionTasks {
				snap.Tasks = models.Docs(docs)
			} else {
				snap.Events = models.Docs(docs)
			}
		case models.CollectionProfile:
			p, err := s.repo.GetProfile(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to get profile: %w", err)
			}
			snap.Profile = p
		default:
			return nil, fmt.Errorf("unknown collection %q", c)
		}
	}
	return snap, nil
}

// Dashboard is the cards-and-gauge view
type Dashboard struct {
	UserID           string            `json:"userId"`
	Summary          readiness.Summary `json:"summary"`
	Readiness        readiness.Series  `json:"readiness"`
	Specialty        *models.Specialty `json:"specialty,omitempty"`
	Progress         *int              `json:"progress"`
	ProgressError    string            `json:"progressError,omitempty"`
	NextDeadline     *deadlines.Item   `json:"nextDeadline"`
	PendingDeadlines int               `json:"pendingDeadlines"`
	GeneratedAt      time.Time         `json:"generatedAt"`
}

// Dashboard reads everything fresh and computes the dashboard
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	snap, err := s.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	observability.RecordRecompute("dashboard")
	return s.ComposeDashboard(snap, s.Now()), nil
}

// ComposeDashboard computes a dashboard from snap using the service's
// catalog and points policy
func (s *Service) ComposeDashboard(snap *Snapshot, now time.Time) *Dashboard {
	return ComposeDashboard(snap, s.catalog, s.policy, now)
}

// ComposeDashboard is the pure dashboard computation. The selected
// specialty comes from the profile; without one, progress is null.
func ComposeDashboard(snap *Snapshot, cat *catalog.Catalog, policy readiness.Policy, now time.Time) *Dashboard {
	summary := readiness.Aggregate(snap.Activities, policy)
	next, pending := deadlines.Next(snap.Sources(), now)

	d := &Dashboard{
		UserID:           snap.UserID,
		Summary:          summary,
		Readiness:        readiness.Normalize(summary.CategoryScores).Series(),
		NextDeadline:     next,
		PendingDeadlines: pending,
		GeneratedAt:      now,
	}

	if snap.Profile != nil && snap.Profile.SpecialtyID != "" {
		d.Specialty, d.Progress, d.ProgressError = progressFor(cat, snap.Profile.SpecialtyID, summary.TotalPoints)
	}
	return d
}

func progressFor(cat *catalog.Catalog, specialtyID string, total float64) (*models.Specialty, *int, string) {
	spec := cat.Specialty(specialtyID)
	if spec == nil {
		return nil, nil, fmt.Sprintf("%v: %s", ErrSpecialtyNotFound, specialtyID)
	}
	pct, err := readiness.Progress(total, spec.TargetPoints)
	if err != nil {
		return spec, nil, err.Error()
	}
	return spec, &pct, ""
}

// ChecklistItem is one guideline with the trainee's points in its bucket
type ChecklistItem struct {
	Guideline models.Guideline `json:"guideline"`
	Points    float64          `json:"points"`
	Met       bool             `json:"met"`
}

// Pathway is the radar-and-checklist view
type Pathway struct {
	UserID        string            `json:"userId"`
	Specialty     *models.Specialty `json:"specialty,omitempty"`
	Summary       readiness.Summary `json:"summary"`
	Readiness     readiness.Series  `json:"readiness"`
	Progress      *int              `json:"progress"`
	ProgressError string            `json:"progressError,omitempty"`
	Checklist     []ChecklistItem   `json:"checklist"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

// Pathway computes the pathway view for specialtyID, or for the
// profile's specialty when specialtyID is empty.
func (s *Service) Pathway(ctx context.Context, userID, specialtyID string) (*Pathway, error) {
	snap, err := s.LoadSnapshot(ctx, userID, models.CollectionActivities, models.CollectionProfile)
	if err != nil {
		return nil, err
	}
	observability.RecordRecompute("pathway")
	return ComposePathway(snap, s.catalog, s.policy, specialtyID, s.Now())
}

// ComposePathway is the pure pathway computation
func ComposePathway(snap *Snapshot, cat *catalog.Catalog, policy readiness.Policy, specialtyID string, now time.Time) (*Pathway, error) {
	if specialtyID == "" && snap.Profile != nil {
		specialtyID = snap.Profile.SpecialtyID
	}

	summary := readiness.Aggregate(snap.Activities, policy)
	p := &Pathway{
		UserID:      snap.UserID,
		Summary:     summary,
		Readiness:   readiness.Normalize(summary.CategoryScores).Series(),
		GeneratedAt: now,
	}

	if specialtyID != "" {
		spec, pct, msg := progressFor(cat, specialtyID, summary.TotalPoints)
		if spec == nil {
			return nil, fmt.Errorf("%w: %s", ErrSpecialtyNotFound, specialtyID)
		}
		p.Specialty, p.Progress, p.ProgressError = spec, pct, msg
	}

	guidelines := cat.GuidelinesFor(specialtyID)
	p.Checklist = make([]ChecklistItem, 0, len(guidelines))
	for _, g := range guidelines {
		bucket, _ := readiness.ParseCategory(g.Category)
		pts := summary.CategoryScores.Get(bucket)
		p.Checklist = append(p.Checklist, ChecklistItem{
			Guideline: g,
			Points:    pts,
			Met:       pts >= g.MinPoints,
		})
	}

	return p, nil
}

// IsNotFound reports whether err is one of the tracker's not-found errors
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActivityNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrSpecialtyNotFound)
}
