package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// newPostgresRepo connects to the database named by DATABASE_TEST_DSN after
// applying the migrations. Tests are skipped when it is unset.
func newPostgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("DATABASE_TEST_DSN")
	if dsn == "" {
		t.Skip("DATABASE_TEST_DSN not set")
	}

	ctx := context.Background()
	require.NoError(t, MigrateFromDSN(ctx, dsn, "../../migrations"))
	// Already-applied migrations are skipped
	require.NoError(t, MigrateFromDSN(ctx, dsn, "../../migrations"))

	repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Ping(ctx))
	return repo
}

func TestPostgresActivities(t *testing.T) {
	ctx := context.Background()
	repo := newPostgresRepo(t)
	user := "u-" + uuid.NewString()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a := &models.Activity{
		ID:          uuid.NewString(),
		UserID:      user,
		Description: "MRCS Part A",
		Date:        "2026-02-20",
		Category:    "Exam",
		Points:      4,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.CreateActivity(ctx, a))
	require.NoError(t, repo.CreateActivity(ctx, &models.Activity{
		ID: uuid.NewString(), UserID: user, Description: "Poster", Points: 2,
		CreatedAt: now.Add(time.Minute), UpdatedAt: now.Add(time.Minute),
	}))

	got, err := repo.GetActivity(ctx, user, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Exam", got.Category)
	assert.Equal(t, models.Points(4), got.Points)
	assert.True(t, got.CreatedAt.Equal(now))

	missing, err := repo.GetActivity(ctx, "someone-else", a.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := repo.GetActivities(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)

	a.Points = 6
	a.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, repo.UpdateActivity(ctx, a))
	got, err = repo.GetActivity(ctx, user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Points(6), got.Points)

	require.NoError(t, repo.DeleteActivity(ctx, user, a.ID))
	assert.ErrorIs(t, repo.DeleteActivity(ctx, user, a.ID), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateActivity(ctx, a), ErrNotFound)
}

func TestPostgresDeadlines(t *testing.T) {
	ctx := context.Background()
	repo := newPostgresRepo(t)
	user := "u-" + uuid.NewString()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	task := &models.StoredDeadline{
		ID:        uuid.NewString(),
		UserID:    user,
		Doc:       models.DeadlineDoc{Task: "Submit portfolio", DueDate: "2026-05-01", Completed: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreateDeadline(ctx, models.CollectionTasks, task))

	got, err := repo.GetDeadline(ctx, models.CollectionTasks, user, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Submit portfolio", got.Doc.Task)
	assert.Equal(t, true, got.Doc.Completed)

	none, err := repo.GetDeadline(ctx, models.CollectionEvents, user, task.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	task.Doc.Completed = "yes"
	task.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.UpdateDeadline(ctx, models.CollectionTasks, task))
	list, err := repo.ListDeadlines(ctx, models.CollectionTasks, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "yes", list[0].Doc.Completed)

	require.NoError(t, repo.DeleteDeadline(ctx, models.CollectionTasks, user, task.ID))
	assert.ErrorIs(t, repo.DeleteDeadline(ctx, models.CollectionTasks, user, task.ID), ErrNotFound)
	assert.ErrorIs(t, repo.UpdateDeadline(ctx, models.CollectionTasks, task), ErrNotFound)
}

func TestPostgresProfile(t *testing.T) {
	ctx := context.Background()
	repo := newPostgresRepo(t)
	user := "u-" + uuid.NewString()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	p, err := repo.GetProfile(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, repo.UpsertProfile(ctx, &models.Profile{
		UserID:      user,
		DisplayName: "Dr Trainee",
		SpecialtyID: "urology",
		LegacyTasks: []models.DeadlineDoc{{Text: "Old task", Deadline: "2026-06-01"}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	p, err = repo.GetProfile(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "urology", p.SpecialtyID)
	require.Len(t, p.LegacyTasks, 1)
	assert.Equal(t, "Old task", p.LegacyTasks[0].Text)

	require.NoError(t, repo.UpsertProfile(ctx, &models.Profile{
		UserID:      user,
		DisplayName: "Dr Trainee",
		SpecialtyID: "ent",
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Second),
	}))

	p, err = repo.GetProfile(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ent", p.SpecialtyID)
	assert.Empty(t, p.LegacyTasks)
	assert.True(t, p.UpdatedAt.Equal(now.Add(time.Second)))
}

func TestPostgresUnknownClient(t *testing.T) {
	repo := newPostgresRepo(t)

	got, err := repo.GetClientByApiKey(context.Background(), "pk_"+uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}
