package live

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pathway-engine/internal/catalog"
	"github.com/terra-clan/pathway-engine/internal/feed"
	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/readiness"
	"github.com/terra-clan/pathway-engine/internal/storage"
	"github.com/terra-clan/pathway-engine/internal/tracker"
)

var now = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]models.Specialty{{ID: "ent", Name: "ENT", TargetPoints: 10}},
		[]models.Guideline{{ID: "bss", Category: "Courses", Title: "BSS", MinPoints: 1}},
	)
	require.NoError(t, err)
	return c
}

func composer(t *testing.T) Composer {
	cat := testCatalog(t)
	return ComposerFunc(func(snap *tracker.Snapshot, at time.Time) *tracker.Dashboard {
		return tracker.ComposeDashboard(snap, cat, readiness.Policy{}, at)
	})
}

func TestViewPartialArrival(t *testing.T) {
	v := NewView("u1", composer(t))

	// Events first, nothing else yet
	d := v.Apply(models.CollectionEvents, &tracker.Snapshot{
		Events: []models.DeadlineDoc{{ID: "e1", Title: "Deanery day", Date: "2026-03-15"}},
	}, now)
	require.NotNil(t, d.NextDeadline)
	assert.Equal(t, "e1", d.NextDeadline.ID)
	assert.Equal(t, 1, d.PendingDeadlines)
	assert.False(t, v.Complete())

	// A later task snapshot does not lose the events
	d = v.Apply(models.CollectionTasks, &tracker.Snapshot{
		Tasks: []models.DeadlineDoc{{ID: "t1", Title: "ARCP form", DueDate: "2026-03-11"}},
	}, now)
	assert.Equal(t, "t1", d.NextDeadline.ID)
	assert.Equal(t, 2, d.PendingDeadlines)

	// Profile with legacy tasks joins the same computation
	d = v.Apply(models.CollectionProfile, &tracker.Snapshot{
		Profile: &models.Profile{
			UserID:      "u1",
			SpecialtyID: "ent",
			LegacyTasks: []models.DeadlineDoc{{Task: "Old", DueDate: "2026-03-10"}},
		},
	}, now)
	assert.Equal(t, "Old", d.NextDeadline.Title)
	assert.Equal(t, 3, d.PendingDeadlines)
	require.NotNil(t, d.Progress)
	assert.Equal(t, 0, *d.Progress)

	d = v.Apply(models.CollectionActivities, &tracker.Snapshot{
		Activities: []*models.Activity{{Description: "BSS course", Points: 5}},
	}, now)
	assert.Equal(t, 50, *d.Progress)
	assert.True(t, v.Complete())

	// Next day: today's legacy task and yesterday's items drop out
	d = v.Recompute(now.AddDate(0, 0, 1))
	assert.Equal(t, "t1", d.NextDeadline.ID)
	assert.Equal(t, 2, d.PendingDeadlines)
}

func TestStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := storage.NewSQLiteRepository(ctx, "file:"+filepath.Join(t.TempDir(), "live.db"))
	require.NoError(t, err)
	defer repo.Close()

	clock := now
	f := feed.NewLocalFeed()
	svc := tracker.NewService(repo, f, testCatalog(t), tracker.Options{
		Clock: func() time.Time { return clock },
	})

	out := make(chan *tracker.Dashboard, 16)
	done := make(chan error, 1)
	go func() {
		done <- Stream(ctx, svc, "u1", func(d *tracker.Dashboard) error {
			out <- d
			return nil
		})
	}()

	first := next(t, out)
	assert.Equal(t, 0, first.Summary.ActivitiesLogged)
	assert.Nil(t, first.NextDeadline)

	_, err = svc.CreateTask(ctx, "u1", models.DeadlineDoc{Title: "Logbook", DueDate: "2026-03-12"})
	require.NoError(t, err)
	d := next(t, out)
	require.NotNil(t, d.NextDeadline)
	assert.Equal(t, "Logbook", d.NextDeadline.Title)

	_, err = svc.CreateActivity(ctx, "u1", models.ActivityInput{Description: "MRCS exam", Points: 4})
	require.NoError(t, err)
	d = next(t, out)
	assert.Equal(t, 1, d.Summary.ActivitiesLogged)
	require.NotNil(t, d.NextDeadline, "task snapshot is kept when only activities change")

	// Other users' writes are not delivered
	_, err = svc.CreateActivity(ctx, "u2", models.ActivityInput{Description: "Other user", Points: 1})
	require.NoError(t, err)

	require.NoError(t, f.Broadcast(ctx, "day rollover"))
	d = next(t, out)
	assert.Equal(t, 1, d.Summary.ActivitiesLogged)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func next(t *testing.T, ch <-chan *tracker.Dashboard) *tracker.Dashboard {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dashboard")
		return nil
	}
}
