package tracker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pathway-engine/internal/catalog"
	"github.com/terra-clan/pathway-engine/internal/feed"
	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/readiness"
	"github.com/terra-clan/pathway-engine/internal/storage"
)

var fixedNow = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]models.Specialty{
			{ID: "general-surgery", Name: "General Surgery", TargetPoints: 40},
			{ID: "urology", Name: "Urology", TargetPoints: 5, Guidelines: []string{"mrcs", "audit"}},
			{ID: "broken", Name: "Broken", TargetPoints: 0},
		},
		[]models.Guideline{
			{ID: "mrcs", Category: "Exams", Title: "MRCS", MinPoints: 4},
			{ID: "audit", Category: "Audit/QIP", Title: "Closed-loop audit", MinPoints: 3},
			{ID: "bss", Category: "Courses", Title: "BSS", MinPoints: 1},
		},
	)
	require.NoError(t, err)
	return c
}

type harness struct {
	svc  *Service
	feed *feed.LocalFeed
	repo *storage.SQLiteRepository
}

func newHarness(t *testing.T, policy readiness.Policy) *harness {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(context.Background(), "file:"+filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	f := feed.NewLocalFeed()
	svc := NewService(repo, f, testCatalog(t), Options{
		Policy: policy,
		Clock:  func() time.Time { return fixedNow },
	})
	return &harness{svc: svc, feed: f, repo: repo}
}

type changeLog struct {
	mu      sync.Mutex
	changes []feed.Change
}

func (l *changeLog) record(c feed.Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) collections() []models.Collection {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Collection, 0, len(l.changes))
	for _, c := range l.changes {
		out = append(out, c.Collection)
	}
	return out
}

func TestActivityLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, readiness.Policy{})

	var log changeLog
	_, err := h.feed.Subscribe(ctx, "u1", log.record)
	require.NoError(t, err)

	a, err := h.svc.CreateActivity(ctx, "u1", models.ActivityInput{
		Description: "MRCS Part A",
		Points:      models.ParsePoints("4"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, fixedNow, a.CreatedAt)

	updated, err := h.svc.UpdateActivity(ctx, "u1", a.ID, models.ActivityInput{
		Description: "MRCS Part A (resit)",
		Points:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, updated.ID)
	assert.Equal(t, models.Points(5), updated.Points)

	list, err := h.svc.GetActivities(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "MRCS Part A (resit)", list[0].Description)

	require.NoError(t, h.svc.DeleteActivity(ctx, "u1", a.ID))
	assert.ErrorIs(t, h.svc.DeleteActivity(ctx, "u1", a.ID), ErrActivityNotFound)

	_, err = h.svc.GetActivity(ctx, "u1", a.ID)
	assert.ErrorIs(t, err, ErrActivityNotFound)
	_, err = h.svc.UpdateActivity(ctx, "u1", a.ID, models.ActivityInput{})
	assert.ErrorIs(t, err, ErrActivityNotFound)

	assert.Equal(t, []models.Collection{
		models.CollectionActivities,
		models.CollectionActivities,
		models.CollectionActivities,
	}, log.collections())
}

func TestNegativePointsPolicy(t *testing.T) {
	ctx := context.Background()

	permissive := newHarness(t, readiness.Policy{})
	_, err := permissive.svc.CreateActivity(ctx, "u1", models.ActivityInput{Description: "Correction", Points: -2})
	require.NoError(t, err)

	strict := newHarness(t, readiness.Policy{RejectNegative: true})
	_, err = strict.svc.CreateActivity(ctx, "u1", models.ActivityInput{Description: "Correction", Points: -2})
	assert.ErrorIs(t, err, ErrNegativePoints)
}

func TestTasksAndEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, readiness.Policy{})

	task, err := h.svc.CreateTask(ctx, "u1", models.DeadlineDoc{Task: "Logbook sign-off", Deadline: "2026-03-12"})
	require.NoError(t, err)
	assert.Equal(t, task.ID, task.Doc.ID)

	done, err := h.svc.CompleteTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, true, done.Doc.Completed)
	assert.Equal(t, "completed", done.Doc.Status)
	assert.Equal(t, "Logbook sign-off", done.Doc.Task, "legacy field names survive updates")

	_, err = h.svc.UpdateTask(ctx, "u1", "missing", models.DeadlineDoc{})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	event, err := h.svc.CreateEvent(ctx, "u1", models.DeadlineDoc{Title: "Deanery teaching", Date: "2026-03-20"})
	require.NoError(t, err)

	events, err := h.svc.ListEvents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, h.svc.DeleteEvent(ctx, "u1", event.ID))
	assert.ErrorIs(t, h.svc.DeleteEvent(ctx, "u1", event.ID), ErrEventNotFound)
	assert.ErrorIs(t, h.svc.DeleteTask(ctx, "u1", "missing"), ErrTaskNotFound)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, readiness.Policy{})

	_, err := h.svc.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = h.svc.UpsertProfile(ctx, "u1", models.ProfileInput{SpecialtyID: "cardiology"})
	assert.ErrorIs(t, err, ErrSpecialtyNotFound)

	p, err := h.svc.UpsertProfile(ctx, "u1", models.ProfileInput{DisplayName: "Dr A", SpecialtyID: "urology"})
	require.NoError(t, err)
	assert.Equal(t, "urology", p.SpecialtyID)

	got, err := h.svc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Dr A", got.DisplayName)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, readiness.Policy{})

	for _, in := range []models.ActivityInput{
		{Description: "Oral presentation at ASGBI conference", Points: 3},
		{Description: "Completed Trust Leadership Module", Points: 3},
		{Description: "Completed Basic Suturing Workshop", Points: 2},
		{Description: "Co-authored journal article on ethics", Category: "Research & Innovation", Points: 3},
	} {
		_, err := h.svc.CreateActivity(ctx, "u1", in)
		require.NoError(t, err)
	}

	_, err := h.svc.CreateTask(ctx, "u1", models.DeadlineDoc{Title: "Portfolio review", DueDate: "2026-03-13"})
	require.NoError(t, err)
	_, err = h.svc.CreateTask(ctx, "u1", models.DeadlineDoc{Title: "Overdue", DueDate: "2026-03-09"})
	require.NoError(t, err)
	_, err = h.svc.CreateEvent(ctx, "u1", models.DeadlineDoc{Title: "Regional teaching", Date: "2026-03-20"})
	require.NoError(t, err)
	_, err = h.svc.UpsertProfile(ctx, "u1", models.ProfileInput{
		SpecialtyID: "general-surgery",
		LegacyTasks: []models.DeadlineDoc{{Text: "Old embedded task", Deadline: "2026-03-11"}},
	})
	require.NoError(t, err)

	d, err := h.svc.Dashboard(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 11.0, d.Summary.TotalPoints)
	assert.Equal(t, 4, d.Summary.ActivitiesLogged)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, d.Readiness.Values)
	require.NotNil(t, d.Progress)
	assert.Equal(t, 28, *d.Progress) // 11/40 = 27.5%
	assert.Empty(t, d.ProgressError)
	require.NotNil(t, d.NextDeadline)
	assert.Equal(t, "Old embedded task", d.NextDeadline.Title)
	assert.Equal(t, 3, d.PendingDeadlines)
}

func TestDashboardInvalidGoal(t *testing.T) {
	snap := &Snapshot{
		UserID:     "u1",
		Profile:    &models.Profile{UserID: "u1", SpecialtyID: "broken"},
		Activities: []*models.Activity{{Description: "MRCS exam", Points: 4}},
	}

	d := ComposeDashboard(snap, testCatalog(t), readiness.Policy{}, fixedNow)
	assert.Nil(t, d.Progress)
	assert.Contains(t, d.ProgressError, readiness.ErrInvalidGoal.Error())
	assert.Equal(t, 40.0, d.Readiness.Values[0])

	snap.Profile = nil
	d = ComposeDashboard(snap, testCatalog(t), readiness.Policy{}, fixedNow)
	assert.Nil(t, d.Progress)
	assert.Empty(t, d.ProgressError)
	assert.Nil(t, d.NextDeadline)
}

func TestComposePathway(t *testing.T) {
	cat := testCatalog(t)
	snap := &Snapshot{
		UserID:  "u1",
		Profile: &models.Profile{UserID: "u1", SpecialtyID: "general-surgery"},
		Activities: []*models.Activity{
			{Description: "MRCS Part A exam", Points: 4},
			{Description: "Audit of consent", Points: 1},
		},
	}

	p, err := ComposePathway(snap, cat, readiness.Policy{}, "urology", fixedNow)
	require.NoError(t, err)
	require.NotNil(t, p.Specialty)
	assert.Equal(t, "urology", p.Specialty.ID)
	require.NotNil(t, p.Progress)
	assert.Equal(t, 100, *p.Progress)

	require.Len(t, p.Checklist, 2)
	assert.Equal(t, "mrcs", p.Checklist[0].Guideline.ID)
	assert.True(t, p.Checklist[0].Met)
	assert.Equal(t, 1.0, p.Checklist[1].Points)
	assert.False(t, p.Checklist[1].Met)

	// Falls back to the profile's specialty and its full guideline table
	p, err = ComposePathway(snap, cat, readiness.Policy{}, "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "general-surgery", p.Specialty.ID)
	assert.Len(t, p.Checklist, 3)

	_, err = ComposePathway(snap, cat, readiness.Policy{}, "cardiology", fixedNow)
	assert.ErrorIs(t, err, ErrSpecialtyNotFound)
}

func TestSubscribeToUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, readiness.Policy{})

	docs := make(chan *models.ProfileDocument, 16)
	unsubscribe, err := h.svc.SubscribeToUser(ctx, "u1", func(doc *models.ProfileDocument) {
		docs <- doc
	})
	require.NoError(t, err)

	first := receive(t, docs)
	assert.Equal(t, "u1", first.UserID)
	assert.Empty(t, first.Activities)

	_, err = h.svc.CreateActivity(ctx, "u1", models.ActivityInput{Description: "BSS course", Points: 1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case doc := <-docs:
			return len(doc.Activities) == 1
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	unsubscribe()
	unsubscribe()
	assert.Eventually(t, func() bool { return h.feed.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func receive(t *testing.T, ch <-chan *models.ProfileDocument) *models.ProfileDocument {
	t.Helper()
	select {
	case doc := <-ch:
		return doc
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for profile document")
		return nil
	}
}

func TestSnapshotMerge(t *testing.T) {
	base := &Snapshot{Tasks: []models.DeadlineDoc{{ID: "old"}}}
	base.Merge(models.CollectionTasks, &Snapshot{Tasks: []models.DeadlineDoc{{ID: "new"}}})
	base.Merge(models.CollectionEvents, &Snapshot{Events: []models.DeadlineDoc{{ID: "e"}}})

	assert.Equal(t, "new", base.Tasks[0].ID)
	assert.Equal(t, "e", base.Events[0].ID)
	assert.Nil(t, base.Activities)
}
