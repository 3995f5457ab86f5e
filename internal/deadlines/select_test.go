package deadlines

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/pathway-engine/internal/models"
)

var now = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

func day(offset int) string {
	return now.AddDate(0, 0, offset).Format(time.DateOnly)
}

func TestNextScenario(t *testing.T) {
	src := Sources{
		Tasks: []models.DeadlineDoc{
			{ID: "t1", Title: "Submit logbook", DueDate: day(-1)},
			{ID: "t2", Title: "Portfolio review", DueDate: day(3)},
			{ID: "t3", Title: "Consent audit", DueDate: day(1), Completed: true},
		},
		Events: []models.DeadlineDoc{
			{ID: "e1", Title: "Regional teaching", Date: day(10)},
		},
	}

	next, pending := Next(src, now)

	require.NotNil(t, next)
	assert.Equal(t, "t2", next.ID)
	assert.Equal(t, "Portfolio review", next.Title)
	assert.Equal(t, KindTask, next.Kind)
	assert.Equal(t, 2, pending)
}

func TestNextEmpty(t *testing.T) {
	next, pending := Next(Sources{}, now)
	assert.Nil(t, next)
	assert.Equal(t, 0, pending)
}

func TestUpcomingLegacyFieldNames(t *testing.T) {
	var legacy []models.DeadlineDoc
	raw := `[
		{"task": "Book MRCS", "deadline": "` + day(5) + `"},
		{"text": "Renew GMC", "date": "` + day(2) + `", "status": "Completed"},
		{"text": "Ethics essay", "date": "` + day(4) + `", "completed": "true"},
		{"title": "", "task": "Sign-off", "dueDate": "", "date": "` + day(0) + `"}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &legacy))

	items := Upcoming(Sources{LegacyTasks: legacy}, now)

	require.Len(t, items, 3)
	assert.Equal(t, "Sign-off", items[0].Title)
	assert.Equal(t, "Ethics essay", items[1].Title, "a string \"true\" is not a completion flag")
	assert.Equal(t, "Book MRCS", items[2].Title)
}

func TestUpcomingEventsNeverCompleted(t *testing.T) {
	src := Sources{
		Events: []models.DeadlineDoc{
			{Title: "Deanery interview", Date: day(1), Completed: true, Status: "completed"},
		},
	}

	items := Upcoming(src, now)
	require.Len(t, items, 1)
	assert.Equal(t, KindEvent, items[0].Kind)
}

func TestUpcomingTodayIsKept(t *testing.T) {
	src := Sources{
		Tasks: []models.DeadlineDoc{
			{Title: "Earlier today", DueDate: now.Add(-2 * time.Hour).Format(time.RFC3339)},
			{Title: "Last night", DueDate: StartOfDay(now).Add(-time.Minute).Format(time.RFC3339)},
		},
	}

	items := Upcoming(src, now)
	require.Len(t, items, 1)
	assert.Equal(t, "Earlier today", items[0].Title)
}

func TestUpcomingDropsUnparseableDates(t *testing.T) {
	src := Sources{
		Tasks: []models.DeadlineDoc{
			{Title: "No date"},
			{Title: "Garbage", DueDate: "next tuesday"},
			{Title: "Partial", DueDate: "2026-03"},
			{Title: "UK format", DueDate: now.AddDate(0, 0, 6).Format("02/01/2006")},
		},
	}

	items := Upcoming(src, now)
	require.Len(t, items, 1)
	assert.Equal(t, "UK format", items[0].Title)
}

func TestUpcomingStableOnTies(t *testing.T) {
	src := Sources{
		Tasks:  []models.DeadlineDoc{{Title: "task", DueDate: day(2)}},
		Events: []models.DeadlineDoc{{Title: "event", Date: day(2)}},
	}

	items := Upcoming(src, now)
	require.Len(t, items, 2)
	assert.Equal(t, "task", items[0].Title)
	assert.Equal(t, "event", items[1].Title)
}

func TestParseDateUsesLocation(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata not available")
	}

	got, ok := ParseDate("2026-07-01", london)
	require.True(t, ok)
	assert.Equal(t, london, got.Location())
	assert.Equal(t, 0, got.Hour())
}

func TestUpcomingToleratesOddFieldTypes(t *testing.T) {
	soon := now.AddDate(0, 0, 2)
	raw := `[
		{"title": "MRCS Part B", "dueDate": ` + strconv.FormatInt(soon.UnixMilli(), 10) + `},
		{"title": "ARCP", "dueDate": {"seconds": ` + strconv.FormatInt(soon.Add(24*time.Hour).Unix(), 10) + `, "nanoseconds": 0}},
		{"title": "Logbook", "status": true, "deadline": "` + day(4) + `"},
		{"title": "Opaque date", "dueDate": {"nested": true}},
		{"title": 42, "date": [2026, 3, 20]},
		"not a document",
		null
	]`

	var docs []models.DeadlineDoc
	require.NoError(t, json.Unmarshal([]byte(raw), &docs))
	require.Len(t, docs, 7)
	assert.Equal(t, "42", docs[4].Title)
	assert.Equal(t, "true", docs[2].Status)

	items := Upcoming(Sources{LegacyTasks: docs}, now)

	require.Len(t, items, 3)
	assert.Equal(t, "MRCS Part B", items[0].Title)
	assert.True(t, items[0].Due.Equal(time.UnixMilli(soon.UnixMilli())))
	assert.Equal(t, "ARCP", items[1].Title)
	assert.Equal(t, "Logbook", items[2].Title, "a boolean status is not a completion")
}

func TestDeadlineDocSurvivesReencode(t *testing.T) {
	var doc models.DeadlineDoc
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","task":"Audit","dueDate":1767225600000,"completed":true}`), &doc))
	assert.Equal(t, "2026-01-01T00:00:00Z", doc.DueDate)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var again models.DeadlineDoc
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, doc, again)
}

func TestNormalizeBlankTitleFallsThrough(t *testing.T) {
	rec := Normalize(models.DeadlineDoc{Title: "   ", Task: " Sign-off ", DueDate: " ", Date: day(1)}, KindTask)
	assert.Equal(t, "Sign-off", rec.Title)
	assert.Equal(t, day(1), rec.RawDate)
}
