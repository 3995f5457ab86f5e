package deadlines

import (
	"sort"
	"time"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// Sources is one snapshot of every place a deadline can come from
type Sources struct {
	Tasks       []models.DeadlineDoc
	Events      []models.DeadlineDoc
	LegacyTasks []models.DeadlineDoc
}

// Item is a pending deadline ready for display
type Item struct {
	ID    string    `json:"id,omitempty"`
	Title string    `json:"title"`
	Date  string    `json:"date"`
	Due   time.Time `json:"due"`
	Kind  Kind      `json:"type"`
}

// StartOfDay returns midnight of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Upcoming returns pending items due today or later, earliest first.
// Items with unreadable dates and completed tasks are dropped. Events are
// never treated as completed.
func Upcoming(src Sources, now time.Time) []Item {
	cutoff := StartOfDay(now)

	var records []Record
	for _, doc := range src.Tasks {
		records = append(records, Normalize(doc, KindTask))
	}
	for _, doc := range src.Events {
		records = append(records, Normalize(doc, KindEvent))
	}
	for _, doc := range src.LegacyTasks {
		records = append(records, Normalize(doc, KindTask))
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		if rec.Kind == KindTask && rec.Completed {
			continue
		}
		due, ok := ParseDate(rec.RawDate, now.Location())
		if !ok || due.Before(cutoff) {
			continue
		}
		items = append(items, Item{
			ID:    rec.ID,
			Title: rec.Title,
			Date:  rec.RawDate,
			Due:   due,
			Kind:  rec.Kind,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Due.Before(items[j].Due)
	})
	return items
}

// Next returns the nearest pending item, or nil, and how many are pending.
func Next(src Sources, now time.Time) (*Item, int) {
	items := Upcoming(src, now)
	if len(items) == 0 {
		return nil, 0
	}
	next := items[0]
	return &next, len(items)
}
