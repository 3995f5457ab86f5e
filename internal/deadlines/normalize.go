// Package deadlines merges tasks, events and legacy profile tasks into one
// ordered list of upcoming items.
package deadlines

import (
	"strings"
	"time"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// Kind is the origin of a deadline item
type Kind string

const (
	KindTask  Kind = "task"
	KindEvent Kind = "event"
)

// Record is the canonical form of a task or event document
type Record struct {
	ID        string
	Title     string
	RawDate   string
	Completed bool
	Kind      Kind
}

// Normalize resolves the historical field spellings of a document.
func Normalize(doc models.DeadlineDoc, kind Kind) Record {
	return Record{
		ID:        doc.ID,
		Title:     firstNonEmpty(doc.Title, doc.Task, doc.Text),
		RawDate:   firstNonEmpty(doc.DueDate, doc.Date, doc.Deadline),
		Completed: isCompleted(doc),
		Kind:      kind,
	}
}

func isCompleted(doc models.DeadlineDoc) bool {
	if done, ok := doc.Completed.(bool); ok && done {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(doc.Status), "completed")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// dateLayouts are tried in order. Layouts without a zone are read in the
// caller's location.
var dateLayouts = [...]string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate reads a stored date string. ok is false when nothing matches.
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
