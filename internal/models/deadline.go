package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Collection names a document source owned by a user
type Collection string

const (
	CollectionActivities Collection = "activities"
	CollectionTasks      Collection = "tasks"
	CollectionEvents     Collection = "events"
	CollectionProfile    Collection = "profile"
)

// DeadlineDoc is a task or event document as written by older and newer
// clients alike. Title and date each have three historical spellings;
// the deadlines package resolves them into one canonical record.
type DeadlineDoc struct {
	ID string `json:"id,omitempty"`

	Title string `json:"title,omitempty"`
	Task  string `json:"task,omitempty"`
	Text  string `json:"text,omitempty"`

	DueDate  string `json:"dueDate,omitempty"`
	Date     string `json:"date,omitempty"`
	Deadline string `json:"deadline,omitempty"`

	// Completed only counts when it is the JSON literal true.
	Completed any    `json:"completed,omitempty"`
	Status    string `json:"status,omitempty"`

	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type deadlineDocFields DeadlineDoc

// UnmarshalJSON never rejects a document over a field's JSON type. Text
// fields take strings as-is and numbers as their literal; dates also take
// epoch milliseconds and {seconds, nanoseconds} timestamps, stored as
// RFC 3339. Any other shape reads as "", and a document that is not an
// object at all decodes empty. The selector then drops what it cannot date.
func (d *DeadlineDoc) UnmarshalJSON(data []byte) error {
	*d = DeadlineDoc{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}

	var raw struct {
		deadlineDocFields
		ID       json.RawMessage `json:"id"`
		Title    json.RawMessage `json:"title"`
		Task     json.RawMessage `json:"task"`
		Text     json.RawMessage `json:"text"`
		DueDate  json.RawMessage `json:"dueDate"`
		Date     json.RawMessage `json:"date"`
		Deadline json.RawMessage `json:"deadline"`
		Status   json.RawMessage `json:"status"`
		Location json.RawMessage `json:"location"`
		Notes    json.RawMessage `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	*d = DeadlineDoc(raw.deadlineDocFields)
	d.ID = lenientText(raw.ID)
	d.Title = lenientText(raw.Title)
	d.Task = lenientText(raw.Task)
	d.Text = lenientText(raw.Text)
	d.DueDate = lenientDate(raw.DueDate)
	d.Date = lenientDate(raw.Date)
	d.Deadline = lenientDate(raw.Deadline)
	d.Status = lenientText(raw.Status)
	d.Location = lenientText(raw.Location)
	d.Notes = lenientText(raw.Notes)
	return nil
}

func lenientText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw)
	case bytes.Equal(raw, []byte("true")):
		return "true"
	}
	return ""
}

// maxEpochMillis bounds numeric dates to roughly +/-275000 years
const maxEpochMillis = 8.64e15

func lenientDate(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch c := raw[0]; {
	case c == '"':
		return lenientText(raw)
	case c == '-' || (c >= '0' && c <= '9'):
		ms, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || math.Abs(ms) > maxEpochMillis {
			return ""
		}
		return formatInstant(time.UnixMilli(int64(ms)))
	case c == '{':
		var ts struct {
			Seconds      *float64 `json:"seconds"`
			Nanoseconds  float64  `json:"nanoseconds"`
			USeconds     *float64 `json:"_seconds"`
			UNanoseconds float64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(raw, &ts); err != nil {
			return ""
		}
		sec, nsec := ts.Seconds, ts.Nanoseconds
		if sec == nil {
			sec, nsec = ts.USeconds, ts.UNanoseconds
		}
		if sec == nil || math.Abs(*sec) > maxEpochMillis/1000 {
			return ""
		}
		return formatInstant(time.Unix(int64(*sec), int64(nsec)))
	}
	return ""
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// StoredDeadline wraps a DeadlineDoc with its persistence fields
type StoredDeadline struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Doc       DeadlineDoc `json:"doc"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Docs strips persistence fields, keeping IDs on the documents
func Docs(items []*StoredDeadline) []DeadlineDoc {
	out := make([]DeadlineDoc, 0, len(items))
	for _, it := range items {
		doc := it.Doc
		doc.ID = it.ID
		out = append(out, doc)
	}
	return out
}
