package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Points is a score contribution. Stored documents carry it either as a JSON
// number or as a numeric string; anything else decodes to 0.
type Points float64

// ParsePoints coerces a raw points value to a number, defaulting to 0.
func ParsePoints(raw string) Points {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return Points(v)
}

// UnmarshalJSON accepts numbers, numeric strings, null and garbage.
func (p *Points) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*p = 0
			return nil
		}
		*p = ParsePoints(s)
		return nil
	}

	*p = ParsePoints(string(data))
	return nil
}

// Float returns the points as a float64
func (p Points) Float() float64 {
	return float64(p)
}

// Activity is a logged career-development event.
// Category is whatever the trainee typed; the derived classification
// lives in the readiness package and is never stored.
type Activity struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Category    string    `json:"category,omitempty"`
	Type        string    `json:"type,omitempty"`
	Points      Points    `json:"points"`
	Comments    string    `json:"comments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActivityInput represents a request to create or replace an activity
type ActivityInput struct {
	Description string `json:"description"`
	Date        string `json:"date"`
	Category    string `json:"category,omitempty"`
	Type        string `json:"type,omitempty"`
	Points      Points `json:"points"`
	Comments    string `json:"comments,omitempty"`
}
