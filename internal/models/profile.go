package models

import "time"

// Profile is the per-user document. LegacyTasks holds the task array that
// early clients embedded directly on the profile.
type Profile struct {
	UserID      string        `json:"user_id"`
	DisplayName string        `json:"display_name,omitempty"`
	Grade       string        `json:"grade,omitempty"`
	SpecialtyID string        `json:"specialty_id,omitempty"`
	LegacyTasks []DeadlineDoc `json:"tasks,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProfileDocument is the full profile as delivered to subscribers,
// activities included.
type ProfileDocument struct {
	Profile
	Activities []*Activity `json:"activities"`
}

// ProfileInput represents a request to upsert a profile
type ProfileInput struct {
	DisplayName string        `json:"display_name,omitempty"`
	Grade       string        `json:"grade,omitempty"`
	SpecialtyID string        `json:"specialty_id,omitempty"`
	LegacyTasks []DeadlineDoc `json:"tasks,omitempty"`
}
