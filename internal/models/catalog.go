package models

// Specialty is a surgical specialty a trainee can target
type Specialty struct {
	ID           string   `json:"id"`   // "general-surgery"
	Name         string   `json:"name"` // "General Surgery"
	Description  string   `json:"description,omitempty"`
	TargetPoints float64  `json:"targetPoints"`         // competitive entry bar
	Guidelines   []string `json:"guidelines,omitempty"` // guideline IDs that apply
}

// Guideline is one row of the CPD guideline table, rendered as a
// checklist item on the pathway view
type Guideline struct {
	ID          string  `json:"id"`       // "exams/mrcs-a"
	Category    string  `json:"category"` // Exams | Publications | Teaching | Audit/QIP | Courses
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	MinPoints   float64 `json:"minPoints"`
}
