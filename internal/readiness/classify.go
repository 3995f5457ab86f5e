// Package readiness turns a trainee's activity log into points totals,
// per-category breakdowns and chart-ready readiness scores.
//
// Everything here is pure: callers recompute from the full activity list on
// every read instead of maintaining running totals.
package readiness

import (
	"strings"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// Category is the classification derived from an activity's free text.
// It is independent of the category the trainee typed in.
type Category string

const (
	Exams        Category = "Exams"
	Publications Category = "Publications"
	Teaching     Category = "Teaching"
	Audit        Category = "Audit/QIP"
	Courses      Category = "Courses"
	Other        Category = "Other"
)

// Tracked reports whether the category has its own bucket in the breakdown
func (c Category) Tracked() bool {
	switch c {
	case Exams, Publications, Teaching, Audit, Courses:
		return true
	}
	return false
}

// Buckets returns the five tracked categories in chart order.
func Buckets() [5]Category {
	return [5]Category{Exams, Publications, Teaching, Audit, Courses}
}

// ParseCategory maps a label back to a Category. Matching is case-insensitive
// and "audit", "qip" and "audit/qip" all resolve to Audit.
func ParseCategory(label string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "exams", "exam":
		return Exams, true
	case "publications", "publication":
		return Publications, true
	case "teaching":
		return Teaching, true
	case "audit/qip", "audit", "qip":
		return Audit, true
	case "courses", "course":
		return Courses, true
	case "other":
		return Other, true
	}
	return "", false
}

// classificationRules is checked top to bottom; the first needle found wins.
// Order matters: "post-exam audit review" is Exams, not Audit/QIP.
var classificationRules = [...]struct {
	needle   string
	category Category
}{
	{"exam", Exams},
	{"public", Publications},
	{"teach", Teaching},
	{"audit", Audit},
	{"course", Courses},
}

// Classify maps the free-text fields of an activity to exactly one category.
// Empty fields are fine; anything unmatched is Other.
func Classify(category, kind, description string) Category {
	text := strings.ToLower(category + " " + kind + " " + description)
	for _, rule := range classificationRules {
		if strings.Contains(text, rule.needle) {
			return rule.category
		}
	}
	return Other
}

// ClassifyActivity classifies a stored activity
func ClassifyActivity(a *models.Activity) Category {
	if a == nil {
		return Other
	}
	return Classify(a.Category, a.Type, a.Description)
}
