package readiness

import (
	"slices"

	"github.com/terra-clan/pathway-engine/internal/models"
)

// Policy tunes how points are counted.
type Policy struct {
	// RejectNegative floors negative point values to zero. Off by default:
	// negative entries are summed as-is.
	RejectNegative bool
}

// CategoryScores is the summed points per tracked bucket
type CategoryScores struct {
	Exams        float64 `json:"exams"`
	Publications float64 `json:"publications"`
	Teaching     float64 `json:"teaching"`
	Audit        float64 `json:"audit"`
	Courses      float64 `json:"courses"`
}

// Get returns the points for a bucket. Other and unknown categories are 0.
func (s CategoryScores) Get(c Category) float64 {
	switch c {
	case Exams:
		return s.Exams
	case Publications:
		return s.Publications
	case Teaching:
		return s.Teaching
	case Audit:
		return s.Audit
	case Courses:
		return s.Courses
	}
	return 0
}

func (s *CategoryScores) set(c Category, v float64) {
	switch c {
	case Exams:
		s.Exams = v
	case Publications:
		s.Publications = v
	case Teaching:
		s.Teaching = v
	case Audit:
		s.Audit = v
	case Courses:
		s.Courses = v
	}
}

// Summary is the aggregate of an activity list
type Summary struct {
	TotalPoints      float64        `json:"totalPoints"`
	ActivitiesLogged int            `json:"activitiesLogged"`
	CategoryScores   CategoryScores `json:"categoryScores"`
	// Unclassified counts activities that fell into Other.
	Unclassified int `json:"unclassified"`
}

// Aggregate reduces activities to totals and a per-bucket breakdown.
// Every activity is counted, whatever its classification or points value.
// Points are summed in sorted order so the result does not depend on the
// order of the input.
func Aggregate(activities []*models.Activity, policy Policy) Summary {
	var (
		summary Summary
		all     []float64
		buckets = make(map[Category][]float64, 5)
	)

	for _, a := range activities {
		if a == nil {
			continue
		}
		summary.ActivitiesLogged++

		pts := policy.contribution(a.Points)
		all = append(all, pts)

		cat := ClassifyActivity(a)
		if !cat.Tracked() {
			summary.Unclassified++
			continue
		}
		buckets[cat] = append(buckets[cat], pts)
	}

	summary.TotalPoints = sum(all)
	for _, cat := range Buckets() {
		summary.CategoryScores.set(cat, sum(buckets[cat]))
	}

	return summary
}

func (p Policy) contribution(pts models.Points) float64 {
	v := pts.Float()
	if p.RejectNegative && v < 0 {
		return 0
	}
	return v
}

func sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}
	return total
}
