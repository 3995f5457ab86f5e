package readiness

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := Normalize(CategoryScores{
		Exams:        15,
		Publications: 0,
		Teaching:     4.5,
		Audit:        10,
		Courses:      -3,
	})

	assert.Equal(t, Scores{100, 0, 45, 100, 0}, got)
}

func TestScoresSeries(t *testing.T) {
	series := Normalize(CategoryScores{Exams: 1, Courses: 2}).Series()

	assert.Equal(t, []string{"Exams", "Publications", "Teaching", "Audit/QIP", "Courses"}, series.Labels)
	assert.Equal(t, []float64{10, 0, 0, 0, 20}, series.Values)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		total, goal float64
		want        int
	}{
		{200, 150, 100},
		{75, 150, 50},
		{1, 8, 13}, // 12.5 rounds up
		{0, 40, 0},
		{-10, 40, -25},
		{-1, 8, -12}, // -12.5 rounds toward +inf
		{40, 40, 100},
		{math.Inf(1), 40, 100},
		{math.NaN(), 40, 0},
		{-5e17, 1, MinProgress},
		{-1e300, 1, MinProgress},
		{math.Inf(-1), 40, MinProgress},
		{-5e6, 1e-3, MinProgress},
		{-21474836.48, 1, MinProgress},
		{-21474836.47, 1, -2147483647},
	}

	for _, tt := range tests {
		got, err := Progress(tt.total, tt.goal)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Progress(%v, %v)", tt.total, tt.goal)
	}
}

func TestProgressInvalidGoal(t *testing.T) {
	for _, goal := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := Progress(10, goal)
		if !errors.Is(err, ErrInvalidGoal) {
			t.Fatalf("Progress(10, %v) error = %v, want ErrInvalidGoal", goal, err)
		}
	}
}
