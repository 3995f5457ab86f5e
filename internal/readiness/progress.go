package readiness

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGoal is returned when a goal is zero, negative or not a number.
var ErrInvalidGoal = errors.New("goal points must be a positive number")

// MinProgress is the floor of the int range Progress reports in. Totals
// negative enough to go below it report MinProgress.
const MinProgress = math.MinInt32

// Progress expresses total as a whole percentage of goal, capped at 100.
// Negative totals give negative percentages, down to MinProgress.
// Halves round up, so 12.5 becomes 13 and -12.5 becomes -12. A NaN total
// counts as 0, like any other non-numeric points value.
func Progress(total, goal float64) (int, error) {
	if math.IsNaN(goal) || math.IsInf(goal, 0) || goal <= 0 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidGoal, goal)
	}

	if math.IsNaN(total) {
		total = 0
	}

	pct := math.Floor(100*total/goal + 0.5)
	switch {
	case pct > MaxScore:
		return MaxScore, nil
	case pct < MinProgress:
		return MinProgress, nil
	}
	return int(pct), nil
}
