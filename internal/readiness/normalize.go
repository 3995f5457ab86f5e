package readiness

const (
	// ScaleFactor converts bucket points into a readiness score:
	// 10 points in one domain reads as fully ready.
	ScaleFactor = 10
	// MaxScore is the readiness ceiling
	MaxScore = 100
)

// Scores holds one readiness value per bucket, in Buckets() order
type Scores [5]float64

// Normalize scales each bucket by ScaleFactor and clamps to [0, MaxScore].
func Normalize(s CategoryScores) Scores {
	var out Scores
	for i, cat := range Buckets() {
		out[i] = clamp(s.Get(cat)*ScaleFactor, 0, MaxScore)
	}
	return out
}

// Series is the radar chart payload: labels and values aligned by index.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Series pairs the scores with their bucket labels
func (s Scores) Series() Series {
	buckets := Buckets()
	series := Series{
		Labels: make([]string, len(buckets)),
		Values: make([]float64, len(buckets)),
	}
	for i, cat := range buckets {
		series.Labels[i] = string(cat)
		series.Values[i] = s[i]
	}
	return series
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
