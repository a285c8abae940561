package loadgen

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
)

// Student is a synthetic student with its planned submissions.
type Student struct {
	ID       string
	Name     string
	Attempts []map[string]float64
}

// Best returns the lowest planned value of metric.
func (s Student) Best(metric string) float64 {
	best := math.Inf(1)
	for _, m := range s.Attempts {
		if v, ok := m[metric]; ok && v < best {
			best = v
		}
	}
	return best
}

// Generate plans submissions for n students. The same seed yields the same
// metrics; ids are always fresh so reruns never collide on identity.
func Generate(n, attempts int, seed uint64) []Student {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic load only
	out := make([]Student, n)
	for i := range out {
		id := "lg-" + uuid.NewString()[:8]
		st := Student{ID: id, Name: "Load Student " + strconv.Itoa(i+1)}
		for range attempts {
			rmse := 0.05 + rng.Float64()*1.95
			st.Attempts = append(st.Attempts, map[string]float64{
				"RMSE":            round(rmse),
				"MSE":             round(rmse * rmse),
				"Prediction_Time": round(0.1 + rng.Float64()*5),
			})
		}
		out[i] = st
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
