package gate

import (
	"math"
	"sort"
)

// SchemaProblems separates missing metrics from present but invalid ones.
type SchemaProblems struct {
	Missing []string
	Invalid []string
}

// OK reports whether no problem was found.
func (p SchemaProblems) OK() bool {
	return len(p.Missing) == 0 && len(p.Invalid) == 0
}

// CheckMetrics verifies that every required metric is present and is a
// finite, non-negative number. Extra metrics are allowed.
func CheckMetrics(metrics map[string]float64, required []string) SchemaProblems {
	var p SchemaProblems
	for _, name := range required {
		v, ok := metrics[name]
		switch {
		case !ok:
			p.Missing = append(p.Missing, name)
		case math.IsNaN(v) || math.IsInf(v, 0) || v < 0:
			p.Invalid = append(p.Invalid, name)
		}
	}
	sort.Strings(p.Missing)
	sort.Strings(p.Invalid)
	return p
}
