package ranking

import "math"

// Tolerance is the absolute difference under which two values tie.
const Tolerance = 1e-9

// Outcome is the result of comparing A against B.
type Outcome int

const (
	Worse Outcome = iota - 1
	Equal
	Better
)

func (o Outcome) String() string {
	switch o {
	case Better:
		return "better"
	case Worse:
		return "worse"
	default:
		return "equal"
	}
}

// Compare walks the policy in priority order and returns at the first metric
// that differs by at least Tolerance. A missing or NaN value is the worst
// value for that rule's direction. An empty policy compares FallbackMetric
// with min semantics.
func Compare(a, b map[string]float64, p Policy) Outcome {
	if len(p) == 0 {
		p = DefaultPolicy()
	}
	for _, r := range p {
		av, aok := lookup(a, r.Metric)
		bv, bok := lookup(b, r.Metric)
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return Worse
		case !bok:
			return Better
		}
		if math.Abs(av-bv) < Tolerance {
			continue
		}
		if r.Direction == Max {
			if av > bv {
				return Better
			}
			return Worse
		}
		if av < bv {
			return Better
		}
		return Worse
	}
	return Equal
}

// Less reports whether a ranks strictly ahead of b.
func Less(a, b map[string]float64, p Policy) bool {
	return Compare(a, b, p) == Better
}

// lookup reports NaN and infinite values as absent.
func lookup(m map[string]float64, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
