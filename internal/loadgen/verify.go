package loadgen

import (
	"fmt"
	"math"
)

// Verify checks that entries are ranked 1..n, ascend by metric, hold each
// student once, and carry every generated student's best attempt.
func Verify(entries []Entry, students []Student, metric string) error {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrVerification, i, e.Rank)
		}
		if prev, dup := seen[e.Student.StudentID]; dup {
			return fmt.Errorf("%w: student %s ranked at %d and %d", ErrVerification, e.Student.StudentID, prev+1, i+1)
		}
		seen[e.Student.StudentID] = i
		if i > 0 && entries[i-1].Metrics[metric] > e.Metrics[metric] {
			return fmt.Errorf("%w: %s not ascending at rank %d (%.6f > %.6f)",
				ErrVerification, metric, e.Rank, entries[i-1].Metrics[metric], e.Metrics[metric])
		}
	}
	for _, st := range students {
		i, ok := seen[st.ID]
		if !ok {
			return fmt.Errorf("%w: student %s missing", ErrVerification, st.ID)
		}
		if got, want := entries[i].Metrics[metric], st.Best(metric); math.Abs(got-want) > 1e-9 {
			return fmt.Errorf("%w: student %s has %s %.6f, best submitted %.6f", ErrVerification, st.ID, metric, got, want)
		}
	}
	return nil
}
