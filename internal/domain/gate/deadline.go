// Package gate holds the stateless admission checks a submission passes
// before it is persisted.
package gate

import (
	"time"
)

// ArchiveWindow is how long after a deadline a rejected submission still
// triggers archival.
const ArchiveWindow = 24 * time.Hour

// DeadlineDecision is the outcome of CheckDeadline.
type DeadlineDecision struct {
	Open bool
	// Archive asks the caller to trigger archival for the assignment.
	Archive bool
}

// CheckDeadline reports whether now is still within deadline. A nil deadline
// never closes. A submission exactly at the deadline is accepted.
func CheckDeadline(deadline *time.Time, now time.Time) DeadlineDecision {
	if deadline == nil || !now.After(*deadline) {
		return DeadlineDecision{Open: true}
	}
	return DeadlineDecision{Archive: now.Sub(*deadline) < ArchiveWindow}
}
