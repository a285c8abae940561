package model

import "fmt"

// SubmissionResult is returned for every accepted submission.
type SubmissionResult struct {
	Success            bool     `json:"success"`
	Message            string   `json:"message"`
	SubmissionCount    int      `json:"submission_count"`
	LeaderboardUpdated bool     `json:"leaderboard_updated"`
	CurrentRank        *int     `json:"current_rank"`
	Score              *float64 `json:"score"`
	PreviousScore      *float64 `json:"previous_score"`
}

// Outcome labels how a submission changed the student's standing.
type Outcome string

const (
	OutcomeFirst    Outcome = "first"
	OutcomeImproved Outcome = "better"
	OutcomeSame     Outcome = "equal"
	OutcomeWorse    Outcome = "worse"
)

// Message renders the human-readable summary for an outcome.
func (o Outcome) Message(score, previous *float64) string {
	switch o {
	case OutcomeFirst:
		return "First submission accepted; added to the leaderboard"
	case OutcomeImproved:
		if score != nil && previous != nil {
			return fmt.Sprintf("Submission accepted; score improved (%.6f → %.6f), leaderboard updated", *previous, *score)
		}
		return "Submission accepted; result improved, leaderboard updated"
	case OutcomeSame:
		if score != nil {
			return fmt.Sprintf("Submission accepted; score unchanged (%.6f), submission time updated", *score)
		}
		return "Submission accepted; result unchanged, submission time updated"
	default:
		if score != nil && previous != nil {
			return fmt.Sprintf("Submission accepted; score not improved (%.6f vs best %.6f), ranking unchanged", *score, *previous)
		}
		return "Submission accepted; result not improved, ranking unchanged"
	}
}
