package model

// LeaderboardEntry is a student's best standing on one assignment.
type LeaderboardEntry struct {
	Student         StudentIdentity `json:"student_info"`
	Score           *float64        `json:"score"`
	Metrics         MetricSet       `json:"metrics"`
	Timestamp       string          `json:"timestamp"`
	SubmissionCount int             `json:"submission_count"`
	Contributor     Contributor     `json:"contributor,omitempty"`
}

// RankedEntry is a LeaderboardEntry with its 1-based position.
type RankedEntry struct {
	Rank int `json:"rank"`
	LeaderboardEntry
}

// Ranked attaches positions to an ordered leaderboard.
func Ranked(entries []LeaderboardEntry) []RankedEntry {
	out := make([]RankedEntry, len(entries))
	for i, e := range entries {
		out[i] = RankedEntry{Rank: i + 1, LeaderboardEntry: e}
	}
	return out
}
