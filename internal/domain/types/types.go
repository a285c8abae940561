// Package types contains read-side views shared by the service and the HTTP layer.
package types

import "github.com/okian/classboard/internal/domain/model"

// LeaderboardView is one assignment's ranked leaderboard with its config.
type LeaderboardView struct {
	AssignmentID string              `json:"assignment_id"`
	Leaderboard  []model.RankedEntry `json:"leaderboard"`
	Config       *model.Assignment   `json:"config"`
}

// SubmissionHistory lists a student's records for one assignment, newest first.
type SubmissionHistory struct {
	StudentID    string                   `json:"student_id"`
	AssignmentID string                   `json:"assignment_id"`
	Count        int                      `json:"count"`
	Submissions  []model.SubmissionRecord `json:"submissions"`
}

// ActiveAssignment reports which assignments still accept submissions.
// AssignmentID is the first open id in sorted order, or nil.
type ActiveAssignment struct {
	AssignmentID *string  `json:"assignment_id"`
	AllActive    []string `json:"all_active"`
}

// RosterStudent is one enrolled student.
type RosterStudent struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name,omitempty"`
}

// MissingSubmissions lists enrolled students absent from a leaderboard.
type MissingSubmissions struct {
	AssignmentID string          `json:"assignment_id"`
	Total        int             `json:"total_students"`
	Submitted    int             `json:"submitted"`
	Missing      []RosterStudent `json:"students_without_submission"`
}

// LeaderboardUpdate is broadcast to live subscribers after an accepted submission.
type LeaderboardUpdate struct {
	Type         string              `json:"type"`
	AssignmentID string              `json:"assignment_id"`
	StudentID    string              `json:"student_id"`
	Rank         int                 `json:"rank"`
	Leaderboard  []model.RankedEntry `json:"leaderboard"`
}

// UpdateTypeLeaderboard tags LeaderboardUpdate messages.
const UpdateTypeLeaderboard = "leaderboard_update"

// Health is the JSON liveness report.
type Health struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}
