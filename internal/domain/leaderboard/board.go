// Package leaderboard holds the ordered best-per-student view of one assignment.
package leaderboard

import (
	"sort"

	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/internal/domain/ranking"
)

// Board is an ordered leaderboard, best first. It is not safe for concurrent
// use; callers serialize access per assignment.
type Board struct {
	entries []model.LeaderboardEntry
	policy  ranking.Policy
}

// New wraps entries in their persisted order. The slice is copied.
func New(entries []model.LeaderboardEntry, policy ranking.Policy) *Board {
	cp := make([]model.LeaderboardEntry, len(entries))
	copy(cp, entries)
	return &Board{entries: cp, policy: policy}
}

// Len returns the number of ranked students.
func (b *Board) Len() int { return len(b.entries) }

// Entries returns a copy of the ordered entries.
func (b *Board) Entries() []model.LeaderboardEntry {
	cp := make([]model.LeaderboardEntry, len(b.entries))
	copy(cp, b.entries)
	return cp
}

// Find returns the index of studentID, or false.
func (b *Board) Find(studentID string) (int, bool) {
	for i := range b.entries {
		if b.entries[i].Student.StudentID == studentID {
			return i, true
		}
	}
	return -1, false
}

// Rank returns the 1-based position of studentID, or 0 when absent.
func (b *Board) Rank(studentID string) int {
	if i, ok := b.Find(studentID); ok {
		return i + 1
	}
	return 0
}

// Result describes what UpsertBest did.
type Result struct {
	Rank     int
	Outcome  model.Outcome
	Previous *model.LeaderboardEntry
}

// UpsertBest merges candidate into the board and re-sorts it.
//
// A candidate with SubmissionCount 1, or one for a student not yet on the
// board, is inserted as is. Otherwise it is compared with the stored entry:
// a better result replaces score, metrics, timestamp, count and contributor;
// an equal one refreshes timestamp, count and contributor; a worse one only
// advances count and timestamp. Identity fields are never overwritten.
//
// Sorting is stable over the previous order, so among entries that compare
// Equal the one that reached that result first stays ahead.
func (b *Board) UpsertBest(candidate model.LeaderboardEntry) Result {
	res := Result{Outcome: model.OutcomeFirst}
	idx, found := b.Find(candidate.Student.StudentID)

	switch {
	case !found:
		b.entries = append(b.entries, candidate)
	case candidate.SubmissionCount == 1:
		prev := b.entries[idx]
		res.Previous = &prev
		b.entries[idx] = candidate
	default:
		prev := b.entries[idx]
		res.Previous = &prev
		cur := &b.entries[idx]
		switch ranking.Compare(candidate.Metrics, cur.Metrics, b.policy) {
		case ranking.Better:
			res.Outcome = model.OutcomeImproved
			cur.Score = candidate.Score
			cur.Metrics = candidate.Metrics
			cur.Timestamp = candidate.Timestamp
			cur.SubmissionCount = candidate.SubmissionCount
			cur.Contributor = candidate.Contributor
		case ranking.Equal:
			res.Outcome = model.OutcomeSame
			cur.Timestamp = candidate.Timestamp
			cur.SubmissionCount = candidate.SubmissionCount
			cur.Contributor = candidate.Contributor
		default:
			res.Outcome = model.OutcomeWorse
			cur.Timestamp = candidate.Timestamp
			cur.SubmissionCount = candidate.SubmissionCount
		}
	}

	b.sort()
	res.Rank = b.Rank(candidate.Student.StudentID)
	return res
}

func (b *Board) sort() {
	sort.SliceStable(b.entries, func(i, j int) bool {
		return ranking.Less(b.entries[i].Metrics, b.entries[j].Metrics, b.policy)
	})
}
