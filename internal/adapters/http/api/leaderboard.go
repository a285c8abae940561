package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okian/classboard/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, assignmentID string) (types.LeaderboardView, error)
	Leaderboards(ctx context.Context) (map[string]types.LeaderboardView, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

type allLeaderboardsResponse struct {
	Assignments map[string]types.LeaderboardView `json:"assignments"`
}

// HandleGetLeaderboard handles GET /api/leaderboard/{assignment_id}.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	view, err := h.deps.Leaderboard(r.Context(), mux.Vars(r)["assignment_id"])
	if err != nil {
		writeSubmissionError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGetLeaderboards handles GET /api/leaderboard.
func (h *LeaderboardHandler) HandleGetLeaderboards(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboards"
	all, err := h.deps.Leaderboards(r.Context())
	if err != nil {
		writeSubmissionError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, allLeaderboardsResponse{Assignments: all})
}
