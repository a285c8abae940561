package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/internal/domain/types"
)

// AssignmentDependencies exposes the catalogue and per-student reads.
type AssignmentDependencies interface {
	Assignments(ctx context.Context) ([]*model.Assignment, error)
	ActiveAssignment(ctx context.Context) (types.ActiveAssignment, error)
	History(ctx context.Context, studentID, assignmentID string) (types.SubmissionHistory, error)
	MissingSubmissions(ctx context.Context, assignmentID string) (types.MissingSubmissions, error)
}

// AssignmentHandler handles catalogue and submission-history requests.
type AssignmentHandler struct {
	deps AssignmentDependencies
}

// NewAssignmentHandler creates a new assignment handler.
func NewAssignmentHandler(deps AssignmentDependencies) *AssignmentHandler {
	return &AssignmentHandler{deps: deps}
}

// HandleAssignments handles GET /api/assignments. The catalogue is keyed by id.
func (h *AssignmentHandler) HandleAssignments(w http.ResponseWriter, r *http.Request) {
	const op = "api.assignments"
	list, err := h.deps.Assignments(r.Context())
	if err != nil {
		writeSubmissionError(w, Wrap(op, err))
		return
	}
	out := make(map[string]*model.Assignment, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleActive handles GET /api/active-assignment.
func (h *AssignmentHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	const op = "api.active_assignment"
	active, err := h.deps.ActiveAssignment(r.Context())
	if err != nil {
		writeSubmissionError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, active)
}

// HandleHistory handles GET /api/submissions/{student_id}/{assignment_id}.
func (h *AssignmentHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.history"
	vars := mux.Vars(r)
	hist, err := h.deps.History(r.Context(), vars["student_id"], vars["assignment_id"])
	if err != nil {
		writeSubmissionError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// HandleMissing handles GET /api/students-without-submission/{assignment_id}.
func (h *AssignmentHandler) HandleMissing(w http.ResponseWriter, r *http.Request) {
	const op = "api.missing_submissions"
	missing, err := h.deps.MissingSubmissions(r.Context(), mux.Vars(r)["assignment_id"])
	if err != nil {
		writeSubmissionError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, missing)
}
