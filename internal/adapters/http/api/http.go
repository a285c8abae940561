// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmitDependencies
	LeaderboardDependencies
	AssignmentDependencies
	HealthProvider

	// LiveUpdates serves the leaderboard websocket.
	LiveUpdates() http.Handler
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submitHandler      *SubmitHandler
	leaderboardHandler *LeaderboardHandler
	assignmentHandler  *AssignmentHandler
	live               http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		submitHandler:      NewSubmitHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		assignmentHandler:  NewAssignmentHandler(deps),
		live:               deps.LiveUpdates(),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(ctx context.Context, r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.Handle("/ws/leaderboard", s.live).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health")).Methods(http.MethodGet)
	a.HandleFunc("/submit", MetricsMiddleware(s.submitHandler.HandleSubmit, "submit")).Methods(http.MethodPost)
	a.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboards, "leaderboards")).Methods(http.MethodGet)
	a.HandleFunc("/leaderboard/{assignment_id}", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard")).Methods(http.MethodGet)
	a.HandleFunc("/submissions/{student_id}/{assignment_id}", MetricsMiddleware(s.assignmentHandler.HandleHistory, "submissions")).Methods(http.MethodGet)
	a.HandleFunc("/assignments", MetricsMiddleware(s.assignmentHandler.HandleAssignments, "assignments")).Methods(http.MethodGet)
	a.HandleFunc("/active-assignment", MetricsMiddleware(s.assignmentHandler.HandleActive, "active_assignment")).Methods(http.MethodGet)
	a.HandleFunc("/students-without-submission/{assignment_id}", MetricsMiddleware(s.assignmentHandler.HandleMissing, "students_without_submission")).Methods(http.MethodGet)

	// Subrouters match on their own, so each needs the JSON fallbacks.
	for _, router := range []*mux.Router{r, a} {
		router.NotFoundHandler = http.HandlerFunc(notFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
	logger.Get().Named("http").Debug(ctx, "api routes registered")
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", ErrNotFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeSubmissionError maps domain rejections to their status. Anything
// else is a 500 with a generic message and the cause as detail.
func writeSubmissionError(w http.ResponseWriter, err error) {
	var se *model.SubmissionError
	switch {
	case errors.As(err, &se) && se.Kind != model.KindUnexpected:
		writeJSON(w, se.Status(), errorResponse{Code: string(se.Kind), Message: se.Error(), Detail: se.Detail()})
	case errors.Is(err, ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    string(model.KindUnexpected),
			Message: "internal server error",
			Detail:  err.Error(),
		})
	}
}
