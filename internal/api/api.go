package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/auth"
	"github.com/sprintdeck/sprintdeck/internal/llm"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store    store.Store
	llm      *llm.Client
	verifier *auth.Verifier

	// now is replaceable in tests so day arithmetic is deterministic.
	now func() time.Time
}

// NewServer creates a new API server.
// The llmClient may be nil if no API key is configured; AI-backed routes
// then respond with 503.
func NewServer(s store.Store, verifier *auth.Verifier, llmClient *llm.Client) *Server {
	return &Server{
		store:    s,
		llm:      llmClient,
		verifier: verifier,
		now:      time.Now,
	}
}

// Router returns an http.Handler for the API routes. Every route sits behind
// the bearer-token middleware.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/sessions", s.createSession)
	mux.HandleFunc("DELETE /api/v1/sessions", s.deleteSession)

	mux.HandleFunc("GET /api/v1/organizations", s.listOrganizations)
	mux.HandleFunc("POST /api/v1/organizations", s.createOrganization)
	mux.HandleFunc("GET /api/v1/organizations/{id}", s.getOrganization)

	mux.HandleFunc("GET /api/v1/teams", s.listTeams)
	mux.HandleFunc("POST /api/v1/teams", s.createTeam)
	mux.HandleFunc("GET /api/v1/teams/{id}", s.getTeam)
	mux.HandleFunc("GET /api/v1/teams/{id}/members", s.listTeamMembers)
	mux.HandleFunc("POST /api/v1/teams/{id}/members", s.addTeamMember)
	mux.HandleFunc("GET /api/v1/teams/{id}/tasks", s.listTeamTasks)
	mux.HandleFunc("GET /api/v1/teams/{id}/sprints", s.listTeamSprints)
	mux.HandleFunc("GET /api/v1/teams/{id}/epics", s.listEpics)
	mux.HandleFunc("POST /api/v1/teams/{id}/epics", s.createEpic)
	mux.HandleFunc("GET /api/v1/teams/{id}/labels", s.listLabels)
	mux.HandleFunc("POST /api/v1/teams/{id}/labels", s.createLabel)
	mux.HandleFunc("GET /api/v1/teams/{id}/dashboard", s.teamDashboard)

	mux.HandleFunc("POST /api/v1/tasks", s.createTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.getTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.deleteTask)

	mux.HandleFunc("POST /api/v1/sprints", s.createSprint)
	mux.HandleFunc("GET /api/v1/sprints/{id}", s.getSprint)
	mux.HandleFunc("PUT /api/v1/sprints/{id}", s.updateSprint)
	mux.HandleFunc("GET /api/v1/sprints/{id}/tasks", s.listSprintTasks)
	mux.HandleFunc("POST /api/v1/sprints/{id}/tasks", s.addTaskToSprint)
	mux.HandleFunc("GET /api/v1/sprints/{id}/retrospective", s.getRetrospective)
	mux.HandleFunc("POST /api/v1/sprints/{id}/retrospective", s.generateRetrospective)

	mux.HandleFunc("POST /api/v1/analytics/performance", s.performanceMetrics)
	mux.HandleFunc("POST /api/v1/analytics/predict", s.predictiveAnalytics)

	mux.HandleFunc("POST /api/v1/ai/risk-heatmap", s.riskHeatmap)
	mux.HandleFunc("POST /api/v1/ai/scope-check", s.scopeCheck)
	mux.HandleFunc("POST /api/v1/ai/sprint-plan", s.sprintPlan)

	return corsMiddleware(s.verifier.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors to status codes. Everything
// unrecognized collapses to a logged 500; the caller sees no distinction
// between storage and upstream failures.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrRetrospectiveExists),
		errors.Is(err, store.ErrAssociationExists),
		errors.Is(err, store.ErrMembershipExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("store error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
