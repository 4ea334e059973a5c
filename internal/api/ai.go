package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sprintdeck/sprintdeck/internal/llm"
	"github.com/sprintdeck/sprintdeck/internal/metrics"
	"github.com/sprintdeck/sprintdeck/internal/models"
)

// requireLLM writes a 503 and returns false when no LLM client is configured.
func (s *Server) requireLLM(w http.ResponseWriter) bool {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM not configured (set ANTHROPIC_API_KEY)")
		return false
	}
	return true
}

func (s *Server) riskHeatmap(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}

	var req struct {
		Tasks       []llm.TaskSummary   `json:"tasks"`
		TeamMembers []llm.MemberSummary `json:"team_members"`
		CurrentDate string              `json:"current_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	heatmap, err := s.llm.AnalyzeRisk(r.Context(), req.Tasks, req.TeamMembers, parseDate(req.CurrentDate, s.now()))
	if err != nil {
		slog.Error("risk heatmap analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "risk analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, heatmap)
}

func (s *Server) scopeCheck(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}

	var req struct {
		OriginalTasks []llm.TaskSummary `json:"original_tasks"`
		CurrentTasks  []llm.TaskSummary `json:"current_tasks"`
		Sprint        llm.SprintMeta    `json:"sprint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	check, err := s.llm.CheckScope(r.Context(), req.OriginalTasks, req.CurrentTasks, req.Sprint)
	if err != nil {
		slog.Error("scope check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "scope analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *Server) sprintPlan(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}

	var req struct {
		Tasks        []llm.TaskSummary   `json:"tasks"`
		TeamMembers  []llm.MemberSummary `json:"team_members"`
		DurationDays int                 `json:"duration_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.DurationDays <= 0 {
		req.DurationDays = 14
	}

	plan, err := s.llm.PlanSprint(r.Context(), req.Tasks, req.TeamMembers, req.DurationDays)
	if err != nil {
		slog.Error("sprint planning failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sprint planning failed")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) getRetrospective(w http.ResponseWriter, r *http.Request) {
	retro, err := s.store.GetRetrospectiveBySprint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retro)
}

func (s *Server) generateRetrospective(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}

	ctx := r.Context()
	sprint, err := s.store.GetSprint(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Cheap pre-check saves a generation call for the common duplicate case;
	// the unique index on sprint_id still closes the race at insert time.
	if _, err := s.store.GetRetrospectiveBySprint(ctx, sprint.ID); err == nil {
		writeError(w, http.StatusConflict, "retrospective already exists for sprint")
		return
	}

	tasks, err := s.store.ListSprintTasks(ctx, sprint.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	velocity := metrics.Velocity(sprint, tasks)
	stats := llm.RetroStats{
		SprintName:      sprint.Name,
		Goal:            sprint.Goal,
		PlannedPoints:   velocity.PlannedPoints,
		CompletedPoints: velocity.CompletedPoints,
		CompletionRate:  velocity.CompletionRate,
		TotalTasks:      len(tasks),
	}
	for _, t := range tasks {
		if t.Status == models.TaskStatusDone {
			stats.CompletedTasks++
			stats.DoneTitles = append(stats.DoneTitles, t.Title)
		} else {
			stats.UnfinishedTitles = append(stats.UnfinishedTitles, t.Title)
		}
	}

	content, err := s.llm.GenerateRetrospective(ctx, stats)
	if err != nil {
		slog.Error("retrospective generation failed", "error", err, "sprint_id", sprint.ID)
		writeError(w, http.StatusInternalServerError, "retrospective generation failed")
		return
	}

	retro := &models.Retrospective{SprintID: sprint.ID, Content: content}
	if err := s.store.CreateRetrospective(ctx, retro); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, retro)
}
