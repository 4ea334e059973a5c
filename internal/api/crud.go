package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

// --- Sessions ---

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if req.DisplayName != "" {
		profile := &models.UserProfile{UserID: req.UserID, DisplayName: req.DisplayName}
		if err := s.store.UpsertUserProfile(r.Context(), profile); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	session, err := s.verifier.IssueSession(r.Context(), req.UserID, 30*24*time.Hour)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(token) > len(prefix) {
		token = token[len(prefix):]
	}
	if err := s.verifier.Revoke(r.Context(), token); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Organizations ---

func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.store.ListOrganizations(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var org models.Organization
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if org.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateOrganization(r.Context(), &org); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := s.store.GetOrganization(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// --- Teams ---

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context(), r.URL.Query().Get("organization_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var team models.Team
	if err := json.NewDecoder(r.Body).Decode(&team); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if team.OrganizationID == "" || team.Name == "" {
		writeError(w, http.StatusBadRequest, "organization_id and name are required")
		return
	}
	if err := s.store.CreateTeam(r.Context(), &team); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) listTeamMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.ListTeamMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) addTeamMember(w http.ResponseWriter, r *http.Request) {
	teamID := r.PathValue("id")
	var req struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if _, err := s.store.GetTeam(r.Context(), teamID); err != nil {
		writeStoreError(w, err)
		return
	}
	if req.DisplayName != "" {
		profile := &models.UserProfile{UserID: req.UserID, DisplayName: req.DisplayName}
		if err := s.store.UpsertUserProfile(r.Context(), profile); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if err := s.store.AddTeamMember(r.Context(), teamID, req.UserID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.TeamMember{TeamID: teamID, UserID: req.UserID})
}

// --- Tasks ---

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if task.TeamID == "" {
		writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	if task.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if task.Type == "" {
		task.Type = models.TaskTypeTask
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if err := s.store.CreateTask(r.Context(), &task); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) listTeamTasks(w http.ResponseWriter, r *http.Request) {
	filter := store.TaskListFilter{
		TeamID:     r.PathValue("id"),
		Status:     models.TaskStatus(r.URL.Query().Get("status")),
		Priority:   models.TaskPriority(r.URL.Query().Get("priority")),
		Type:       models.TaskType(r.URL.Query().Get("type")),
		AssigneeID: r.URL.Query().Get("assignee_id"),
	}
	tasks, err := s.store.ListTasks(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch models.Task
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Merge only provided fields; zero values mean "not provided" except for
	// the nullable pointers, which overwrite when present.
	if patch.Title != "" {
		existing.Title = patch.Title
	}
	if patch.Description != "" {
		existing.Description = patch.Description
	}
	if patch.Type != "" {
		existing.Type = patch.Type
	}
	if patch.Status != "" {
		existing.Status = patch.Status
	}
	if patch.Priority != "" {
		existing.Priority = patch.Priority
	}
	if patch.StoryPoints != nil {
		existing.StoryPoints = patch.StoryPoints
	}
	if patch.AssigneeID != nil {
		existing.AssigneeID = patch.AssigneeID
	}
	if patch.DueDate != nil {
		existing.DueDate = patch.DueDate
	}

	if err := s.store.UpdateTask(r.Context(), existing); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sprints ---

func (s *Server) createSprint(w http.ResponseWriter, r *http.Request) {
	var sprint models.Sprint
	if err := json.NewDecoder(r.Body).Decode(&sprint); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if sprint.TeamID == "" || sprint.Name == "" {
		writeError(w, http.StatusBadRequest, "team_id and name are required")
		return
	}
	if sprint.StartDate.IsZero() || sprint.EndDate.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	if sprint.Status == "" {
		sprint.Status = models.SprintStatusPlanning
	}
	if err := s.store.CreateSprint(r.Context(), &sprint); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sprint)
}

func (s *Server) getSprint(w http.ResponseWriter, r *http.Request) {
	sprint, err := s.store.GetSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprint)
}

func (s *Server) listTeamSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := s.store.ListSprints(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprints)
}

func (s *Server) updateSprint(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch models.Sprint
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if patch.Name != "" {
		existing.Name = patch.Name
	}
	if patch.Goal != "" {
		existing.Goal = patch.Goal
	}
	if !patch.StartDate.IsZero() {
		existing.StartDate = patch.StartDate
	}
	if !patch.EndDate.IsZero() {
		existing.EndDate = patch.EndDate
	}
	if patch.Status != "" {
		existing.Status = patch.Status
	}

	if err := s.store.UpdateSprint(r.Context(), existing); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) listSprintTasks(w http.ResponseWriter, r *http.Request) {
	sprintID := r.PathValue("id")
	if _, err := s.store.GetSprint(r.Context(), sprintID); err != nil {
		writeStoreError(w, err)
		return
	}
	tasks, err := s.store.ListSprintTasks(r.Context(), sprintID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) addTaskToSprint(w http.ResponseWriter, r *http.Request) {
	sprintID := r.PathValue("id")
	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	if _, err := s.store.GetSprint(r.Context(), sprintID); err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := s.store.GetTask(r.Context(), req.TaskID); err != nil {
		writeStoreError(w, err)
		return
	}

	association, err := s.store.AddTaskToSprint(r.Context(), sprintID, req.TaskID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, association)
}

// --- Epics and labels ---

func (s *Server) createEpic(w http.ResponseWriter, r *http.Request) {
	var epic models.Epic
	if err := json.NewDecoder(r.Body).Decode(&epic); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if epic.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	epic.TeamID = r.PathValue("id")
	if err := s.store.CreateEpic(r.Context(), &epic); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, epic)
}

func (s *Server) listEpics(w http.ResponseWriter, r *http.Request) {
	epics, err := s.store.ListEpics(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, epics)
}

func (s *Server) createLabel(w http.ResponseWriter, r *http.Request) {
	var label models.Label
	if err := json.NewDecoder(r.Body).Decode(&label); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if label.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	label.TeamID = r.PathValue("id")
	if err := s.store.CreateLabel(r.Context(), &label); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, label)
}

func (s *Server) listLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.store.ListLabels(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}
