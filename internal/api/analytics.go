package api

import (
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/metrics"
	"github.com/sprintdeck/sprintdeck/internal/models"
)

// performanceResponse is the envelope for the performance metrics aggregator.
type performanceResponse struct {
	SprintVelocity   []metrics.SprintVelocity    `json:"sprint_velocity"`
	TeamProductivity []metrics.MemberProductivity `json:"team_productivity"`
	QualityMetrics   metrics.QualityMetrics       `json:"quality_metrics"`
}

func (s *Server) performanceMetrics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamIDs       []string `json:"team_ids"`
		TimeRangeDays int      `json:"time_range_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.TeamIDs) == 0 {
		writeError(w, http.StatusBadRequest, "team_ids is required")
		return
	}
	if req.TimeRangeDays <= 0 {
		req.TimeRangeDays = 30
	}

	ctx := r.Context()
	since := s.now().AddDate(0, 0, -req.TimeRangeDays)

	sprints, err := s.store.ListSprintsCreatedSince(ctx, req.TeamIDs, since)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(sprints) == 0 {
		writeError(w, http.StatusNotFound, "no sprints found in time range")
		return
	}

	sprintIDs := make([]string, len(sprints))
	for i, sp := range sprints {
		sprintIDs[i] = sp.ID
	}
	tasksBySprint, err := s.store.ListTasksForSprints(ctx, sprintIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	members, err := s.store.ListTeamMembersForTeams(ctx, req.TeamIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	userIDs := make([]string, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
	}
	profiles, err := s.store.GetUserProfiles(ctx, userIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := performanceResponse{
		SprintVelocity:   make([]metrics.SprintVelocity, 0, len(sprints)),
		TeamProductivity: []metrics.MemberProductivity{},
	}

	// Per-member stats run over every task row joined through the window's
	// sprints, matching how velocity sees the same rows.
	var allTasks []*models.Task
	for _, sp := range sprints {
		tasks := tasksBySprint[sp.ID]
		resp.SprintVelocity = append(resp.SprintVelocity, metrics.Velocity(sp, tasks))
		allTasks = append(allTasks, tasks...)
	}
	resp.TeamProductivity = metrics.Productivity(members, profiles, allTasks)
	resp.QualityMetrics = metrics.SimulatedQuality(rand.New(rand.NewSource(s.now().UnixNano())))

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) predictiveAnalytics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SprintID string   `json:"sprint_id"`
		TeamIDs  []string `json:"team_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SprintID == "" {
		writeError(w, http.StatusBadRequest, "sprint_id is required")
		return
	}

	ctx := r.Context()
	sprint, err := s.store.GetSprint(ctx, req.SprintID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	tasks, err := s.store.ListSprintTasks(ctx, sprint.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	teamIDs := req.TeamIDs
	if len(teamIDs) == 0 {
		teamIDs = []string{sprint.TeamID}
	}
	members, err := s.store.ListTeamMembersForTeams(ctx, teamIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics.Predict(sprint, tasks, members, s.now()))
}

// --- Dashboard ---

type dashboardMember struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Initials    string `json:"initials"`
}

type dashboardSprint struct {
	*models.Sprint
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	ProgressPct    int `json:"progress_pct"`
}

type dashboardResponse struct {
	Team    *models.Team      `json:"team"`
	Members []dashboardMember `json:"members"`
	Sprints []dashboardSprint `json:"sprints"`
}

func (s *Server) teamDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	team, err := s.store.GetTeam(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	members, err := s.store.ListTeamMembers(ctx, team.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	userIDs := make([]string, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
	}
	profiles, err := s.store.GetUserProfiles(ctx, userIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sprints, err := s.store.ListSprints(ctx, team.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	sprintIDs := make([]string, len(sprints))
	for i, sp := range sprints {
		sprintIDs[i] = sp.ID
	}
	tasksBySprint, err := s.store.ListTasksForSprints(ctx, sprintIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := dashboardResponse{
		Team:    team,
		Members: make([]dashboardMember, 0, len(members)),
		Sprints: make([]dashboardSprint, 0, len(sprints)),
	}
	for _, m := range members {
		dm := dashboardMember{UserID: m.UserID}
		if p, ok := profiles[m.UserID]; ok {
			dm.DisplayName = p.DisplayName
		}
		dm.Initials = initials(dm.DisplayName)
		resp.Members = append(resp.Members, dm)
	}
	for _, sp := range sprints {
		ds := dashboardSprint{Sprint: sp}
		for _, t := range tasksBySprint[sp.ID] {
			ds.TotalTasks++
			if t.Status == models.TaskStatusDone {
				ds.CompletedTasks++
			}
		}
		if ds.TotalTasks > 0 {
			ds.ProgressPct = int(math.Round(float64(ds.CompletedTasks) / float64(ds.TotalTasks) * 100))
		}
		resp.Sprints = append(resp.Sprints, ds)
	}

	writeJSON(w, http.StatusOK, resp)
}

// initials builds up to two uppercase initials from a display name.
func initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		out = append(out, []rune(strings.ToUpper(word))[0])
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

// parseDate parses a YYYY-MM-DD string, falling back to now.
func parseDate(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return now
	}
	return t
}
