package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sprintdeck/sprintdeck/internal/llm"
	"github.com/sprintdeck/sprintdeck/internal/metrics"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

// Server wraps the sprintdeck data layer and exposes it as MCP tools.
// The LLM client is optional; tools that need it report an error when it
// is absent.
type Server struct {
	store store.Store
	llm   *llm.Client
	now   func() time.Time
}

// NewServer creates the MCP server wrapper. llmClient may be nil.
func NewServer(s store.Store, llmClient *llm.Client) *Server {
	return &Server{
		store: s,
		llm:   llmClient,
		now:   time.Now,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("sprintdeck", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listTeamsTool())
	srv.AddTool(s.listTasksTool())
	srv.AddTool(s.createTaskTool())
	srv.AddTool(s.updateTaskTool())
	srv.AddTool(s.sprintVelocityTool())
	srv.AddTool(s.predictSprintTool())
	srv.AddTool(s.generateRetrospectiveTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// sprintdeck_list_teams
func (s *Server) listTeamsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sprintdeck_list_teams",
		mcp.WithDescription("List teams. Returns a JSON array of teams with id, organization_id, name, and description."),
		mcp.WithString("organization_id", mcp.Description("Filter by organization ID")),
	)
	return tool, s.handleListTeams
}

func (s *Server) handleListTeams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgID := request.GetString("organization_id", "")
	teams, err := s.store.ListTeams(ctx, orgID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list teams: %v", err)), nil
	}

	type teamOut struct {
		ID             string `json:"id"`
		OrganizationID string `json:"organization_id"`
		Name           string `json:"name"`
		Description    string `json:"description"`
	}

	out := make([]teamOut, len(teams))
	for i, tm := range teams {
		out[i] = teamOut{
			ID:             tm.ID,
			OrganizationID: tm.OrganizationID,
			Name:           tm.Name,
			Description:    tm.Description,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal teams: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sprintdeck_list_tasks
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sprintdeck_list_tasks",
		mcp.WithDescription("List tasks, optionally filtered by team, status, priority, type, and/or assignee. Returns a JSON array of tasks. Each task has: title, description, status (todo/in_progress/done), priority (low/medium/high), type (task/story/bug), story_points, and assignee_id."),
		mcp.WithString("team", mcp.Description("Team name or ID to filter by")),
		mcp.WithString("status", mcp.Description("Status filter: todo, in_progress, done")),
		mcp.WithString("priority", mcp.Description("Priority filter: low, medium, high")),
		mcp.WithString("type", mcp.Description("Type filter: task, story, bug")),
		mcp.WithString("assignee_id", mcp.Description("Assignee user ID to filter by")),
	)
	return tool, s.handleListTasks
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.TaskListFilter{}

	teamName := request.GetString("team", "")
	if teamName != "" {
		team, err := s.resolveTeam(ctx, teamName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("team not found: %s", teamName)), nil
		}
		filter.TeamID = team.ID
	}
	if status := request.GetString("status", ""); status != "" {
		filter.Status = models.TaskStatus(status)
	}
	if priority := request.GetString("priority", ""); priority != "" {
		filter.Priority = models.TaskPriority(priority)
	}
	if taskType := request.GetString("type", ""); taskType != "" {
		filter.Type = models.TaskType(taskType)
	}
	filter.AssigneeID = request.GetString("assignee_id", "")

	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}

	out := make([]map[string]any, len(tasks))
	for i, task := range tasks {
		out[i] = taskOut(task)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal tasks: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sprintdeck_create_task
func (s *Server) createTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sprintdeck_create_task",
		mcp.WithDescription("Create a new task for a team. Returns the created task as JSON."),
		mcp.WithString("team", mcp.Required(), mcp.Description("Team name or ID")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("type", mcp.Description("Task type: task, story, bug (default: task)")),
		mcp.WithString("priority", mcp.Description("Task priority: low, medium, high (default: medium)")),
		mcp.WithNumber("story_points", mcp.Description("Story point estimate")),
		mcp.WithString("assignee_id", mcp.Description("Assignee user ID")),
	)
	return tool, s.handleCreateTask
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	teamName, err := request.RequireString("team")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: team"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	team, err := s.resolveTeam(ctx, teamName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("team not found: %s", teamName)), nil
	}

	task := &models.Task{
		TeamID:      team.ID,
		Title:       title,
		Description: request.GetString("description", ""),
		Type:        models.TaskType(request.GetString("type", "task")),
		Status:      models.TaskStatusTodo,
		Priority:    models.TaskPriority(request.GetString("priority", "medium")),
	}
	if points := request.GetFloat("story_points", 0); points > 0 {
		task.StoryPoints = &points
	}
	if assignee := request.GetString("assignee_id", ""); assignee != "" {
		task.AssigneeID = &assignee
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}

	data, err := json.Marshal(taskOut(task))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sprintdeck_update_task
func (s *Server) updateTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sprintdeck_update_task",
		mcp.WithDescription("Update an existing task. Provide the task ID (full or prefix) and at least one field to update. Returns the updated task as JSON."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID (full ULID or unique prefix)")),
		mcp.WithString("status", mcp.Description("New status: todo, in_progress, done")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("priority", mcp.Description("New priority: low, medium, high")),
		mcp.WithNumber("story_points", mcp.Description("New story point estimate")),
		mcp.WithString("assignee_id", mcp.Description("New assignee user ID")),
	)
	return tool, s.handleUpdateTask
}

func (s *Server) handleUpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: task_id"), nil
	}

	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated := false
	if status := request.GetString("status", ""); status != "" {
		task.Status = models.TaskStatus(status)
		updated = true
	}
	if title := request.GetString("title", ""); title != "" {
		task.Title = title
		updated = true
	}
	if desc := request.GetString("description", ""); desc != "" {
		task.Description = desc
		updated = true
	}
	if priority := request.GetString("priority", ""); priority != "" {
		task.Priority = models.TaskPriority(priority)
		updated = true
	}
	if points := request.GetFloat("story_points", -1); points >= 0 {
		task.StoryPoints = &points
		updated = true
	}
	if assignee := request.GetString("assignee_id", ""); assignee != "" {
		task.AssigneeID = &assignee
		updated = true
	}

	if !updated {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: status, title, description, priority, story_points, assignee_id"), nil
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update task: %v", err)), nil
	}

	data, err := json.Marshal(taskOut(task))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sprintdeck_sprint_velocity
func (s *Server) sprintVelocityTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sprintdeck_sprint_velocity",
		mcp.WithDescription("Compute planned vs completed story points per sprint for a team over a time window. Returns a JSON array sorted by sprint start date."),
		mcp.WithString("team", mcp.Required(), mcp.Description("Team name or ID")),
		mcp.WithNumber("time_range_days", mcp.Description("Window in days counting back from now (default: 30)")),
	)
	return tool, s.handleSprintVelocity
}

func (s *Server) handleSprintVelocity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	teamName, err := request.RequireString("team")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: team"), nil
	}
	team, err := s.resolveTeam(ctx, teamName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("team not found: %s", teamName)), nil
	}

	days := int(request.GetFloat("time_range_days", 30))
	if days <= 0 {
		days = 30
	}
	since := s.now().AddDate(0, 0, -days)

	sprints, err := s.store.ListSprintsCreatedSince(ctx, []string{team.ID}, since)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sprints: %v", err)), nil
	}
	if len(sprints) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("no sprints found for team %s in the last %d days", team.Name, days)), nil
	}

	sprintIDs := make([]string, len(sprints))
	for i, sp := range sprints {
		sprintIDs[i] = sp.ID
	}
	tasksBySprint, err := s.store.ListTasksForSprints(ctx, sprintIDs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sprint tasks: %v", err)), nil
	}

	out := make([]metrics.SprintVelocity, len(sprints))
	for i, sp := range sprints {
		out[i] = metrics.Velocity(sp, tasksBySprint[sp.ID])
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal velocity: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sprintdeck_predict_sprint
func (s *Server) predictSprintTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sprintdeck_predict_sprint",
		mcp.WithDescription("Predict completion probability for a sprint. Returns JSON with progress, risk factors, completion probability, confidence, a burndown projection, and recommended actions."),
		mcp.WithString("sprint", mcp.Required(), mcp.Description("Sprint ID (full ULID or unique prefix) or sprint name when team is given")),
		mcp.WithString("team", mcp.Description("Team name or ID, used to resolve the sprint by name")),
	)
	return tool, s.handlePredictSprint
}

func (s *Server) handlePredictSprint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sprintRef, err := request.RequireString("sprint")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sprint"), nil
	}

	sprint, err := s.findSprint(ctx, sprintRef, request.GetString("team", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tasks, err := s.store.ListSprintTasks(ctx, sprint.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sprint tasks: %v", err)), nil
	}
	members, err := s.store.ListTeamMembers(ctx, sprint.TeamID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list team members: %v", err)), nil
	}

	data, err := json.Marshal(metrics.Predict(sprint, tasks, members, s.now()))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal prediction: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sprintdeck_generate_retrospective
func (s *Server) generateRetrospectiveTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sprintdeck_generate_retrospective",
		mcp.WithDescription("Generate and store an AI retrospective for a sprint. Fails if a retrospective already exists. Returns the stored markdown."),
		mcp.WithString("sprint", mcp.Required(), mcp.Description("Sprint ID (full ULID or unique prefix) or sprint name when team is given")),
		mcp.WithString("team", mcp.Description("Team name or ID, used to resolve the sprint by name")),
	)
	return tool, s.handleGenerateRetrospective
}

func (s *Server) handleGenerateRetrospective(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.llm == nil {
		return mcp.NewToolResultError("LLM not configured (set ANTHROPIC_API_KEY)"), nil
	}

	sprintRef, err := request.RequireString("sprint")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sprint"), nil
	}
	sprint, err := s.findSprint(ctx, sprintRef, request.GetString("team", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.store.GetRetrospectiveBySprint(ctx, sprint.ID); err == nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrospective already exists for sprint %s", sprint.Name)), nil
	}

	tasks, err := s.store.ListSprintTasks(ctx, sprint.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sprint tasks: %v", err)), nil
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
	for _, task := range tasks {
		if task.Status == models.TaskStatusDone {
			stats.CompletedTasks++
			stats.DoneTitles = append(stats.DoneTitles, task.Title)
		} else {
			stats.UnfinishedTitles = append(stats.UnfinishedTitles, task.Title)
		}
	}

	content, err := s.llm.GenerateRetrospective(ctx, stats)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrospective generation failed: %v", err)), nil
	}

	retro := &models.Retrospective{SprintID: sprint.ID, Content: content}
	if err := s.store.CreateRetrospective(ctx, retro); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store retrospective: %v", err)), nil
	}

	result := map[string]any{
		"id":        retro.ID,
		"sprint_id": sprint.ID,
		"sprint":    sprint.Name,
		"content":   retro.Content,
	}
	data, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func taskOut(task *models.Task) map[string]any {
	out := map[string]any{
		"id":          task.ID,
		"team_id":     task.TeamID,
		"title":       task.Title,
		"description": task.Description,
		"type":        string(task.Type),
		"status":      string(task.Status),
		"priority":    string(task.Priority),
		"created_at":  task.CreatedAt.Format(time.RFC3339),
		"updated_at":  task.UpdatedAt.Format(time.RFC3339),
	}
	if task.StoryPoints != nil {
		out["story_points"] = *task.StoryPoints
	}
	if task.AssigneeID != nil {
		out["assignee_id"] = *task.AssigneeID
	}
	return out
}

// resolveTeam tries to find a team by name first, then by ID.
func (s *Server) resolveTeam(ctx context.Context, ref string) (*models.Team, error) {
	teams, err := s.store.ListTeams(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		if team.Name == ref {
			return team, nil
		}
	}
	if team, err := s.store.GetTeam(ctx, ref); err == nil {
		return team, nil
	}
	return nil, fmt.Errorf("team not found: %s", ref)
}

// findTask finds a task by full ID or unique prefix.
func (s *Server) findTask(ctx context.Context, id string) (*models.Task, error) {
	if task, err := s.store.GetTask(ctx, id); err == nil {
		return task, nil
	}

	upper := strings.ToUpper(id)
	tasks, err := s.store.ListTasks(ctx, store.TaskListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.Task
	for _, task := range tasks {
		if strings.HasPrefix(task.ID, upper) {
			matches = append(matches, task)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("task not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous task ID %s: matches %d tasks", id, len(matches))
	}
}

// findSprint resolves a sprint by ID, ID prefix, or by name within a team.
func (s *Server) findSprint(ctx context.Context, ref, teamRef string) (*models.Sprint, error) {
	if sprint, err := s.store.GetSprint(ctx, ref); err == nil {
		return sprint, nil
	}

	var sprints []*models.Sprint
	if teamRef != "" {
		team, err := s.resolveTeam(ctx, teamRef)
		if err != nil {
			return nil, err
		}
		sprints, err = s.store.ListSprints(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		for _, sp := range sprints {
			if sp.Name == ref {
				return sp, nil
			}
		}
	} else {
		teams, err := s.store.ListTeams(ctx, "")
		if err != nil {
			return nil, err
		}
		for _, team := range teams {
			teamSprints, err := s.store.ListSprints(ctx, team.ID)
			if err != nil {
				return nil, err
			}
			sprints = append(sprints, teamSprints...)
		}
	}

	upper := strings.ToUpper(ref)
	var matches []*models.Sprint
	for _, sp := range sprints {
		if strings.HasPrefix(sp.ID, upper) {
			matches = append(matches, sp)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("sprint not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous sprint ID %s: matches %d sprints", ref, len(matches))
	}
}
