package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewServer(s, nil), s
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "failed to parse result JSON: %s", text)
}

func seedTeam(t *testing.T, s store.Store, name string) *models.Team {
	t.Helper()
	ctx := context.Background()
	org := &models.Organization{Name: "acme-" + name}
	require.NoError(t, s.CreateOrganization(ctx, org))
	team := &models.Team{OrganizationID: org.ID, Name: name}
	require.NoError(t, s.CreateTeam(ctx, team))
	return team
}

func seedTask(t *testing.T, s store.Store, teamID, title string, status models.TaskStatus) *models.Task {
	t.Helper()
	task := &models.Task{
		TeamID:   teamID,
		Title:    title,
		Type:     models.TaskTypeTask,
		Status:   status,
		Priority: models.TaskPriorityMedium,
	}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func TestMCPServerRegistration(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestHandleListTeams(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	seedTeam(t, s, "alpha")
	seedTeam(t, s, "beta")

	result, err := srv.handleListTeams(ctx, callToolReq("sprintdeck_list_teams", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var teams []map[string]any
	resultJSON(t, result, &teams)
	require.Len(t, teams, 2)
	assert.Equal(t, "alpha", teams[0]["name"])
	assert.Equal(t, "beta", teams[1]["name"])
}

func TestHandleListTasks(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	team := seedTeam(t, s, "platform")

	seedTask(t, s, team.ID, "open work", models.TaskStatusTodo)
	seedTask(t, s, team.ID, "done work", models.TaskStatusDone)

	t.Run("filter by team name", func(t *testing.T) {
		result, err := srv.handleListTasks(ctx, callToolReq("sprintdeck_list_tasks", map[string]any{"team": "platform"}))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var tasks []map[string]any
		resultJSON(t, result, &tasks)
		assert.Len(t, tasks, 2)
	})

	t.Run("filter by status", func(t *testing.T) {
		result, err := srv.handleListTasks(ctx, callToolReq("sprintdeck_list_tasks", map[string]any{"team": "platform", "status": "done"}))
		require.NoError(t, err)

		var tasks []map[string]any
		resultJSON(t, result, &tasks)
		require.Len(t, tasks, 1)
		assert.Equal(t, "done work", tasks[0]["title"])
	})

	t.Run("unknown team", func(t *testing.T) {
		result, err := srv.handleListTasks(ctx, callToolReq("sprintdeck_list_tasks", map[string]any{"team": "ghost"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandleCreateTask(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	team := seedTeam(t, s, "platform")

	result, err := srv.handleCreateTask(ctx, callToolReq("sprintdeck_create_task", map[string]any{
		"team":         "platform",
		"title":        "Wire exports",
		"story_points": 5.0,
		"assignee_id":  "u1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var task map[string]any
	resultJSON(t, result, &task)
	assert.Equal(t, team.ID, task["team_id"])
	assert.Equal(t, "todo", task["status"])
	assert.Equal(t, "medium", task["priority"])
	assert.Equal(t, 5.0, task["story_points"])
	assert.Equal(t, "u1", task["assignee_id"])

	t.Run("missing title", func(t *testing.T) {
		result, err := srv.handleCreateTask(ctx, callToolReq("sprintdeck_create_task", map[string]any{"team": "platform"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandleUpdateTask(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	team := seedTeam(t, s, "platform")
	task := seedTask(t, s, team.ID, "original", models.TaskStatusTodo)

	t.Run("by ID prefix", func(t *testing.T) {
		result, err := srv.handleUpdateTask(ctx, callToolReq("sprintdeck_update_task", map[string]any{
			"task_id": strings.ToLower(task.ID[:10]),
			"status":  "in_progress",
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError, resultText(t, result))

		got, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusInProgress, got.Status)
		assert.Equal(t, "original", got.Title)
	})

	t.Run("no fields", func(t *testing.T) {
		result, err := srv.handleUpdateTask(ctx, callToolReq("sprintdeck_update_task", map[string]any{"task_id": task.ID}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("unknown task", func(t *testing.T) {
		result, err := srv.handleUpdateTask(ctx, callToolReq("sprintdeck_update_task", map[string]any{"task_id": "nope", "status": "done"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandleSprintVelocity(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	team := seedTeam(t, s, "platform")

	t.Run("no sprints", func(t *testing.T) {
		result, err := srv.handleSprintVelocity(ctx, callToolReq("sprintdeck_sprint_velocity", map[string]any{"team": "platform"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	start := time.Now().AddDate(0, 0, -7)
	sprint := &models.Sprint{TeamID: team.ID, Name: "Sprint 1", StartDate: start, EndDate: start.AddDate(0, 0, 14), Status: models.SprintStatusActive}
	require.NoError(t, s.CreateSprint(ctx, sprint))

	points := 8.0
	task := seedTask(t, s, team.ID, "estimated", models.TaskStatusDone)
	task.StoryPoints = &points
	require.NoError(t, s.UpdateTask(ctx, task))
	_, err := s.AddTaskToSprint(ctx, sprint.ID, task.ID)
	require.NoError(t, err)

	result, err := srv.handleSprintVelocity(ctx, callToolReq("sprintdeck_sprint_velocity", map[string]any{"team": "platform"}))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))

	var velocities []map[string]any
	resultJSON(t, result, &velocities)
	require.Len(t, velocities, 1)
	assert.Equal(t, 8.0, velocities[0]["planned_points"])
	assert.Equal(t, 8.0, velocities[0]["completed_points"])
	assert.Equal(t, float64(100), velocities[0]["completion_rate"])
}

func TestHandlePredictSprint(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	team := seedTeam(t, s, "platform")

	start := time.Now().AddDate(0, 0, -5)
	sprint := &models.Sprint{TeamID: team.ID, Name: "Sprint 1", StartDate: start, EndDate: start.AddDate(0, 0, 9), Status: models.SprintStatusActive}
	require.NoError(t, s.CreateSprint(ctx, sprint))

	task := seedTask(t, s, team.ID, "work", models.TaskStatusInProgress)
	_, err := s.AddTaskToSprint(ctx, sprint.ID, task.ID)
	require.NoError(t, err)

	t.Run("by name within team", func(t *testing.T) {
		result, err := srv.handlePredictSprint(ctx, callToolReq("sprintdeck_predict_sprint", map[string]any{
			"sprint": "Sprint 1",
			"team":   "platform",
		}))
		require.NoError(t, err)
		assert.False(t, result.IsError, resultText(t, result))

		var prediction map[string]any
		resultJSON(t, result, &prediction)
		assert.Equal(t, sprint.ID, prediction["sprint_id"])
		assert.Equal(t, float64(1), prediction["total_tasks"])
		assert.NotEmpty(t, prediction["burndown"])
	})

	t.Run("unknown sprint", func(t *testing.T) {
		result, err := srv.handlePredictSprint(ctx, callToolReq("sprintdeck_predict_sprint", map[string]any{"sprint": "ghost"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestHandleGenerateRetrospectiveWithoutLLM(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	team := seedTeam(t, s, "platform")

	start := time.Now().AddDate(0, 0, -14)
	sprint := &models.Sprint{TeamID: team.ID, Name: "Sprint 1", StartDate: start, EndDate: time.Now(), Status: models.SprintStatusCompleted}
	require.NoError(t, s.CreateSprint(ctx, sprint))

	result, err := srv.handleGenerateRetrospective(ctx, callToolReq("sprintdeck_generate_retrospective", map[string]any{"sprint": sprint.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "LLM not configured")
}

func TestFindSprintAcrossTeams(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	team := seedTeam(t, s, "platform")

	start := time.Now()
	sprint := &models.Sprint{TeamID: team.ID, Name: "Sprint 1", StartDate: start, EndDate: start.AddDate(0, 0, 14), Status: models.SprintStatusPlanning}
	require.NoError(t, s.CreateSprint(ctx, sprint))

	found, err := srv.findSprint(ctx, sprint.ID[:10], "")
	require.NoError(t, err)
	assert.Equal(t, sprint.ID, found.ID)
}
