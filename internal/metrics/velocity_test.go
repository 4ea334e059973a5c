package metrics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sprintdeck/sprintdeck/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestVelocity_Basic(t *testing.T) {
	sprint := &models.Sprint{ID: "s1", Name: "Sprint 1"}
	tasks := []*models.Task{
		{Status: models.TaskStatusDone, StoryPoints: ptr(5.0)},
		{Status: models.TaskStatusDone, StoryPoints: ptr(3.0)},
		{Status: models.TaskStatusTodo, StoryPoints: ptr(8.0)},
		{Status: models.TaskStatusInProgress, StoryPoints: ptr(4.0)},
	}

	v := Velocity(sprint, tasks)

	assert.Equal(t, 20.0, v.PlannedPoints)
	assert.Equal(t, 8.0, v.CompletedPoints)
	assert.Equal(t, 40, v.CompletionRate)
	assert.LessOrEqual(t, v.CompletedPoints, v.PlannedPoints)
}

func TestVelocity_ZeroPlannedPoints(t *testing.T) {
	sprint := &models.Sprint{ID: "s1", Name: "Empty"}

	v := Velocity(sprint, nil)
	assert.Equal(t, 0, v.CompletionRate, "zero planned points must not divide")

	// Tasks without estimates count as zero points
	v = Velocity(sprint, []*models.Task{{Status: models.TaskStatusDone}})
	assert.Equal(t, 0.0, v.PlannedPoints)
	assert.Equal(t, 0, v.CompletionRate)
}

func TestVelocity_CompletionRateBounds(t *testing.T) {
	sprint := &models.Sprint{ID: "s1"}
	tasks := []*models.Task{
		{Status: models.TaskStatusDone, StoryPoints: ptr(10.0)},
		{Status: models.TaskStatusDone, StoryPoints: ptr(10.0)},
	}

	v := Velocity(sprint, tasks)
	assert.Equal(t, 100, v.CompletionRate)
	assert.GreaterOrEqual(t, v.CompletionRate, 0)
	assert.LessOrEqual(t, v.CompletionRate, 100)
}

func TestProductivity(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	members := []*models.TeamMember{
		{TeamID: "t1", UserID: "u1"},
		{TeamID: "t1", UserID: "u2"},
	}
	profiles := map[string]*models.UserProfile{
		"u1": {UserID: "u1", DisplayName: "Ada"},
	}
	tasks := []*models.Task{
		// u1: two completions, 3 and 4 whole days
		{Status: models.TaskStatusDone, AssigneeID: ptr("u1"), CreatedAt: created, UpdatedAt: created.Add(72 * time.Hour)},
		{Status: models.TaskStatusDone, AssigneeID: ptr("u1"), CreatedAt: created, UpdatedAt: created.Add(96 * time.Hour)},
		// in-progress work does not count
		{Status: models.TaskStatusInProgress, AssigneeID: ptr("u1"), CreatedAt: created, UpdatedAt: created},
		// unassigned completion counts for nobody
		{Status: models.TaskStatusDone, CreatedAt: created, UpdatedAt: created.Add(24 * time.Hour)},
	}

	out := Productivity(members, profiles, tasks)
	assert.Len(t, out, 2)

	ada := out[0]
	assert.Equal(t, "u1", ada.UserID)
	assert.Equal(t, "Ada", ada.DisplayName)
	assert.Equal(t, 2, ada.CompletedTasks)
	assert.Equal(t, 3.5, ada.AvgCompletionDays)
	assert.Equal(t, 11, ada.EfficiencyScore) // round(2*20/3.5)

	idle := out[1]
	assert.Equal(t, 0, idle.CompletedTasks)
	assert.Equal(t, 0.0, idle.AvgCompletionDays)
	assert.Equal(t, 0, idle.EfficiencyScore)
}

func TestProductivity_ZeroAvgCompletionTime(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	members := []*models.TeamMember{{TeamID: "t1", UserID: "u1"}}
	tasks := []*models.Task{
		{Status: models.TaskStatusDone, AssigneeID: ptr("u1"), CreatedAt: created, UpdatedAt: created},
	}

	out := Productivity(members, nil, tasks)
	assert.Equal(t, 1, out[0].CompletedTasks)
	assert.Equal(t, 0.0, out[0].AvgCompletionDays)
	assert.Equal(t, 0, out[0].EfficiencyScore, "zero average time must not divide")
}

func TestProductivity_EfficiencyCap(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	members := []*models.TeamMember{{TeamID: "t1", UserID: "u1"}}

	// 20 one-day completions: round(20*20/1) = 400, capped at 100
	var tasks []*models.Task
	for i := 0; i < 20; i++ {
		tasks = append(tasks, &models.Task{
			Status: models.TaskStatusDone, AssigneeID: ptr("u1"),
			CreatedAt: created, UpdatedAt: created.Add(24 * time.Hour),
		})
	}

	out := Productivity(members, nil, tasks)
	assert.Equal(t, 100, out[0].EfficiencyScore)
}

func TestSimulatedQuality_Ranges(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		q := SimulatedQuality(r)
		assert.True(t, q.Simulated, "quality metrics must be labeled simulated")
		assert.GreaterOrEqual(t, q.BugRate, 0.0)
		assert.Less(t, q.BugRate, 5.0)
		assert.GreaterOrEqual(t, q.ReworkPercentage, 0.0)
		assert.Less(t, q.ReworkPercentage, 15.0)
		assert.GreaterOrEqual(t, q.CustomerSatisfaction, 4.0)
		assert.Less(t, q.CustomerSatisfaction, 5.0)
	}
}
