package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintdeck/sprintdeck/internal/models"
)

// Monday, 2026-03-02. Keeping the clock fixed makes the day arithmetic and
// the weekend heuristic deterministic.
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestPredict_WorkedExample(t *testing.T) {
	// 20 total points, 5 completed, elapsed 5 of 10 days. Expected: progress
	// 25%, time progress 50%, one risk (behind schedule), probability 15.
	sprint := &models.Sprint{
		ID:        "s1",
		StartDate: monday.AddDate(0, 0, -5),
		EndDate:   monday.AddDate(0, 0, 5), // Saturday; remaining days Mon-Fri
	}
	tasks := []*models.Task{
		{Status: models.TaskStatusDone, StoryPoints: ptr(5.0), AssigneeID: ptr("u1")},
		{Status: models.TaskStatusTodo, StoryPoints: ptr(5.0), AssigneeID: ptr("u1")},
		{Status: models.TaskStatusTodo, StoryPoints: ptr(5.0), AssigneeID: ptr("u2")},
		{Status: models.TaskStatusTodo, StoryPoints: ptr(5.0), AssigneeID: ptr("u2")},
	}

	p := Predict(sprint, tasks, []*models.TeamMember{{UserID: "u1"}, {UserID: "u2"}}, monday)

	assert.Equal(t, 25.0, p.ProgressPct)
	assert.Equal(t, 50.0, p.TimeProgressPct)
	assert.Equal(t, 5, p.ElapsedDays)
	assert.Equal(t, 5, p.RemainingDays)
	assert.Equal(t, 10, p.TotalDays)

	require.Len(t, p.RiskFactors, 1)
	assert.Contains(t, p.RiskFactors[0], "behind schedule")

	assert.Equal(t, 15, p.CompletionProbability)
}

func TestPredict_TaskCounts(t *testing.T) {
	sprint := &models.Sprint{ID: "s1", StartDate: monday.AddDate(0, 0, -2), EndDate: monday.AddDate(0, 0, 12)}
	tasks := []*models.Task{
		{Status: models.TaskStatusDone, AssigneeID: ptr("u1")},
		{Status: models.TaskStatusInProgress, AssigneeID: ptr("u1")},
		{Status: models.TaskStatusTodo},
		{Status: models.TaskStatusTodo},
	}

	p := Predict(sprint, tasks, nil, monday)

	assert.Equal(t, 4, p.TotalTasks)
	assert.Equal(t, 1, p.CompletedTasks)
	assert.Equal(t, 1, p.InProgressTasks)
	assert.Equal(t, 2, p.TodoTasks)
	assert.Equal(t, 2, p.UnassignedTasks)
}

func TestPredict_EmptySprint(t *testing.T) {
	sprint := &models.Sprint{ID: "s1", StartDate: monday, EndDate: monday.AddDate(0, 0, 14)}

	p := Predict(sprint, nil, nil, monday)

	assert.Equal(t, 0.0, p.ProgressPct, "zero total points yields zero progress")
	assert.GreaterOrEqual(t, p.CompletionProbability, 10)
	assert.LessOrEqual(t, p.CompletionProbability, 100)
}

func TestCompletionProbability_Multipliers(t *testing.T) {
	tests := []struct {
		name         string
		progress     float64
		timeProgress float64
		risks        int
		want         int
	}{
		{"late and slow applies 0.7", 50, 90, 0, 35},
		{"ahead of schedule applies 1.1", 80, 40, 0, 88},
		{"1.1 result caps at 95", 90, 40, 0, 95},
		{"no multiplier in the middle", 50, 60, 0, 50},
		{"floor at 10", 0, 100, 3, 10},
		{"penalty caps at 30", 100, 60, 5, 70},
		{"perfect sprint", 100, 60, 0, 100},
		{"boundary: timeProgress exactly 80 skips 0.7", 50, 80, 0, 50},
		{"boundary: progress exactly 70 skips 1.1", 70, 40, 0, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := completionProbability(tt.progress, tt.timeProgress, tt.risks)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 10)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestPredict_ConfidenceSaturation(t *testing.T) {
	sprint := &models.Sprint{ID: "s1", StartDate: monday.AddDate(0, 0, -1), EndDate: monday.AddDate(0, 0, 13)}

	var tasks []*models.Task
	for i := 0; i < 50; i++ {
		tasks = append(tasks, &models.Task{Status: models.TaskStatusTodo, AssigneeID: ptr("u1")})
	}
	var members []*models.TeamMember
	for i := 0; i < 10; i++ {
		members = append(members, &models.TeamMember{UserID: fmt.Sprintf("u%d", i)})
	}

	p := Predict(sprint, tasks, members, monday)
	assert.Equal(t, 95, p.Confidence, "confidence saturates at 95")

	// Small sprint: 60 + 5*1 + 10*1 = 75
	p = Predict(sprint, tasks[:1], members[:1], monday)
	assert.Equal(t, 75, p.Confidence)
}

func TestBurndown_Shape(t *testing.T) {
	points := burndown(20, 5, 5, 10)
	require.Len(t, points, 8, "horizon is min(remaining, 7) + 1")

	require.NotNil(t, points[0].Actual)
	assert.Equal(t, 15.0, *points[0].Actual)
	for _, bp := range points[1:] {
		assert.Nil(t, bp.Actual, "only day 0 carries an actual value")
	}

	// burn rate = 5/5 = 1 point per day
	assert.Equal(t, 15.0, points[0].Predicted)
	assert.Equal(t, 14.0, points[1].Predicted)
	assert.Equal(t, 8.0, points[7].Predicted)
}

func TestBurndown_ShortRemainder(t *testing.T) {
	points := burndown(20, 5, 5, 3)
	assert.Len(t, points, 4)

	points = burndown(20, 5, 5, 0)
	assert.Len(t, points, 1)
}

func TestBurndown_NeverNegative(t *testing.T) {
	// High burn rate: 18 completed in 2 days = 9/day against 2 remaining points
	points := burndown(20, 18, 2, 7)
	for _, bp := range points {
		assert.GreaterOrEqual(t, bp.Predicted, 0.0)
	}
}

func TestBurndown_ZeroElapsedDays(t *testing.T) {
	// elapsed 0 falls back to a one-day denominator instead of dividing by zero
	points := burndown(10, 5, 0, 2)
	require.Len(t, points, 3)
	assert.Equal(t, 0.0, points[1].Predicted) // 5 - 5*1
}

func TestRiskFactors_OrderIsDeterministic(t *testing.T) {
	// Friday with the sprint ending Sunday: the remaining window spans a
	// weekend. Every trigger fires.
	friday := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	overdue := friday.AddDate(0, 0, -3)
	sprint := &models.Sprint{
		ID:        "s1",
		StartDate: friday.AddDate(0, 0, -10),
		EndDate:   friday.AddDate(0, 0, 2),
	}
	tasks := []*models.Task{
		{Status: models.TaskStatusInProgress, StoryPoints: ptr(5.0), DueDate: &overdue},
		{Status: models.TaskStatusInProgress, StoryPoints: ptr(5.0), AssigneeID: ptr("u1")},
		{Status: models.TaskStatusTodo, StoryPoints: ptr(5.0), AssigneeID: ptr("u1")},
	}

	p := Predict(sprint, tasks, nil, friday)

	require.Len(t, p.RiskFactors, 5)
	assert.Contains(t, p.RiskFactors[0], "no assignee")
	assert.Contains(t, p.RiskFactors[1], "behind schedule")
	assert.Contains(t, p.RiskFactors[2], "in progress")
	assert.Contains(t, p.RiskFactors[3], "past their due date")
	assert.Contains(t, p.RiskFactors[4], "weekend")
}

func TestRecommendedActions(t *testing.T) {
	t.Run("on track filler only without risks", func(t *testing.T) {
		sprint := &models.Sprint{ID: "s1", StartDate: monday.AddDate(0, 0, -1), EndDate: monday.AddDate(0, 0, 13)}
		tasks := []*models.Task{
			{Status: models.TaskStatusDone, StoryPoints: ptr(5.0), AssigneeID: ptr("u1")},
			{Status: models.TaskStatusTodo, StoryPoints: ptr(5.0), AssigneeID: ptr("u1")},
		}

		p := Predict(sprint, tasks, nil, monday)
		require.Empty(t, p.RiskFactors)

		require.Len(t, p.RecommendedActions, 2)
		assert.Contains(t, p.RecommendedActions[0], "on track")
		assert.Contains(t, p.RecommendedActions[1], "stand-ups")
	})

	t.Run("stand-up suggestion is always last", func(t *testing.T) {
		sprint := &models.Sprint{ID: "s1", StartDate: monday.AddDate(0, 0, -5), EndDate: monday.AddDate(0, 0, 9)}
		tasks := []*models.Task{
			{Status: models.TaskStatusTodo, StoryPoints: ptr(5.0)},
		}

		p := Predict(sprint, tasks, nil, monday)
		require.NotEmpty(t, p.RiskFactors)

		last := p.RecommendedActions[len(p.RecommendedActions)-1]
		assert.Contains(t, last, "stand-ups")
		for _, a := range p.RecommendedActions {
			assert.NotContains(t, a, "on track")
		}
	})
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, 0, ceilDays(0))
	assert.Equal(t, 0, ceilDays(-time.Hour))
	assert.Equal(t, 1, ceilDays(time.Hour))
	assert.Equal(t, 1, ceilDays(24*time.Hour))
	assert.Equal(t, 2, ceilDays(25*time.Hour))
}
