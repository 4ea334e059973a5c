package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/models"
)

// BurndownPoint is one day of the projected burndown. Actual is only set for
// day 0 (the current remaining work); projected days carry nil.
type BurndownPoint struct {
	Day       int      `json:"day"`
	Predicted float64  `json:"predicted"`
	Actual    *float64 `json:"actual"`
}

// Prediction is the full output of the predictive engine for one sprint.
type Prediction struct {
	SprintID              string          `json:"sprint_id"`
	TotalTasks            int             `json:"total_tasks"`
	CompletedTasks        int             `json:"completed_tasks"`
	InProgressTasks       int             `json:"in_progress_tasks"`
	TodoTasks             int             `json:"todo_tasks"`
	UnassignedTasks       int             `json:"unassigned_tasks"`
	TotalPoints           float64         `json:"total_points"`
	CompletedPoints       float64         `json:"completed_points"`
	ProgressPct           float64         `json:"progress_pct"`
	TimeProgressPct       float64         `json:"time_progress_pct"`
	ElapsedDays           int             `json:"elapsed_days"`
	RemainingDays         int             `json:"remaining_days"`
	TotalDays             int             `json:"total_days"`
	RiskFactors           []string        `json:"risk_factors"`
	CompletionProbability int             `json:"completion_probability"` // [10, 100]
	Confidence            int             `json:"confidence"`             // <= 95
	Burndown              []BurndownPoint `json:"burndown"`
	RecommendedActions    []string        `json:"recommended_actions"`
}

// Predict runs the predictive analytics over a sprint's tasks and members.
// now is injected so the day arithmetic is deterministic under test.
//
// Risk factors are appended in a fixed order: unassigned tasks, schedule lag,
// in-progress overload, overdue tasks, weekend overlap. The completion
// probability starts from progress, is adjusted by the schedule multipliers,
// loses min(30, 10*riskCount) and never drops below 10.
func Predict(sprint *models.Sprint, tasks []*models.Task, members []*models.TeamMember, now time.Time) Prediction {
	p := Prediction{SprintID: sprint.ID}

	for _, t := range tasks {
		p.TotalTasks++
		p.TotalPoints += t.Points()
		switch t.Status {
		case models.TaskStatusDone:
			p.CompletedTasks++
			p.CompletedPoints += t.Points()
		case models.TaskStatusInProgress:
			p.InProgressTasks++
		default:
			p.TodoTasks++
		}
		if t.AssigneeID == nil {
			p.UnassignedTasks++
		}
	}

	if p.TotalPoints > 0 {
		p.ProgressPct = p.CompletedPoints / p.TotalPoints * 100
	}

	p.TotalDays = ceilDays(sprint.EndDate.Sub(sprint.StartDate))
	p.ElapsedDays = ceilDays(now.Sub(sprint.StartDate))
	p.RemainingDays = ceilDays(sprint.EndDate.Sub(now))
	if p.TotalDays > 0 {
		p.TimeProgressPct = float64(p.ElapsedDays) / float64(p.TotalDays) * 100
	}

	p.RiskFactors = riskFactors(&p, tasks, sprint, now)
	p.CompletionProbability = completionProbability(p.ProgressPct, p.TimeProgressPct, len(p.RiskFactors))

	p.Confidence = 60 + 5*p.TotalTasks + 10*len(members)
	if p.Confidence > 95 {
		p.Confidence = 95
	}

	p.Burndown = burndown(p.TotalPoints, p.CompletedPoints, p.ElapsedDays, p.RemainingDays)
	p.RecommendedActions = recommendedActions(&p)
	return p
}

// riskFactors evaluates each trigger in order. No dedup, no cap: the count
// feeds the probability penalty.
func riskFactors(p *Prediction, tasks []*models.Task, sprint *models.Sprint, now time.Time) []string {
	var risks []string

	if p.UnassignedTasks > 0 {
		risks = append(risks, fmt.Sprintf("%d tasks have no assignee", p.UnassignedTasks))
	}
	if p.TimeProgressPct-p.ProgressPct > 10 {
		risks = append(risks, "work progress is more than 10 points behind schedule")
	}
	if p.TotalTasks > 0 && p.InProgressTasks*2 > p.TotalTasks {
		risks = append(risks, "more than half of all tasks are in progress at once")
	}

	overdue := 0
	for _, t := range tasks {
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != models.TaskStatusDone {
			overdue++
		}
	}
	if overdue > 0 {
		risks = append(risks, fmt.Sprintf("%d tasks are past their due date", overdue))
	}

	if weekendInFinalStretch(sprint.EndDate, now) {
		risks = append(risks, "a weekend falls in the final week of the sprint")
	}

	return risks
}

// weekendInFinalStretch reports whether any of the remaining days (up to the
// last 7 before the sprint end) lands on a Saturday or Sunday.
func weekendInFinalStretch(endDate, now time.Time) bool {
	remaining := ceilDays(endDate.Sub(now))
	if remaining <= 0 || remaining > 7 {
		return false
	}
	for d := 0; d < remaining; d++ {
		wd := now.AddDate(0, 0, d).Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return true
		}
	}
	return false
}

// completionProbability applies the schedule multipliers and risk penalty.
func completionProbability(progress, timeProgress float64, riskCount int) int {
	probability := progress
	if timeProgress > 80 && progress < 60 {
		probability *= 0.7
	} else if timeProgress < 50 && progress > 70 {
		probability *= 1.1
		if probability > 95 {
			probability = 95
		}
	}

	penalty := float64(10 * riskCount)
	if penalty > 30 {
		penalty = 30
	}
	probability -= penalty

	if probability < 10 {
		probability = 10
	}
	return int(math.Round(probability))
}

// burndown projects remaining points for each day from today out to at most
// a week. The daily burn rate is derived from completed work so far; with no
// elapsed time it falls back to a one-day denominator.
func burndown(totalPoints, completedPoints float64, elapsedDays, remainingDays int) []BurndownPoint {
	horizon := remainingDays
	if horizon > 7 {
		horizon = 7
	}
	if horizon < 0 {
		horizon = 0
	}

	denom := elapsedDays
	if denom < 1 {
		denom = 1
	}
	dailyBurnRate := completedPoints / float64(denom)

	remaining := totalPoints - completedPoints
	points := make([]BurndownPoint, 0, horizon+1)
	for day := 0; day <= horizon; day++ {
		predicted := remaining - dailyBurnRate*float64(day)
		if predicted < 0 {
			predicted = 0
		}
		bp := BurndownPoint{Day: day, Predicted: predicted}
		if day == 0 {
			actual := remaining
			bp.Actual = &actual
		}
		points = append(points, bp)
	}
	return points
}

// recommendedActions builds the fixed-order action list. The "on track"
// filler only appears when no risk factor fired; the stand-up suggestion is
// always last.
func recommendedActions(p *Prediction) []string {
	var actions []string

	if p.UnassignedTasks > 0 {
		actions = append(actions, fmt.Sprintf("Assign owners to the %d unassigned tasks", p.UnassignedTasks))
	}
	if p.TimeProgressPct-p.ProgressPct > 10 {
		actions = append(actions, "Re-prioritize remaining work; the sprint is behind schedule")
	}
	if p.TotalTasks > 0 && p.InProgressTasks*2 > p.TotalTasks {
		actions = append(actions, "Limit work in progress and finish started tasks before picking up new ones")
	}
	if len(p.RiskFactors) == 0 {
		actions = append(actions, "Sprint is on track; keep the current pace")
	}
	actions = append(actions, "Hold daily stand-ups to surface blockers early")
	return actions
}
