package metrics

import (
	"math"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/models"
)

// SprintVelocity summarizes planned vs completed story points for one sprint.
type SprintVelocity struct {
	SprintID        string    `json:"sprint_id"`
	SprintName      string    `json:"sprint_name"`
	PlannedPoints   float64   `json:"planned_points"`
	CompletedPoints float64   `json:"completed_points"`
	CompletionRate  int       `json:"completion_rate"` // 0-100
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// MemberProductivity summarizes one team member's completed work.
type MemberProductivity struct {
	UserID            string  `json:"user_id"`
	DisplayName       string  `json:"display_name"`
	CompletedTasks    int     `json:"completed_tasks"`
	AvgCompletionDays float64 `json:"avg_completion_days"` // one decimal
	EfficiencyScore   int     `json:"efficiency_score"`    // 0-100
}

// Velocity computes planned points, completed points, and completion rate for
// a sprint's associated tasks. Missing story points count as zero; a sprint
// with zero planned points has a completion rate of 0, not NaN.
func Velocity(sprint *models.Sprint, tasks []*models.Task) SprintVelocity {
	v := SprintVelocity{
		SprintID:   sprint.ID,
		SprintName: sprint.Name,
		StartDate:  sprint.StartDate,
		EndDate:    sprint.EndDate,
	}
	for _, t := range tasks {
		v.PlannedPoints += t.Points()
		if t.Status == models.TaskStatusDone {
			v.CompletedPoints += t.Points()
		}
	}
	if v.PlannedPoints > 0 {
		v.CompletionRate = int(math.Round(v.CompletedPoints / v.PlannedPoints * 100))
	}
	return v
}

// Productivity computes per-member completion stats over the given tasks.
// Completion time per task is whole days, rounded up; the per-member average
// is rounded to one decimal. Efficiency is min(100, round(completed*20/avg)),
// or 0 when a member has no completions or a zero average.
func Productivity(members []*models.TeamMember, profiles map[string]*models.UserProfile, tasks []*models.Task) []MemberProductivity {
	out := make([]MemberProductivity, 0, len(members))
	for _, m := range members {
		p := MemberProductivity{UserID: m.UserID}
		if profile, ok := profiles[m.UserID]; ok {
			p.DisplayName = profile.DisplayName
		}

		var totalDays int
		for _, t := range tasks {
			if t.Status != models.TaskStatusDone || t.AssigneeID == nil || *t.AssigneeID != m.UserID {
				continue
			}
			p.CompletedTasks++
			totalDays += ceilDays(t.UpdatedAt.Sub(t.CreatedAt))
		}

		if p.CompletedTasks > 0 {
			p.AvgCompletionDays = round1(float64(totalDays) / float64(p.CompletedTasks))
			if p.AvgCompletionDays > 0 {
				score := int(math.Round(float64(p.CompletedTasks) * 20 / p.AvgCompletionDays))
				if score > 100 {
					score = 100
				}
				p.EfficiencyScore = score
			}
		}
		out = append(out, p)
	}
	return out
}

// ceilDays converts a duration to whole days, rounding up. Negative
// durations clamp to zero.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// round1 rounds to one decimal place.
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
