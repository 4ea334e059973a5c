package models

import "time"

// SprintStatus represents the lifecycle state of a sprint.
type SprintStatus string

const (
	SprintStatusPlanning  SprintStatus = "planning"
	SprintStatusActive    SprintStatus = "active"
	SprintStatusCompleted SprintStatus = "completed"
)

// Sprint is a time-boxed container of tasks with a goal.
// Progress is always derived from associated tasks, never stored.
type Sprint struct {
	ID        string       `json:"id"`
	TeamID    string       `json:"team_id"`
	Name      string       `json:"name"`
	Goal      string       `json:"goal"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Status    SprintStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SprintTask associates a task with a sprint. AddedAt records when the task
// entered sprint scope, which scope-creep detection relies on.
type SprintTask struct {
	SprintID string    `json:"sprint_id"`
	TaskID   string    `json:"task_id"`
	AddedAt  time.Time `json:"added_at"`
}

// Retrospective holds the generated post-sprint narrative. Exactly one per
// sprint; the store enforces uniqueness.
type Retrospective struct {
	ID        string    `json:"id"`
	SprintID  string    `json:"sprint_id"`
	Content   string    `json:"content"` // markdown
	CreatedAt time.Time `json:"created_at"`
}
