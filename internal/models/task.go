package models

import "time"

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// TaskType represents the kind of work a task tracks.
type TaskType string

const (
	TaskTypeTask  TaskType = "task"
	TaskTypeStory TaskType = "story"
	TaskTypeBug   TaskType = "bug"
)

// Task represents a unit of work owned by a team.
// StoryPoints and AssigneeID are nullable; aggregation treats a missing
// estimate as zero points.
type Task struct {
	ID          string       `json:"id"`
	TeamID      string       `json:"team_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        TaskType     `json:"type"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	StoryPoints *float64     `json:"story_points"`
	AssigneeID  *string      `json:"assignee_id"`
	DueDate     *time.Time   `json:"due_date"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Points returns the task's story points, defaulting to 0 when unset.
func (t *Task) Points() float64 {
	if t.StoryPoints == nil {
		return 0
	}
	return *t.StoryPoints
}
