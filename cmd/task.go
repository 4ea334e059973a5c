package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/output"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

var (
	taskTitle    string
	taskDesc     string
	taskPriority string
	taskType     string
	taskStatus   string
	taskPoints   float64
	taskAssignee string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  "Track tasks, stories, and bugs for your teams.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun("")
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <team>",
	Short: "Add a new task",
	Long: `Add a new task to a team.

When --type or --priority are omitted they are inferred from the title
using keyword heuristics (e.g. "fix crash on login" becomes a high
priority bug).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskAddRun(args[0])
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list [team]",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var teamRef string
		if len(args) > 0 {
			teamRef = args[0]
		}
		return taskListRun(teamRef)
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskShowRun(args[0])
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskUpdateRun(args[0])
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskDoneRun(args[0])
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <task-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskRmRun(args[0])
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "", "Priority: low, medium, high (inferred if empty)")
	taskAddCmd.Flags().StringVar(&taskType, "type", "", "Type: task, story, bug (inferred if empty)")
	taskAddCmd.Flags().Float64Var(&taskPoints, "points", 0, "Story point estimate")
	taskAddCmd.Flags().StringVar(&taskAssignee, "assignee", "", "Assignee user ID")
	_ = taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status: todo, in_progress, done")
	taskListCmd.Flags().StringVar(&taskPriority, "priority", "", "Filter by priority")
	taskListCmd.Flags().StringVar(&taskType, "type", "", "Filter by type")
	taskListCmd.Flags().StringVar(&taskAssignee, "assignee", "", "Filter by assignee user ID")

	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "New status")
	taskUpdateCmd.Flags().StringVar(&taskPriority, "priority", "", "New priority")
	taskUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskUpdateCmd.Flags().StringVar(&taskDesc, "desc", "", "New description")
	taskUpdateCmd.Flags().Float64Var(&taskPoints, "points", -1, "New story point estimate")
	taskUpdateCmd.Flags().StringVar(&taskAssignee, "assignee", "", "New assignee user ID")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

func taskAddRun(teamRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	team, err := resolveTeam(ctx, s, teamRef)
	if err != nil {
		return err
	}

	typ := taskType
	if typ == "" {
		typ = classifyTaskType(taskTitle)
	}
	priority := taskPriority
	if priority == "" {
		priority = classifyTaskPriority(taskTitle)
	}

	task := &models.Task{
		TeamID:      team.ID,
		Title:       taskTitle,
		Description: taskDesc,
		Type:        models.TaskType(typ),
		Status:      models.TaskStatusTodo,
		Priority:    models.TaskPriority(priority),
	}
	if taskPoints > 0 {
		points := taskPoints
		task.StoryPoints = &points
	}
	if taskAssignee != "" {
		assignee := taskAssignee
		task.AssigneeID = &assignee
	}

	if dryRun {
		ui.DryRunMsg("Would add task: %s [%s/%s] to %s", taskTitle, priority, typ, team.Name)
		return nil
	}

	if err := s.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	ui.Success("Created task %s: %s", output.Cyan(shortID(task.ID)), taskTitle)
	return nil
}

func taskListRun(teamRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := store.TaskListFilter{
		Status:     models.TaskStatus(taskStatus),
		Priority:   models.TaskPriority(taskPriority),
		Type:       models.TaskType(taskType),
		AssigneeID: taskAssignee,
	}
	if teamRef != "" {
		team, err := resolveTeam(ctx, s, teamRef)
		if err != nil {
			return err
		}
		filter.TeamID = team.ID
	}

	tasks, err := s.ListTasks(ctx, filter)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		ui.Info("No tasks found.")
		return nil
	}

	// Build a team name cache for display
	teamNames := make(map[string]string)

	table := ui.Table([]string{"ID", "Team", "Title", "Status", "Priority", "Type", "Pts", "Assignee"})
	for _, task := range tasks {
		teamName := teamNames[task.TeamID]
		if teamName == "" {
			if team, err := s.GetTeam(ctx, task.TeamID); err == nil {
				teamName = team.Name
				teamNames[task.TeamID] = teamName
			}
		}

		pointsStr := ""
		if task.StoryPoints != nil {
			pointsStr = strings.TrimSuffix(fmt.Sprintf("%.1f", *task.StoryPoints), ".0")
		}
		assignee := ""
		if task.AssigneeID != nil {
			assignee = *task.AssigneeID
		}

		_ = table.Append([]string{
			shortID(task.ID),
			teamName,
			task.Title,
			output.StatusColor(string(task.Status)),
			output.PriorityColor(string(task.Priority)),
			string(task.Type),
			pointsStr,
			assignee,
		})
	}
	_ = table.Render()
	return nil
}

func taskShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := findTask(ctx, s, id)
	if err != nil {
		return err
	}

	teamName := ""
	if team, err := s.GetTeam(ctx, task.TeamID); err == nil {
		teamName = team.Name
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(task.ID)), task.Title)
	fmt.Fprintf(ui.Out, "  Team:       %s\n", teamName)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(task.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(task.Priority)))
	fmt.Fprintf(ui.Out, "  Type:       %s\n", task.Type)
	if task.StoryPoints != nil {
		fmt.Fprintf(ui.Out, "  Points:     %g\n", *task.StoryPoints)
	}
	if task.AssigneeID != nil {
		fmt.Fprintf(ui.Out, "  Assignee:   %s\n", *task.AssigneeID)
	}
	if task.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", task.Description)
	}
	if task.DueDate != nil {
		fmt.Fprintf(ui.Out, "  Due:        %s\n", task.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", task.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", task.ID)

	return nil
}

func taskUpdateRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := findTask(ctx, s, id)
	if err != nil {
		return err
	}

	changed := false
	if taskStatus != "" {
		task.Status = models.TaskStatus(taskStatus)
		changed = true
	}
	if taskPriority != "" {
		task.Priority = models.TaskPriority(taskPriority)
		changed = true
	}
	if taskTitle != "" {
		task.Title = taskTitle
		changed = true
	}
	if taskDesc != "" {
		task.Description = taskDesc
		changed = true
	}
	if taskPoints >= 0 {
		points := taskPoints
		task.StoryPoints = &points
		changed = true
	}
	if taskAssignee != "" {
		assignee := taskAssignee
		task.AssigneeID = &assignee
		changed = true
	}

	if !changed {
		return fmt.Errorf("no updates specified (use --status, --priority, --title, --desc, --points, or --assignee)")
	}

	if dryRun {
		ui.DryRunMsg("Would update task %s", shortID(task.ID))
		return nil
	}

	if err := s.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	ui.Success("Updated task %s", output.Cyan(shortID(task.ID)))
	return nil
}

func taskDoneRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := findTask(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would mark task %s as done", shortID(task.ID))
		return nil
	}

	task.Status = models.TaskStatusDone
	if err := s.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	ui.Success("Done: %s", task.Title)
	return nil
}

func taskRmRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := findTask(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete task %s: %s", shortID(task.ID), task.Title)
		return nil
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	ui.Success("Deleted task %s", output.Cyan(shortID(task.ID)))
	return nil
}

// findTask finds a task by full ID or unique prefix.
func findTask(ctx context.Context, s store.Store, id string) (*models.Task, error) {
	// Try exact match first
	if task, err := s.GetTask(ctx, id); err == nil {
		return task, nil
	}

	// Try prefix match - list all and filter
	upper := strings.ToUpper(id)
	tasks, err := s.ListTasks(ctx, store.TaskListFilter{})
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

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
