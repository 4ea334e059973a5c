package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprintdeck/sprintdeck/internal/llm"
	"github.com/sprintdeck/sprintdeck/internal/metrics"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/output"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

var (
	sprintGoal  string
	sprintStart string
	sprintEnd   string
	sprintDays  int
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Manage sprints",
	Long:  "Create sprints, move them through their lifecycle, and plan their scope.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintListRun("")
	},
}

var sprintCreateCmd = &cobra.Command{
	Use:   "create <team> <name>",
	Short: "Create a sprint",
	Long: `Create a sprint in planning state.

--start defaults to today and --end to start plus --days (default 14).
Dates use YYYY-MM-DD.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintCreateRun(args[0], args[1])
	},
}

var sprintListCmd = &cobra.Command{
	Use:     "list [team]",
	Aliases: []string{"ls"},
	Short:   "List sprints",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var teamRef string
		if len(args) > 0 {
			teamRef = args[0]
		}
		return sprintListRun(teamRef)
	},
}

var sprintShowCmd = &cobra.Command{
	Use:   "show <sprint-id>",
	Short: "Show a sprint and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintShowRun(args[0])
	},
}

var sprintStartCmd = &cobra.Command{
	Use:   "start <sprint-id>",
	Short: "Move a sprint to active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintSetStatusRun(args[0], models.SprintStatusActive)
	},
}

var sprintCompleteCmd = &cobra.Command{
	Use:   "complete <sprint-id>",
	Short: "Move a sprint to completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintSetStatusRun(args[0], models.SprintStatusCompleted)
	},
}

var sprintAddTaskCmd = &cobra.Command{
	Use:   "add-task <sprint-id> <task-id>",
	Short: "Add a task to a sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintAddTaskRun(args[0], args[1])
	},
}

var sprintRetroCmd = &cobra.Command{
	Use:   "retro <sprint-id>",
	Short: "Show or generate the sprint retrospective",
	Long: `Print the stored retrospective for a sprint, generating one first
when none exists. Generation requires an Anthropic API key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintRetroRun(args[0])
	},
}

func init() {
	sprintCreateCmd.Flags().StringVar(&sprintGoal, "goal", "", "Sprint goal")
	sprintCreateCmd.Flags().StringVar(&sprintStart, "start", "", "Start date (YYYY-MM-DD, default today)")
	sprintCreateCmd.Flags().StringVar(&sprintEnd, "end", "", "End date (YYYY-MM-DD)")
	sprintCreateCmd.Flags().IntVar(&sprintDays, "days", 14, "Sprint length in days when --end is omitted")

	sprintCmd.AddCommand(sprintCreateCmd)
	sprintCmd.AddCommand(sprintListCmd)
	sprintCmd.AddCommand(sprintShowCmd)
	sprintCmd.AddCommand(sprintStartCmd)
	sprintCmd.AddCommand(sprintCompleteCmd)
	sprintCmd.AddCommand(sprintAddTaskCmd)
	sprintCmd.AddCommand(sprintRetroCmd)
	rootCmd.AddCommand(sprintCmd)
}

func sprintCreateRun(teamRef, name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	team, err := resolveTeam(ctx, s, teamRef)
	if err != nil {
		return err
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if sprintStart != "" {
		start, err = time.Parse("2006-01-02", sprintStart)
		if err != nil {
			return fmt.Errorf("invalid --start date: %w", err)
		}
	}
	end := start.AddDate(0, 0, sprintDays)
	if sprintEnd != "" {
		end, err = time.Parse("2006-01-02", sprintEnd)
		if err != nil {
			return fmt.Errorf("invalid --end date: %w", err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}

	if dryRun {
		ui.DryRunMsg("Would create sprint %s for %s (%s to %s)", name, team.Name,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
		return nil
	}

	sprint := &models.Sprint{
		TeamID:    team.ID,
		Name:      name,
		Goal:      sprintGoal,
		StartDate: start,
		EndDate:   end,
		Status:    models.SprintStatusPlanning,
	}
	if err := s.CreateSprint(ctx, sprint); err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}

	ui.Success("Created sprint %s: %s (%s to %s)", output.Cyan(shortID(sprint.ID)), name,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	return nil
}

func sprintListRun(teamRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var sprints []*models.Sprint
	if teamRef != "" {
		team, err := resolveTeam(ctx, s, teamRef)
		if err != nil {
			return err
		}
		sprints, err = s.ListSprints(ctx, team.ID)
		if err != nil {
			return err
		}
	} else {
		teams, err := s.ListTeams(ctx, "")
		if err != nil {
			return err
		}
		for _, team := range teams {
			teamSprints, err := s.ListSprints(ctx, team.ID)
			if err != nil {
				return err
			}
			sprints = append(sprints, teamSprints...)
		}
	}

	if len(sprints) == 0 {
		ui.Info("No sprints found.")
		return nil
	}

	teamNames := make(map[string]string)

	table := ui.Table([]string{"ID", "Team", "Sprint", "Status", "Start", "End"})
	for _, sp := range sprints {
		teamName := teamNames[sp.TeamID]
		if teamName == "" {
			if team, err := s.GetTeam(ctx, sp.TeamID); err == nil {
				teamName = team.Name
				teamNames[sp.TeamID] = teamName
			}
		}
		_ = table.Append([]string{
			shortID(sp.ID),
			teamName,
			sp.Name,
			output.StatusColor(string(sp.Status)),
			sp.StartDate.Format("2006-01-02"),
			sp.EndDate.Format("2006-01-02"),
		})
	}
	_ = table.Render()
	return nil
}

func sprintShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sprint, err := findSprint(ctx, s, id)
	if err != nil {
		return err
	}
	tasks, err := s.ListSprintTasks(ctx, sprint.ID)
	if err != nil {
		return err
	}

	velocity := metrics.Velocity(sprint, tasks)

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(sprint.ID)), sprint.Name)
	if sprint.Goal != "" {
		fmt.Fprintf(ui.Out, "  Goal:       %s\n", sprint.Goal)
	}
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(sprint.Status)))
	fmt.Fprintf(ui.Out, "  Dates:      %s to %s\n",
		sprint.StartDate.Format("2006-01-02"), sprint.EndDate.Format("2006-01-02"))
	fmt.Fprintf(ui.Out, "  Points:     %g planned, %g completed (%d%%)\n",
		velocity.PlannedPoints, velocity.CompletedPoints, velocity.CompletionRate)
	fmt.Fprintln(ui.Out)

	if len(tasks) == 0 {
		ui.Info("No tasks in this sprint yet.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Pts"})
	for _, task := range tasks {
		pointsStr := ""
		if task.StoryPoints != nil {
			pointsStr = strings.TrimSuffix(fmt.Sprintf("%.1f", *task.StoryPoints), ".0")
		}
		_ = table.Append([]string{
			shortID(task.ID),
			task.Title,
			output.StatusColor(string(task.Status)),
			output.PriorityColor(string(task.Priority)),
			pointsStr,
		})
	}
	_ = table.Render()
	return nil
}

func sprintSetStatusRun(id string, status models.SprintStatus) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sprint, err := findSprint(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would set sprint %s to %s", shortID(sprint.ID), status)
		return nil
	}

	sprint.Status = status
	if err := s.UpdateSprint(ctx, sprint); err != nil {
		return fmt.Errorf("update sprint: %w", err)
	}

	ui.Success("Sprint %s is now %s", sprint.Name, output.StatusColor(string(status)))
	return nil
}

func sprintAddTaskRun(sprintID, taskID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sprint, err := findSprint(ctx, s, sprintID)
	if err != nil {
		return err
	}
	task, err := findTask(ctx, s, taskID)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add task %s to sprint %s", shortID(task.ID), sprint.Name)
		return nil
	}

	if _, err := s.AddTaskToSprint(ctx, sprint.ID, task.ID); err != nil {
		if errors.Is(err, store.ErrAssociationExists) {
			ui.Warning("Task %s is already in sprint %s", shortID(task.ID), sprint.Name)
			return nil
		}
		return fmt.Errorf("add task to sprint: %w", err)
	}

	ui.Success("Added %s to %s", task.Title, output.Cyan(sprint.Name))
	return nil
}

func sprintRetroRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sprint, err := findSprint(ctx, s, id)
	if err != nil {
		return err
	}

	// Print the stored one when it exists
	if retro, err := s.GetRetrospectiveBySprint(ctx, sprint.ID); err == nil {
		fmt.Fprintln(ui.Out, retro.Content)
		return nil
	}

	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("no retrospective stored and no API key configured (set ANTHROPIC_API_KEY to generate one)")
	}

	tasks, err := s.ListSprintTasks(ctx, sprint.ID)
	if err != nil {
		return err
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

	ui.VerboseLog("Generating retrospective for %s", sprint.Name)
	content, err := client.GenerateRetrospective(ctx, stats)
	if err != nil {
		return fmt.Errorf("generate retrospective: %w", err)
	}

	retro := &models.Retrospective{SprintID: sprint.ID, Content: content}
	if err := s.CreateRetrospective(ctx, retro); err != nil {
		// A concurrent generation may have won; show whatever is stored.
		if errors.Is(err, store.ErrRetrospectiveExists) {
			if stored, getErr := s.GetRetrospectiveBySprint(ctx, sprint.ID); getErr == nil {
				fmt.Fprintln(ui.Out, stored.Content)
				return nil
			}
		}
		return fmt.Errorf("store retrospective: %w", err)
	}

	fmt.Fprintln(ui.Out, content)
	return nil
}

// findSprint finds a sprint by full ID or unique prefix across all teams.
func findSprint(ctx context.Context, s store.Store, id string) (*models.Sprint, error) {
	if sprint, err := s.GetSprint(ctx, id); err == nil {
		return sprint, nil
	}

	teams, err := s.ListTeams(ctx, "")
	if err != nil {
		return nil, err
	}
	upper := strings.ToUpper(id)
	var matches []*models.Sprint
	for _, team := range teams {
		sprints, err := s.ListSprints(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		for _, sp := range sprints {
			if strings.HasPrefix(sp.ID, upper) || sp.Name == id {
				matches = append(matches, sp)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("sprint not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous sprint %s: matches %d sprints", id, len(matches))
	}
}
