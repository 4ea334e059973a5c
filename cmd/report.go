package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprintdeck/sprintdeck/internal/metrics"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/output"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

var (
	reportDays   int
	reportFormat string
	exportType   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analytics reports",
	Long:  "Velocity trends and completion forecasts for teams and sprints.",
}

var reportVelocityCmd = &cobra.Command{
	Use:   "velocity <team>",
	Short: "Show sprint velocity for a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportVelocityRun(args[0])
	},
}

var reportPredictCmd = &cobra.Command{
	Use:   "predict <sprint-id>",
	Short: "Forecast sprint completion",
	Long: `Run the predictive engine over a sprint: completion probability,
risk factors, a projected burndown, and recommended actions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportPredictRun(args[0])
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export teams, tasks, or sprints in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	reportVelocityCmd.Flags().IntVar(&reportDays, "days", 90, "Only include sprints created in the last N days")
	reportCmd.AddCommand(reportVelocityCmd)
	reportCmd.AddCommand(reportPredictCmd)
	rootCmd.AddCommand(reportCmd)

	exportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "teams", "Data type: teams, tasks, sprints")
	rootCmd.AddCommand(exportCmd)
}

func reportVelocityRun(teamRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	team, err := resolveTeam(ctx, s, teamRef)
	if err != nil {
		return err
	}

	since := time.Now().AddDate(0, 0, -reportDays)
	sprints, err := s.ListSprintsCreatedSince(ctx, []string{team.ID}, since)
	if err != nil {
		return err
	}
	if len(sprints) == 0 {
		ui.Info("No sprints for %s in the last %d days.", team.Name, reportDays)
		return nil
	}

	tasksBySprint, err := s.ListTasksForSprints(ctx, sprintIDs(sprints))
	if err != nil {
		return err
	}

	var totalCompleted float64
	table := ui.Table([]string{"Sprint", "Status", "Planned", "Completed", "Rate"})
	for _, sp := range sprints {
		v := metrics.Velocity(sp, tasksBySprint[sp.ID])
		totalCompleted += v.CompletedPoints
		_ = table.Append([]string{
			sp.Name,
			output.StatusColor(string(sp.Status)),
			fmt.Sprintf("%g", v.PlannedPoints),
			fmt.Sprintf("%g", v.CompletedPoints),
			fmt.Sprintf("%d%%", v.CompletionRate),
		})
	}
	_ = table.Render()

	fmt.Fprintf(ui.Out, "\nAverage velocity: %.1f points over %d sprint(s)\n",
		totalCompleted/float64(len(sprints)), len(sprints))
	return nil
}

func reportPredictRun(id string) error {
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
	members, err := s.ListTeamMembers(ctx, sprint.TeamID)
	if err != nil {
		return err
	}

	p := metrics.Predict(sprint, tasks, members, time.Now())

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(sprint.ID)), sprint.Name)
	fmt.Fprintf(ui.Out, "  Tasks:        %d total, %d done, %d in progress, %d todo\n",
		p.TotalTasks, p.CompletedTasks, p.InProgressTasks, p.TodoTasks)
	fmt.Fprintf(ui.Out, "  Points:       %g of %g completed (%.0f%%)\n",
		p.CompletedPoints, p.TotalPoints, p.ProgressPct)
	fmt.Fprintf(ui.Out, "  Schedule:     day %d of %d (%.0f%% elapsed)\n",
		p.ElapsedDays, p.TotalDays, p.TimeProgressPct)
	fmt.Fprintf(ui.Out, "  Probability:  %s (confidence %d%%)\n",
		output.ProbabilityColor(p.CompletionProbability), p.Confidence)

	if len(p.RiskFactors) > 0 {
		fmt.Fprintln(ui.Out, "\nRisk factors:")
		for _, r := range p.RiskFactors {
			fmt.Fprintf(ui.Out, "  - %s\n", r)
		}
	}

	if len(p.Burndown) > 0 {
		fmt.Fprintln(ui.Out, "\nProjected burndown:")
		table := ui.Table([]string{"Day", "Remaining"})
		for _, bp := range p.Burndown {
			_ = table.Append([]string{
				fmt.Sprintf("%d", bp.Day),
				fmt.Sprintf("%.1f", bp.Predicted),
			})
		}
		_ = table.Render()
	}

	if len(p.RecommendedActions) > 0 {
		fmt.Fprintln(ui.Out, "\nRecommended actions:")
		for _, a := range p.RecommendedActions {
			fmt.Fprintf(ui.Out, "  - %s\n", a)
		}
	}
	return nil
}

func exportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch exportType {
	case "teams":
		return exportTeams(ctx, s)
	case "tasks":
		return exportTasks(ctx, s)
	case "sprints":
		return exportSprints(ctx, s)
	default:
		return fmt.Errorf("unknown export type: %s (use: teams, tasks, sprints)", exportType)
	}
}

func exportTeams(ctx context.Context, s store.Store) error {
	teams, err := s.ListTeams(ctx, "")
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(teams)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "Name", "OrganizationID", "Description", "Created"})
		for _, t := range teams {
			w.Write([]string{t.ID, t.Name, t.OrganizationID, t.Description, t.CreatedAt.Format("2006-01-02")})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Teams")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Name | Description |")
		fmt.Fprintln(ui.Out, "|------|-------------|")
		for _, t := range teams {
			fmt.Fprintf(ui.Out, "| %s | %s |\n", t.Name, t.Description)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportTasks(ctx context.Context, s store.Store) error {
	tasks, err := s.ListTasks(ctx, store.TaskListFilter{})
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "TeamID", "Title", "Status", "Priority", "Type", "Points", "AssigneeID", "Created"})
		for _, t := range tasks {
			points := ""
			if t.StoryPoints != nil {
				points = fmt.Sprintf("%g", *t.StoryPoints)
			}
			assignee := ""
			if t.AssigneeID != nil {
				assignee = *t.AssigneeID
			}
			w.Write([]string{t.ID, t.TeamID, t.Title, string(t.Status), string(t.Priority), string(t.Type), points, assignee, t.CreatedAt.Format("2006-01-02")})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Tasks")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Title | Status | Priority | Type |")
		fmt.Fprintln(ui.Out, "|-------|--------|----------|------|")
		for _, t := range tasks {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s |\n", t.Title, t.Status, t.Priority, t.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportSprints(ctx context.Context, s store.Store) error {
	teams, err := s.ListTeams(ctx, "")
	if err != nil {
		return err
	}
	var sprints []any
	type sprintRow struct {
		ID, Name, TeamID, Status, Start, End string
	}
	var rows []sprintRow
	for _, team := range teams {
		teamSprints, err := s.ListSprints(ctx, team.ID)
		if err != nil {
			return err
		}
		for _, sp := range teamSprints {
			sprints = append(sprints, sp)
			rows = append(rows, sprintRow{
				ID:     sp.ID,
				Name:   sp.Name,
				TeamID: sp.TeamID,
				Status: string(sp.Status),
				Start:  sp.StartDate.Format("2006-01-02"),
				End:    sp.EndDate.Format("2006-01-02"),
			})
		}
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(sprints)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "Name", "TeamID", "Status", "Start", "End"})
		for _, r := range rows {
			w.Write([]string{r.ID, r.Name, r.TeamID, r.Status, r.Start, r.End})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Sprints")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Name | Status | Start | End |")
		fmt.Fprintln(ui.Out, "|------|--------|-------|-----|")
		for _, r := range rows {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s |\n", r.Name, r.Status, r.Start, r.End)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func sprintIDs(sprints []*models.Sprint) []string {
	ids := make([]string, len(sprints))
	for i, sp := range sprints {
		ids[i] = sp.ID
	}
	return ids
}
