package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprintdeck/sprintdeck/internal/metrics"
	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status [team]",
	Short: "Show team status dashboard",
	Long: `Show a cross-team status overview or detailed status for one team.

Without arguments, shows a summary table of all teams with their active
sprint, progress, and completion forecast. With a team name, shows the
detailed sprint view for that team.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return statusTeamRun(args[0])
		}
		return statusOverviewRun()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusOverviewRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	teams, err := s.ListTeams(ctx, "")
	if err != nil {
		return err
	}

	if len(teams) == 0 {
		ui.Info("No teams yet. Use 'sprintdeck team add <name>' to get started.")
		return nil
	}

	now := time.Now()

	table := ui.Table([]string{"Team", "Active Sprint", "Tasks", "Progress", "Forecast", "Activity"})
	for _, team := range teams {
		sprints, err := s.ListSprints(ctx, team.ID)
		if err != nil {
			return err
		}

		var active *models.Sprint
		var latest *models.Sprint
		for _, sp := range sprints {
			if sp.Status == models.SprintStatusActive && active == nil {
				active = sp
			}
			if latest == nil || sp.CreatedAt.After(latest.CreatedAt) {
				latest = sp
			}
		}

		sprintName := "-"
		taskStr := "-"
		progressStr := "-"
		forecastStr := "-"
		activity := "n/a"

		if latest != nil {
			activity = timeAgo(latest.CreatedAt)
		}
		if active != nil {
			sprintName = active.Name
			tasks, err := s.ListSprintTasks(ctx, active.ID)
			if err != nil {
				return err
			}
			members, err := s.ListTeamMembers(ctx, team.ID)
			if err != nil {
				return err
			}

			p := metrics.Predict(active, tasks, members, now)
			taskStr = fmt.Sprintf("%d/%d done", p.CompletedTasks, p.TotalTasks)
			progressStr = fmt.Sprintf("%.0f%%", p.ProgressPct)
			forecastStr = output.ProbabilityColor(p.CompletionProbability)
		}

		_ = table.Append([]string{
			output.Cyan(team.Name),
			sprintName,
			taskStr,
			progressStr,
			forecastStr,
			activity,
		})
	}

	_ = table.Render()
	return nil
}

func statusTeamRun(teamRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	team, err := resolveTeam(ctx, s, teamRef)
	if err != nil {
		return err
	}
	sprints, err := s.ListSprints(ctx, team.ID)
	if err != nil {
		return err
	}

	var active *models.Sprint
	for _, sp := range sprints {
		if sp.Status == models.SprintStatusActive {
			active = sp
			break
		}
	}
	if active == nil {
		ui.Info("Team %s has no active sprint. %d sprint(s) total.", team.Name, len(sprints))
		return nil
	}

	return sprintShowRun(active.ID)
}

// timeAgo renders a time as a short relative description.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
