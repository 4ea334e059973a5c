package llm

import (
	"context"
	"fmt"
	"strings"
)

// RetroStats holds the computed sprint statistics embedded in the
// retrospective prompt. Embedding literal numbers keeps the model's output
// grounded in real data rather than invented figures.
type RetroStats struct {
	SprintName      string
	Goal            string
	PlannedPoints   float64
	CompletedPoints float64
	CompletionRate  int
	TotalTasks      int
	CompletedTasks  int
	DoneTitles      []string
	UnfinishedTitles []string
}

// buildRetroPrompt constructs the system and user prompts for retrospective
// generation. The output is markdown, not JSON.
func buildRetroPrompt(stats RetroStats) (system string, user string) {
	system = `You write sprint retrospectives for agile teams. Produce a markdown document with exactly these sections:

## What went well
## What could be improved
## Action items

Rules:
- Ground every observation in the statistics provided; never invent numbers
- Keep each section to 3-5 bullet points
- Action items must be specific and start with a verb
- Return raw markdown only, no code fencing, no preamble`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sprint: %s\n", stats.SprintName)
	if stats.Goal != "" {
		fmt.Fprintf(&sb, "Goal: %s\n", stats.Goal)
	}
	fmt.Fprintf(&sb, "Planned story points: %g\n", stats.PlannedPoints)
	fmt.Fprintf(&sb, "Completed story points: %g\n", stats.CompletedPoints)
	fmt.Fprintf(&sb, "Completion rate: %d%%\n", stats.CompletionRate)
	fmt.Fprintf(&sb, "Tasks: %d total, %d completed\n", stats.TotalTasks, stats.CompletedTasks)
	if len(stats.DoneTitles) > 0 {
		sb.WriteString("\nCompleted tasks:\n")
		for _, title := range stats.DoneTitles {
			fmt.Fprintf(&sb, "- %s\n", title)
		}
	}
	if len(stats.UnfinishedTitles) > 0 {
		sb.WriteString("\nUnfinished tasks:\n")
		for _, title := range stats.UnfinishedTitles {
			fmt.Fprintf(&sb, "- %s\n", title)
		}
	}
	user = sb.String()
	return
}

// GenerateRetrospective returns markdown retrospective content for the given
// sprint statistics.
func (c *Client) GenerateRetrospective(ctx context.Context, stats RetroStats) (string, error) {
	system, user := buildRetroPrompt(stats)

	text, err := c.complete(ctx, system, user, 4096)
	if err != nil {
		return "", err
	}

	content := stripFencing(text)
	if content == "" {
		return "", fmt.Errorf("empty retrospective content in API response")
	}
	return content, nil
}
