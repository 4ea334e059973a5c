package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskSummary is the serialized shape of a task embedded in prompts.
type TaskSummary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	StoryPoints float64 `json:"story_points"`
	Assignee    string  `json:"assignee,omitempty"`
	DueDate     string  `json:"due_date,omitempty"`
}

// MemberSummary is the serialized shape of a team member embedded in prompts.
type MemberSummary struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Capacity    float64 `json:"capacity,omitempty"` // story points per sprint
}

// RiskHeatmap is the structured result of a risk analysis.
type RiskHeatmap struct {
	OverloadedMembers []string `json:"overloaded_members"`
	DelayedTasks      []string `json:"delayed_tasks"`
	BlockedTasks      []string `json:"blocked_tasks"`
	Recommendations   []string `json:"recommendations"`
}

// ScopeCheck is the structured result of a scope-creep analysis.
type ScopeCheck struct {
	ScopeCreepDetected bool     `json:"scope_creep_detected"`
	AddedTasks         []string `json:"added_tasks"`
	RemovedTasks       []string `json:"removed_tasks"`
	RiskLevel          string   `json:"risk_level"` // low, medium, high
	Recommendations    []string `json:"recommendations"`
}

// SprintPlan is the structured result of a sprint planning suggestion.
type SprintPlan struct {
	SprintName           string             `json:"sprint_name"`
	RecommendedTaskIDs   []string           `json:"recommended_task_ids"`
	WorkloadDistribution map[string]float64 `json:"workload_distribution"` // user id -> points
	Rationale            string             `json:"rationale"`
}

// SprintMeta carries sprint metadata for scope analysis prompts.
type SprintMeta struct {
	Name      string `json:"name"`
	Goal      string `json:"goal"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// buildRiskPrompt constructs the system and user prompts for risk analysis.
func buildRiskPrompt(tasks []TaskSummary, members []MemberSummary, currentDate time.Time) (system string, user string) {
	system = `You analyze sprint data for delivery risk. Return ONLY a JSON object with these fields:
- "overloaded_members": array of user ids carrying disproportionate open work
- "delayed_tasks": array of task ids that are past due or likely to slip
- "blocked_tasks": array of task ids that appear stalled (in progress with no movement or unassigned)
- "recommendations": array of short, concrete actions to reduce the risks found

Rules:
- Judge overload by open story points per assignee relative to the rest of the team
- A task past its due date and not done is always delayed
- Keep recommendations to one sentence each
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Current date: ")
	sb.WriteString(currentDate.Format("2006-01-02"))
	sb.WriteString("\n\nTasks:\n")
	writeJSONBlock(&sb, tasks)
	sb.WriteString("\nTeam members:\n")
	writeJSONBlock(&sb, members)
	user = sb.String()
	return
}

// AnalyzeRisk sends tasks and members to the LLM and returns a risk heatmap.
func (c *Client) AnalyzeRisk(ctx context.Context, tasks []TaskSummary, members []MemberSummary, currentDate time.Time) (*RiskHeatmap, error) {
	system, user := buildRiskPrompt(tasks, members, currentDate)

	text, err := c.complete(ctx, system, user, 2048)
	if err != nil {
		return nil, err
	}

	var heatmap RiskHeatmap
	if err := parseJSONResponse(text, &heatmap); err != nil {
		return nil, err
	}
	return &heatmap, nil
}

// buildScopePrompt constructs the system and user prompts for scope analysis.
func buildScopePrompt(original, current []TaskSummary, sprint SprintMeta) (system string, user string) {
	system = `You detect scope creep by comparing a sprint's original task set to its current one. Return ONLY a JSON object with these fields:
- "scope_creep_detected": boolean, true if committed work grew after the sprint started
- "added_tasks": array of task ids present now but not originally
- "removed_tasks": array of task ids originally committed but since dropped
- "risk_level": one of "low", "medium", "high" based on the net point change
- "recommendations": array of short, concrete actions

Rules:
- Compare by task id, not title
- Net growth under 10% of original points is "low", under 25% "medium", otherwise "high"
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Sprint:\n")
	writeJSONBlock(&sb, sprint)
	sb.WriteString("\nOriginal task set:\n")
	writeJSONBlock(&sb, original)
	sb.WriteString("\nCurrent task set:\n")
	writeJSONBlock(&sb, current)
	user = sb.String()
	return
}

// CheckScope compares the original and current task sets for a sprint.
func (c *Client) CheckScope(ctx context.Context, original, current []TaskSummary, sprint SprintMeta) (*ScopeCheck, error) {
	system, user := buildScopePrompt(original, current, sprint)

	text, err := c.complete(ctx, system, user, 2048)
	if err != nil {
		return nil, err
	}

	var check ScopeCheck
	if err := parseJSONResponse(text, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// buildPlanPrompt constructs the system and user prompts for sprint planning.
func buildPlanPrompt(candidates []TaskSummary, members []MemberSummary, durationDays int) (system string, user string) {
	system = `You plan sprints. Given candidate tasks, team capacity, and sprint length, return ONLY a JSON object with these fields:
- "sprint_name": a short, descriptive name for the sprint
- "recommended_task_ids": array of candidate task ids that fit the team's capacity
- "workload_distribution": object mapping each user id to the story points assigned to them
- "rationale": one or two sentences explaining the selection

Rules:
- Never recommend more points than the team's combined capacity
- Prefer higher-priority tasks when choosing what fits
- Distribute points so no member exceeds their individual capacity
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sprint duration: %d days\n\nCandidate tasks:\n", durationDays)
	writeJSONBlock(&sb, candidates)
	sb.WriteString("\nTeam members and capacity:\n")
	writeJSONBlock(&sb, members)
	user = sb.String()
	return
}

// PlanSprint asks the LLM to select tasks and distribute them across the team.
func (c *Client) PlanSprint(ctx context.Context, candidates []TaskSummary, members []MemberSummary, durationDays int) (*SprintPlan, error) {
	system, user := buildPlanPrompt(candidates, members, durationDays)

	text, err := c.complete(ctx, system, user, 2048)
	if err != nil {
		return nil, err
	}

	var plan SprintPlan
	if err := parseJSONResponse(text, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// writeJSONBlock marshals v into sb as indented JSON. Marshal errors cannot
// occur for the prompt input types, so they degrade to an empty block.
func writeJSONBlock(sb *strings.Builder, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	sb.Write(data)
	sb.WriteString("\n")
}
