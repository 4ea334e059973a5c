package cmd

import "strings"

// classifyTaskType infers the task type from the title using keyword heuristics.
// Bug keywords are checked before story keywords (e.g., "fix the signup flow" = bug).
// Defaults to "task" if no keywords match.
func classifyTaskType(title string) string {
	lower := strings.ToLower(title)

	// Multi-word phrases checked first, then single words with common variants.
	bugPhrases := []string{
		"issue with", "not working",
	}
	for _, kw := range bugPhrases {
		if strings.Contains(lower, kw) {
			return "bug"
		}
	}

	bugWords := []string{
		"fix ", "fix:", "fixed", "fixes", "fixing",
		"bug", "broken", "crash", "error",
		"regression", "fail", "fault", "defect",
	}
	for _, kw := range bugWords {
		if strings.Contains(lower, kw) {
			return "bug"
		}
	}
	// "fix" at end of string
	if strings.HasSuffix(lower, "fix") {
		return "bug"
	}

	storyPhrases := []string{
		"as a user", "as an admin", "user can", "users can",
	}
	for _, kw := range storyPhrases {
		if strings.Contains(lower, kw) {
			return "story"
		}
	}

	storyKeywords := []string{
		"implement", "add ", "support", "feature", "enable",
		"allow", "introduce", "build ",
	}
	for _, kw := range storyKeywords {
		if strings.Contains(lower, kw) {
			return "story"
		}
	}

	return "task"
}

// classifyTaskPriority infers the task priority from the title using keyword heuristics.
// High keywords are checked before low keywords. Defaults to "medium".
func classifyTaskPriority(title string) string {
	lower := strings.ToLower(title)

	highKeywords := []string{
		"critical", "urgent", "blocker", "crash", "security",
		"data loss", "production down", "p0", "p1",
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return "high"
		}
	}

	lowKeywords := []string{
		"typo", "nit", "nice to have", "someday", "polish",
		"cosmetic", "minor", "p3", "p4",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return "low"
		}
	}

	return "medium"
}
