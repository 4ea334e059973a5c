package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTaskType(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		// Bug keywords
		{"Fix login redirect", "bug"},
		{"fix broken authentication", "bug"},
		{"Crash on startup", "bug"},
		{"Error handling in API", "bug"},
		{"Regression in search results", "bug"},
		{"Login fails intermittently", "bug"},
		{"Defect in report generation", "bug"},
		{"Issue with dashboard loading", "bug"},
		{"Upload not working", "bug"},

		// Story keywords
		{"As a user I want saved filters", "story"},
		{"Users can export their boards", "story"},
		{"Implement dark mode", "story"},
		{"Add search functionality", "story"},
		{"Support CSV export", "story"},
		{"Enable SSO login", "story"},

		// Task (default)
		{"Rotate database credentials", "task"},
		{"Update documentation", "task"},
		{"Review onboarding copy", "task"},

		// Case insensitivity
		{"FIX the broken thing", "bug"},
		{"IMPLEMENT the module", "story"},

		// "fix" at end of string
		{"Minor cosmetic button fix", "bug"},
		// "fix:" variant
		{"Fix: broken auth flow", "bug"},

		// Bug takes precedence over story
		{"Fix the export feature", "bug"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyTaskType(tt.title))
		})
	}
}

func TestClassifyTaskPriority(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		// High priority
		{"Critical: database corruption", "high"},
		{"Urgent change needed for auth", "high"},
		{"Blocker for release", "high"},
		{"App crash on login", "high"},
		{"Security vulnerability in API", "high"},
		{"Data loss when saving forms", "high"},
		{"Production down", "high"},
		{"P0: system outage", "high"},
		{"P1: degraded performance", "high"},

		// Low priority
		{"Typo in tooltip", "low"},
		{"Nice to have: dark mode toggle animation", "low"},
		{"Cosmetic change for button color", "low"},
		{"Minor UI alignment", "low"},
		{"Polish empty states", "low"},
		{"P3: update footer text", "low"},

		// Medium (default)
		{"Add user profiles", "medium"},
		{"Implement search", "medium"},
		{"Update documentation", "medium"},

		// Case insensitivity
		{"CRITICAL outage", "high"},
		{"MINOR text change", "low"},

		// High takes precedence over low
		{"Critical typo in billing amounts", "high"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyTaskPriority(tt.title))
		})
	}
}
