package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sprintdeck/sprintdeck/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients query sprintdeck natively for teams, tasks,
sprint velocity, and completion predictions. Configure with:

  {
    "mcpServers": {
      "sprintdeck": { "command": "sprintdeck", "args": ["mcp"] }
    }
  }

Available tools: sprintdeck_list_teams, sprintdeck_list_tasks,
sprintdeck_create_task, sprintdeck_update_task, sprintdeck_sprint_velocity,
sprintdeck_predict_sprint, sprintdeck_generate_retrospective`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		srv := mcp.NewServer(s, newLLMClient())
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
