package cli

import (
	"github.com/spf13/cobra"

	mcpserver "raceform/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve merge tools over MCP on stdin/stdout",
	Long: `Run a Model Context Protocol server exposing the merge operations
(run_merge, preview_merge, inspect_relation, and the job tools) so AI agents
can reconcile snapshots on the user's behalf.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openMetaStore()
	if err != nil {
		return err
	}
	defer closeFn()

	return mcpserver.New(svc).ServeStdio()
}
