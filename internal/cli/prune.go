package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneAll bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Clean up finished work",
	Long: `Remove finished tasks and sessions from the engine.

By default, removes:
- Completed and cancelled work past the completed retention
- Failed work past the failed retention

Use --all to remove every finished task and session regardless of age.
Removed sessions are kept in the archive (see "harvester history").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())

		result, err := client.Prune(pruneAll)
		if err != nil {
			return fmt.Errorf("failed to prune: %w", err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Pruned resources:\n")
		_, _ = fmt.Fprintf(out, "  Tasks:    %d\n", result.TasksRemoved)
		_, _ = fmt.Fprintf(out, "  Sessions: %d\n", result.SessionsRemoved)
		_, _ = fmt.Fprintf(out, "  Archived: %d\n", result.Archived)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVar(&pruneAll, "all", false, "remove all finished tasks and sessions")
}
