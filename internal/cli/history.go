package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyRequester string
	historyJobType   string
	historyLimit     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sessions",
	Long:  `List sessions that were evicted from memory by cleanup and archived.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())

		history, err := client.History(historyRequester, historyJobType, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(history) == 0 {
			_, _ = fmt.Fprintln(out, "No archived sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintf(w, "ID\tJOB\tREQUESTER\tSTATUS\tFOUND\tPROCESSED\tARCHIVED\n")
		for _, s := range history {
			_, _ = fmt.Fprintf(
				w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				s.SessionID,
				s.JobType,
				orDash(s.RequesterID),
				s.Status,
				s.ItemsFound,
				s.ItemsProcessed,
				formatDuration(time.Since(s.ArchivedAt)),
			)
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyRequester, "requester", "r", "", "filter by requester ID")
	historyCmd.Flags().StringVarP(&historyJobType, "job", "j", "", "filter by job type")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "maximum number of sessions (server default 100)")
}
