package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/harvester/internal/types"
)

var (
	lsRequester string
	lsJobType   string
	lsStatus    string
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())

		view, err := client.GetSession(args[0])
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "Session Details:")
		_, _ = fmt.Fprintf(out, "  ID:            %s\n", view.SessionID)
		_, _ = fmt.Fprintf(out, "  Job:           %s\n", view.JobType)
		_, _ = fmt.Fprintf(out, "  Requester:     %s\n", view.RequesterID)
		_, _ = fmt.Fprintf(out, "  Status:        %s\n", view.Status)
		_, _ = fmt.Fprintf(out, "  Priority:      %s\n", view.Priority)
		_, _ = fmt.Fprintf(out, "  Progress:      %.0f%%\n", view.Progress)
		_, _ = fmt.Fprintf(out, "  Items:         %d found, %d processed\n", view.ItemsFound, view.ItemsProcessed)
		_, _ = fmt.Fprintf(out, "  Pages:         %d\n", view.PagesProcessed)
		_, _ = fmt.Fprintf(out, "  Retries:       %d/%d\n", view.RetryCount, view.MaxRetries)
		_, _ = fmt.Fprintf(out, "  Created:       %s\n", view.CreatedAt.Format(time.RFC3339))
		if view.StartTime != nil {
			_, _ = fmt.Fprintf(out, "  Started:       %s\n", view.StartTime.Format(time.RFC3339))
		}
		if view.EndTime != nil {
			_, _ = fmt.Fprintf(out, "  Ended:         %s\n", view.EndTime.Format(time.RFC3339))
		}
		if view.NextRetry != nil {
			_, _ = fmt.Fprintf(out, "  Next retry:    %s\n", view.NextRetry.Format(time.RFC3339))
		}
		if view.ErrorMessage != "" {
			_, _ = fmt.Fprintf(out, "  Error:         %s\n", view.ErrorMessage)
		}

		if IsVerbose() {
			_, _ = fmt.Fprintf(out, "  Task:          %s (%s)\n", view.TaskID, view.TaskStatus)
			_, _ = fmt.Fprintf(out, "  Duration:      %v\n", view.Duration)
			_, _ = fmt.Fprintf(out, "  Success rate:  %.2f\n", view.SuccessRate)
		}

		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())

		summaries, err := client.ListSessions(
			types.SessionFilter{
				RequesterID: lsRequester,
				JobType:     lsJobType,
				Status:      types.TaskStatus(lsStatus),
			},
		)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(summaries) == 0 {
			_, _ = fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintf(w, "ID\tJOB\tREQUESTER\tSTATUS\tFOUND\tPROCESSED\tCREATED\n")

		for _, s := range summaries {
			_, _ = fmt.Fprintf(
				w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				s.SessionID,
				s.JobType,
				orDash(s.RequesterID),
				s.Status,
				s.ItemsFound,
				s.ItemsProcessed,
				formatDuration(time.Since(s.CreatedAt)),
			)
		}

		_ = w.Flush()
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [session-id]",
	Short: "Cancel a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())

		view, err := client.CancelSession(args[0])
		if err != nil {
			return fmt.Errorf("failed to cancel session: %w", err)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session %s %s\n", view.SessionID, view.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(cancelCmd)

	lsCmd.Flags().StringVarP(&lsRequester, "requester", "r", "", "filter by requester ID")
	lsCmd.Flags().StringVarP(&lsJobType, "job", "j", "", "filter by job type")
	lsCmd.Flags().StringVarP(&lsStatus, "status", "s", "", "filter by status")
}
