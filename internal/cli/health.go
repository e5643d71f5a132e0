package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/harvester/internal/types"
)

var healthReport bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show engine health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())
		out := cmd.OutOrStdout()

		if !healthReport {
			status, err := client.Health()
			if err != nil {
				return fmt.Errorf("failed to get health: %w", err)
			}
			printHealth(out, status)
			return nil
		}

		report, err := client.HealthReport()
		if err != nil {
			return fmt.Errorf("failed to get health report: %w", err)
		}
		printHealth(out, &report.Health)

		tp := report.TaskPerformance
		_, _ = fmt.Fprintln(out, "\nTasks:")
		_, _ = fmt.Fprintf(out, "  Total:         %d\n", tp.TotalTasks)
		_, _ = fmt.Fprintf(out, "  Completed:     %d\n", tp.Completed)
		_, _ = fmt.Fprintf(out, "  Failed:        %d\n", tp.Failed)
		_, _ = fmt.Fprintf(out, "  Retried:       %d\n", tp.Retried)
		_, _ = fmt.Fprintf(out, "  Success rate:  %.2f\n", tp.SuccessRate)
		_, _ = fmt.Fprintf(out, "  Avg duration:  %v\n", tp.AverageExecutionTime)

		sp := report.SessionPerformance
		_, _ = fmt.Fprintln(out, "\nSessions:")
		_, _ = fmt.Fprintf(out, "  Total:         %d\n", sp.TotalSessions)
		_, _ = fmt.Fprintf(out, "  Completion:    %.2f\n", sp.CompletionRate)
		_, _ = fmt.Fprintf(out, "  Items:         %d found, %d processed\n", sp.TotalItemsFound, sp.TotalItemsProcessed)

		_, _ = fmt.Fprintln(out, "\nRecommendations:")
		for _, r := range report.Recommendations {
			_, _ = fmt.Fprintf(out, "  - %s\n", r)
		}
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show task, session and pool metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())

		m, err := client.Metrics()
		if err != nil {
			return fmt.Errorf("failed to get metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "Tasks:")
		_, _ = fmt.Fprintf(out, "  Created:       %d\n", m.Tasks.TasksCreated)
		_, _ = fmt.Fprintf(out, "  Completed:     %d\n", m.Tasks.TasksCompleted)
		_, _ = fmt.Fprintf(out, "  Failed:        %d\n", m.Tasks.TasksFailed)
		_, _ = fmt.Fprintf(out, "  Retried:       %d\n", m.Tasks.TasksRetried)
		_, _ = fmt.Fprintf(out, "  Cancelled:     %d\n", m.Tasks.TasksCancelled)
		_, _ = fmt.Fprintf(
			out, "  Active:        %d running, %d pending, %d retrying\n",
			m.Tasks.ActiveTasks, m.Tasks.PendingTasks, m.Tasks.RetryingTasks,
		)

		_, _ = fmt.Fprintln(out, "\nSessions:")
		_, _ = fmt.Fprintf(out, "  Total:         %d\n", m.Sessions.TotalSessions)
		_, _ = fmt.Fprintf(out, "  Items:         %d found, %d processed\n", m.Sessions.TotalItemsFound, m.Sessions.TotalItemsProcessed)

		_, _ = fmt.Fprintln(out, "\nPool:")
		_, _ = fmt.Fprintf(out, "  Workers:       %d\n", m.Pool.Workers)
		_, _ = fmt.Fprintf(out, "  Active:        %d\n", m.Pool.Active)
		_, _ = fmt.Fprintf(out, "  Queued:        %d\n", m.Pool.Queued)
		return nil
	},
}

func printHealth(out io.Writer, status *types.HealthStatus) {
	_, _ = fmt.Fprintf(out, "Status: %s\n", status.Status)

	names := make([]string, 0, len(status.Checks))
	for name := range status.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintln(out, "\nChecks:")
	for _, name := range names {
		result := "ok"
		if !status.Checks[name] {
			result = "FAIL"
		}
		_, _ = fmt.Fprintf(out, "  %-16s %s\n", name, result)
	}

	if len(status.Issues) > 0 {
		_, _ = fmt.Fprintln(out, "\nIssues:")
		for _, issue := range status.Issues {
			_, _ = fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	healthCmd.Flags().BoolVar(&healthReport, "report", false, "include performance summary and recommendations")
}
