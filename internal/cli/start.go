package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	startRequester string
	startPriority  string
	startConfig    []string
)

var startCmd = &cobra.Command{
	Use:   "start [job-type]",
	Short: "Start a job",
	Long: `Create a session for the job type and submit it.

Config values are passed as KEY=VALUE pairs, for example:
  harvester start tenders --set pages=5 --set max_retries=1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := parseConfig(startConfig)
		if err != nil {
			return err
		}

		client := NewClient(GetServerURL())
		sessionID, err := client.StartJob(args[0], startRequester, config, startPriority)
		if err != nil {
			return fmt.Errorf("failed to start job: %w", err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "Session started:")
		_, _ = fmt.Fprintf(out, "  ID:       %s\n", sessionID)
		_, _ = fmt.Fprintf(out, "  Job:      %s\n", args[0])

		if IsVerbose() && len(config) > 0 {
			_, _ = fmt.Fprintln(out, "\nConfig:")
			for k, v := range config {
				_, _ = fmt.Fprintf(out, "  %s=%v\n", k, v)
			}
		}

		return nil
	},
}

var startAllCmd = &cobra.Command{
	Use:   "start-all",
	Short: "Start every available job",
	Long:  `Start one session per available job type with a shared config.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := parseConfig(startConfig)
		if err != nil {
			return err
		}

		client := NewClient(GetServerURL())
		ids, err := client.StartAll(startRequester, config, startPriority)
		if err != nil {
			return fmt.Errorf("failed to start jobs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			_, _ = fmt.Fprintln(out, "No jobs started.")
			return nil
		}

		_, _ = fmt.Fprintf(out, "Started %d sessions:\n", len(ids))
		for _, id := range ids {
			_, _ = fmt.Fprintf(out, "  %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(startAllCmd)

	for _, cmd := range []*cobra.Command{startCmd, startAllCmd} {
		cmd.Flags().StringVarP(&startRequester, "requester", "r", "cli", "requester ID recorded on the session")
		cmd.Flags().StringVarP(&startPriority, "priority", "p", "medium", "priority (low, medium, high, urgent)")
		cmd.Flags().StringArrayVar(&startConfig, "set", []string{}, "job config value (KEY=VALUE)")
	}
}
