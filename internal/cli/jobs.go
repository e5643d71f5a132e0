package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/harvester/internal/types"
)

var jobsReload bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List registered job types",
	Long: `List registered job types with their bound implementation tier.

Use --reload to rebind implementations, picking up newly available tiers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())

		var jobs []types.JobInfo
		var err error
		if jobsReload {
			jobs, err = client.ReloadJobs()
		} else {
			jobs, err = client.ListJobs()
		}
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(jobs) == 0 {
			_, _ = fmt.Fprintln(out, "No jobs registered.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintf(w, "NAME\tTIER\tAVAILABLE\tDESCRIPTION\n")
		for _, j := range jobs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", j.Name, orDash(j.Tier), j.Available, j.Description)
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().BoolVar(&jobsReload, "reload", false, "rebind job implementations first")
}
