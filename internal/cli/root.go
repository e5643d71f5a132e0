package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

var (
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvester - a job orchestration engine for data harvesting",
	Long: `Harvester runs named harvesting jobs on a bounded worker pool with
retries, progress tracking and health monitoring.

This CLI talks to the harvester daemon over its REST API.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "harvester API URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	if envURL := os.Getenv("HARVESTER_URL"); envURL != "" && serverURL == defaultServerURL {
		serverURL = envURL
	}
}

// GetServerURL returns the configured API URL
func GetServerURL() string {
	return serverURL
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}
