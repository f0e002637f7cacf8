package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "heliosd",
	Short: "heliosd - supervisory core for a multi-worker L4/L7 proxy",
	Long: `heliosd owns the process-wide lifecycle of a multi-worker L4/L7 proxy:
configuration loading, the admin interface, hot restart, connection
draining, and the per-thread watchdog. Filter chains, the cluster manager,
and TLS context construction are external collaborators it hosts but does
not implement.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
