package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wanderer-industries/topologyd/cmd/topologyd/commands"
	"github.com/wanderer-industries/topologyd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "topologyd",
	Short: "topologyd - federated map topology synchronization daemon",
	Long: `topologyd synchronizes solar-system topology across one or more maps,
consuming each map's live event stream, merging overlapping systems and
connections, and detecting the border systems between a main map and its
satellites.

Available commands:
  serve    - Run the daemon: actors, topology pass, license check, admin server
  maps     - Inspect the configured map roster
  license  - Check current license validation state
  version  - Show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase output verbosity")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.MapsCmd)
	rootCmd.AddCommand(commands.LicenseCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
