package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/spf13/cobra"
)

// configDir is the --config-dir flag. Empty means the user config dir.
var configDir string

var rootCmd = &cobra.Command{
	Use:   "fleetwatch",
	Short: "Collect and chart metrics from a fleet of machines",
	Long: `fleetwatch collects RAM, CPU, process and network metrics from agent
machines over a small TCP protocol, stores them in SQLite, and charts them
in a terminal dashboard.

Quick start:
  fleetwatch init                      # on the server
  fleetwatch server --dashboard
  fleetwatch config-set serverAddr 10.0.0.5:51347   # on each agent
  fleetwatch setup
  fleetwatch client`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"directory holding client.json, server.json, fleetwatch.yaml and the database")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes structured errors as they render themselves and
// prefixes anything else with the failure symbol.
func printError(w io.Writer, err error) {
	if errors.CodeOf(err) != "" {
		fmt.Fprint(w, err.Error())
		return
	}
	fmt.Fprintf(w, "✗ %v\n", err)
}
