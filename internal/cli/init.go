package cli

import (
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/ui"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default fleetwatch.yaml",
	Long: `Write fleetwatch.yaml with every setting at its default, commented,
into the config directory.

Examples:
  fleetwatch init
  fleetwatch init --force
  fleetwatch --config-dir /srv/fleetwatch init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		path, err := config.WriteDefaultSettings(paths, initForce)
		if err != nil {
			return err
		}
		ui.Success(cmd.OutOrStdout(), "Wrote %s", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing fleetwatch.yaml")
	rootCmd.AddCommand(initCmd)
}
