package cli

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/fleetwatch/internal/dashboard"
	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse stored metrics without running the server",
	Long: `Open the terminal dashboard over the local database. It only reads, so
it is safe to run next to a live server.

Keyboard shortcuts:
  Tab / Shift+Tab  Next / previous device
  Up / Down        Longer / shorter time range
  r                Refresh now
  ?                Show help
  q / Ctrl+C       Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		if err := requireTerminal("dashboard"); err != nil {
			return err
		}

		st, err := env.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		reg, err := env.openRegistry()
		if err != nil {
			return err
		}

		opts := dashboard.OptionsFromSettings(env.settings.Dashboard)
		opts.Skip = reg.IsAdminID
		return dashboard.Run(cmd.Context(), st, opts)
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func requireTerminal(what string) error {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("%s needs an interactive terminal", what),
		"Run it from a terminal, or use 'fleetwatch server' for headless collection")
}
