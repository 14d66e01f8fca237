package cli

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	setupServer string
	setupName   string
	setupForce  bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register this machine with the server",
	Long: `Ask the server for a device id and store it in client.json together
with the server address and a display name.

Missing values are prompted for when running in a terminal; otherwise the
current client.json values are used.

Examples:
  fleetwatch setup
  fleetwatch setup --server 10.0.0.5:51347 --name nas`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		cfg, err := env.clientConfig()
		if err != nil {
			return err
		}

		if cfg.Registered() && !setupForce {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("This machine is already set up as %s", cfg.DeviceID),
				"Use --force to register again under a new id")
		}

		if setupServer != "" {
			cfg.ServerAddr = setupServer
		}
		if setupName != "" {
			cfg.DeviceName = setupName
		}
		if (setupServer == "" || setupName == "") && isInteractive() {
			if err := promptSetup(cfg); err != nil {
				return err
			}
		}
		if cfg.DeviceName == "" {
			if host, err := os.Hostname(); err == nil {
				cfg.DeviceName = host
			}
		}
		if err := validateServerAddr(cfg.ServerAddr); err != nil {
			return err
		}

		id, err := env.newClient(cfg).Setup(cmd.Context())
		if err != nil {
			return err
		}
		cfg.DeviceID = id
		if err := config.SaveClientConfig(env.paths, cfg); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		ui.Success(out, "Registered %s as %s", cfg.DeviceName, id)
		fmt.Fprintln(out, ui.Muted("  Start sending metrics with: fleetwatch client"))
		return nil
	},
}

// isInteractive reports whether prompts can be shown. Tests replace it.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func promptSetup(cfg *config.ClientConfig) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server address").
				Description("host:port of the fleetwatch server").
				Placeholder(fmt.Sprintf("10.0.0.5:%d", config.DefaultPort)).
				Value(&cfg.ServerAddr).
				Validate(validateServerAddr),
			huh.NewInput().
				Title("Device name").
				Description("Shown in the dashboard and device lists").
				Value(&cfg.DeviceName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("device name is required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Pass --server and --name instead")
	}
	cfg.DeviceName = strings.TrimSpace(cfg.DeviceName)
	return nil
}

func validateServerAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' is not a host:port address", addr),
			fmt.Sprintf("Try something like 10.0.0.5:%d", config.DefaultPort))
	}
	return nil
}

func init() {
	setupCmd.Flags().StringVar(&setupServer, "server", "", "server address (host:port)")
	setupCmd.Flags().StringVar(&setupName, "name", "", "device display name")
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "register again even if this machine has an id")
	rootCmd.AddCommand(setupCmd)
}
