package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/server"
	"github.com/rileyhilliard/fleetwatch/internal/ui"
	"github.com/spf13/cobra"
)

// printResponse shows a server reply, flagging the denial string.
func printResponse(w io.Writer, resp string) error {
	if resp == server.RespDenied {
		return errors.New(errors.ErrAuth,
			"The server refused: "+resp,
			"Run 'fleetwatch admin-add <this device id>' on the server, then 'fleetwatch reload-remote'")
	}
	fmt.Fprintln(w, resp)
	return nil
}

// parseDeviceList reverses server.FormatDeviceList. Names may contain ": ",
// ids never do, so the split is on the last separator.
func parseDeviceList(resp string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(resp, "\n") {
		i := strings.LastIndex(line, ": ")
		if i < 0 {
			continue
		}
		rows = append(rows, []string{line[:i], line[i+2:]})
	}
	return rows
}

var remoteListCmd = &cobra.Command{
	Use:   "remote-list",
	Short: "List devices known to the server (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		cfg, c, err := env.registeredClient()
		if err != nil {
			return err
		}
		resp, err := c.List(cmd.Context(), cfg.DeviceID)
		if err != nil {
			return err
		}

		rows := parseDeviceList(resp)
		if len(rows) == 0 {
			return printResponse(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderTable(
			[]ui.Column{{Title: "NAME"}, {Title: "DEVICE ID"}},
			rows,
		))
		return nil
	},
}

var removeRemoteCmd = &cobra.Command{
	Use:   "remove-remote <device-id>",
	Short: "Remove a device on the server (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		cfg, c, err := env.registeredClient()
		if err != nil {
			return err
		}
		resp, err := c.Remove(cmd.Context(), cfg.DeviceID, args[0])
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Rename this device",
	Long: `Rename this device's stored samples on the server and keep the new
name in client.json for future reports.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		cfg, c, err := env.registeredClient()
		if err != nil {
			return err
		}
		resp, err := c.Rename(cmd.Context(), cfg.DeviceID, args[0])
		if err != nil {
			return err
		}
		cfg.DeviceName = args[0]
		if err := config.SaveClientConfig(env.paths, cfg); err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var renameRemoteCmd = &cobra.Command{
	Use:   "rename-remote <device-id> <name>",
	Short: "Rename another device on the server (admin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		cfg, c, err := env.registeredClient()
		if err != nil {
			return err
		}
		resp, err := c.AdminRename(cmd.Context(), cfg.DeviceID, args[0], args[1])
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var reloadRemoteCmd = &cobra.Command{
	Use:   "reload-remote",
	Short: "Make the server re-read server.json (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		cfg, c, err := env.registeredClient()
		if err != nil {
			return err
		}
		resp, err := c.Reload(cmd.Context(), cfg.DeviceID)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a server running on this machine",
	Long:  `Send EXIT to the configured server. Only loopback clients are obeyed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		cfg, err := env.clientConfig()
		if err != nil {
			return err
		}
		resp, err := env.newClient(cfg).Exit(cmd.Context())
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var configSetCmd = &cobra.Command{
	Use:       "config-set <key> <value>",
	Short:     "Change a client.json value",
	Long:      `Set deviceName, serverAddr or deviceID in client.json.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.ClientKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		cfg, err := config.LoadClientConfig(paths)
		if err != nil {
			return err
		}
		if err := cfg.SetClientValue(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SaveClientConfig(paths, cfg); err != nil {
			return err
		}
		ui.Success(cmd.OutOrStdout(), "Set %s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(
		remoteListCmd,
		removeRemoteCmd,
		renameCmd,
		renameRemoteCmd,
		reloadRemoteCmd,
		stopCmd,
		configSetCmd,
	)
}
