package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	fwerrors "github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/store"
	"github.com/rileyhilliard/fleetwatch/internal/ui"
	"github.com/spf13/cobra"
)

var removeYes bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices in the local database",
	Long: `List every device that has stored samples, read straight from the
database on this machine. Admin devices are left out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := env.openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reg, err := env.openRegistry()
		if err != nil {
			return err
		}

		devices, err := store.ListDevices(ctx, st, reg.IsAdminID)
		if err != nil {
			return fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot list devices", "")
		}
		out := cmd.OutOrStdout()
		if len(devices) == 0 {
			fmt.Fprintln(out, "No devices found")
			return nil
		}

		rows := make([][]string, 0, len(devices))
		for _, d := range devices {
			seen := "-"
			if s, err := st.LatestSample(ctx, d.ID); err == nil {
				seen = time.Unix(s.Time, 0).Format("2006-01-02 15:04")
			}
			registered := "no"
			if reg.IsRegistered(d.ID) {
				registered = "yes"
			}
			rows = append(rows, []string{d.Name, d.ID, registered, seen})
		}
		fmt.Fprintln(out, ui.RenderTable(
			[]ui.Column{{Title: "NAME"}, {Title: "DEVICE ID"}, {Title: "REGISTERED"}, {Title: "LAST SEEN"}},
			rows,
		))
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <device-id>",
	Short: "Delete a device's samples and registration locally",
	Long: `Delete every sample of a device from the local database and drop it
from server.json. A running server keeps its in-memory registry until it is
told to reload ('fleetwatch reload-remote' from an admin device).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := env.openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reg, err := env.openRegistry()
		if err != nil {
			return err
		}

		exists, err := st.DeviceExists(ctx, id)
		if err != nil {
			return fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot look up device", "")
		}
		if !exists && !reg.IsRegistered(id) {
			return fwerrors.New(fwerrors.ErrRegistry,
				fmt.Sprintf("Device %s not found", id),
				"See known devices with 'fleetwatch list'")
		}

		if !removeYes {
			ok, err := confirmRemove(id, st.DeviceName, cmd)
			if err != nil || !ok {
				return err
			}
		}

		deleted, err := st.DeleteAllFor(ctx, id)
		if err != nil {
			return fwerrors.WrapWithCode(err, fwerrors.ErrStore, "Cannot delete samples", "")
		}
		if _, err := reg.Remove(id); err != nil {
			return err
		}
		ui.Success(cmd.OutOrStdout(), "Removed %s (%d samples deleted)", id, deleted)
		return nil
	},
}

func confirmRemove(id string, name func(ctx context.Context, id string) (string, error), cmd *cobra.Command) (bool, error) {
	if !isInteractive() {
		return false, fwerrors.New(fwerrors.ErrConfig,
			"Refusing to remove without confirmation",
			"Pass --yes to remove non-interactively")
	}

	title := fmt.Sprintf("Remove device %s?", id)
	if n, err := name(cmd.Context(), id); err == nil && n != "" {
		title = fmt.Sprintf("Remove %s (%s)?", n, id)
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description("All of its samples are deleted. This cannot be undone").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, fwerrors.WrapWithCode(err, fwerrors.ErrConfig,
			"Couldn't get your input",
			"Pass --yes to skip the prompt")
	}
	if !confirm {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
	}
	return confirm, nil
}

var adminAddCmd = &cobra.Command{
	Use:   "admin-add <device-id>",
	Short: "Allow a device to run admin commands",
	Long: `Store the SHA-256 digest of a device id in server.json so that device
may use remote-list, remove-remote, rename-remote, reload-remote and stop.
The raw id is never written to disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		reg, err := env.openRegistry()
		if err != nil {
			return err
		}
		digest, err := reg.AddAdmin(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ui.Success(out, "Added admin %s", args[0])
		fmt.Fprintln(out, ui.Muted("  digest "+digest))
		return nil
	},
}

var adminRemoveCmd = &cobra.Command{
	Use:   "admin-remove <device-id>",
	Short: "Revoke a device's admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		reg, err := env.openRegistry()
		if err != nil {
			return err
		}
		removed, err := reg.RemoveAdmin(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fwerrors.New(fwerrors.ErrRegistry,
				fmt.Sprintf("%s is not an admin", args[0]), "")
		}
		ui.Success(cmd.OutOrStdout(), "Removed admin %s", args[0])
		return nil
	},
}

func init() {
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(listCmd, removeCmd, adminAddCmd, adminRemoveCmd)
}
