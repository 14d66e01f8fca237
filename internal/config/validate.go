package config

import (
	"fmt"
	"net"

	"github.com/rileyhilliard/fleetwatch/internal/errors"
)

// Validate checks settings for values the runtime cannot work with.
func Validate(s *Settings) error {
	if s == nil {
		return errors.New(errors.ErrConfig,
			"Settings are nil",
			"This is unexpected - try reloading the configuration.")
	}

	if s.Version > CurrentSettingsVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s is from the future (version %d, but fleetwatch only knows up to %d)", SettingsFile, s.Version, CurrentSettingsVersion),
			"Upgrade fleetwatch, or regenerate the file with 'fleetwatch init --force'.")
	}

	if _, _, err := net.SplitHostPort(s.Server.Listen); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("server.listen '%s' is not a host:port address", s.Server.Listen),
			fmt.Sprintf("Use something like '0.0.0.0:%d'.", DefaultPort))
	}

	if s.Server.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(s.Server.MetricsAddr); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("server.metrics_addr '%s' is not a host:port address", s.Server.MetricsAddr),
				"Use something like '127.0.0.1:9347', or leave it empty to disable metrics.")
		}
	}

	checks := []struct {
		ok   bool
		key  string
		hint string
	}{
		{s.Server.Workers > 0, "server.workers", "needs at least one worker"},
		{s.Server.ReadTimeout > 0, "server.read_timeout", "must be a positive duration like '5s'"},
		{s.Server.WriteTimeout > 0, "server.write_timeout", "must be a positive duration like '5s'"},
		{s.Server.MinInputInterval >= 0, "server.min_input_interval", "can't be negative"},
		{s.Store.MaxConns > 0, "store.max_conns", "needs at least one connection"},
		{s.Store.BusyTimeout >= 0, "store.busy_timeout", "can't be negative"},
		{s.Dashboard.Refresh > 0, "dashboard.refresh", "must be a positive duration like '10s'"},
		{s.Dashboard.TargetPoints > 0, "dashboard.target_points", "needs to be at least 1"},
		{s.Dashboard.InterpolationSteps >= 0, "dashboard.interpolation_steps", "can't be negative"},
		{s.Client.SendInterval > 0, "client.send_interval", "must be a positive duration like '2m'"},
		{s.Client.Timeout > 0, "client.timeout", "must be a positive duration like '10s'"},
	}
	for _, c := range checks {
		if !c.ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s %s", c.key, c.hint),
				"Fix the value in "+SettingsFile+" or unset the matching FLEETWATCH_ environment variable.")
		}
	}

	return nil
}
