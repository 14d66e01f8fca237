package config

import (
	"os"
	"strings"

	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. FLEETWATCH_SERVER_LISTEN.
const EnvPrefix = "FLEETWATCH"

// LoadSettings reads fleetwatch.yaml from paths, layering environment
// overrides on top. A missing file is not an error: defaults apply.
func LoadSettings(paths Paths) (*Settings, error) {
	v := viper.New()
	setSettingsDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := paths.Settings()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read "+SettingsFile,
				"Check the file is valid YAML, or delete it and run 'fleetwatch init'")
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot access "+path,
			"Check file permissions")
	}

	return parseSettings(v, path)
}

func parseSettings(v *viper.Viper, path string) (*Settings, error) {
	s := DefaultSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid settings format",
			"Check the YAML syntax in "+path)
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// setSettingsDefaults registers every key so AutomaticEnv can bind it.
func setSettingsDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("version", d.Version)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.workers", d.Server.Workers)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.min_input_interval", d.Server.MinInputInterval)
	v.SetDefault("server.charge_unregistered", d.Server.ChargeUnregistered)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.max_conns", d.Store.MaxConns)
	v.SetDefault("store.busy_timeout", d.Store.BusyTimeout)
	v.SetDefault("dashboard.refresh", d.Dashboard.Refresh)
	v.SetDefault("dashboard.target_points", d.Dashboard.TargetPoints)
	v.SetDefault("dashboard.interpolation_steps", d.Dashboard.InterpolationSteps)
	v.SetDefault("client.send_interval", d.Client.SendInterval)
	v.SetDefault("client.timeout", d.Client.Timeout)
}
