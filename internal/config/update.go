package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"gopkg.in/yaml.v3"
)

const settingsHeader = `# fleetwatch runtime settings.
# Any key can be overridden with an environment variable, e.g.
# FLEETWATCH_SERVER_LISTEN=0.0.0.0:51347 or FLEETWATCH_DASHBOARD_REFRESH=30s.
`

// settingsDoc mirrors Settings with durations rendered as strings so the
// written file reads "5s" instead of nanoseconds.
type settingsDoc struct {
	Version int `yaml:"version"`
	Server  struct {
		Listen             string `yaml:"listen"`
		Workers            int    `yaml:"workers"`
		ReadTimeout        string `yaml:"read_timeout"`
		WriteTimeout       string `yaml:"write_timeout"`
		MinInputInterval   string `yaml:"min_input_interval"`
		ChargeUnregistered bool   `yaml:"charge_unregistered"`
		MetricsAddr        string `yaml:"metrics_addr"`
	} `yaml:"server"`
	Store struct {
		Path        string `yaml:"path"`
		MaxConns    int    `yaml:"max_conns"`
		BusyTimeout string `yaml:"busy_timeout"`
	} `yaml:"store"`
	Dashboard struct {
		Refresh            string `yaml:"refresh"`
		TargetPoints       int    `yaml:"target_points"`
		InterpolationSteps int    `yaml:"interpolation_steps"`
	} `yaml:"dashboard"`
	Client struct {
		SendInterval string `yaml:"send_interval"`
		Timeout      string `yaml:"timeout"`
	} `yaml:"client"`
}

func toDoc(s *Settings) settingsDoc {
	var d settingsDoc
	d.Version = s.Version
	d.Server.Listen = s.Server.Listen
	d.Server.Workers = s.Server.Workers
	d.Server.ReadTimeout = s.Server.ReadTimeout.String()
	d.Server.WriteTimeout = s.Server.WriteTimeout.String()
	d.Server.MinInputInterval = s.Server.MinInputInterval.String()
	d.Server.ChargeUnregistered = s.Server.ChargeUnregistered
	d.Server.MetricsAddr = s.Server.MetricsAddr
	d.Store.Path = s.Store.Path
	d.Store.MaxConns = s.Store.MaxConns
	d.Store.BusyTimeout = s.Store.BusyTimeout.String()
	d.Dashboard.Refresh = s.Dashboard.Refresh.String()
	d.Dashboard.TargetPoints = s.Dashboard.TargetPoints
	d.Dashboard.InterpolationSteps = s.Dashboard.InterpolationSteps
	d.Client.SendInterval = s.Client.SendInterval.String()
	d.Client.Timeout = s.Client.Timeout.String()
	return d
}

// RenderSettings encodes s as the YAML written by 'fleetwatch init'.
func RenderSettings(s *Settings) (string, error) {
	var buf strings.Builder
	buf.WriteString(settingsHeader)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(toDoc(s)); err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}
	encoder.Close()
	return buf.String(), nil
}

// WriteDefaultSettings creates fleetwatch.yaml with defaults. It refuses to
// overwrite an existing file unless force is set.
func WriteDefaultSettings(paths Paths, force bool) (string, error) {
	path := paths.Settings()
	if _, err := os.Stat(path); err == nil && !force {
		return path, errors.New(errors.ErrConfig,
			path+" already exists",
			"Use --force to overwrite it")
	}

	content, err := RenderSettings(DefaultSettings())
	if err != nil {
		return path, errors.WrapWithCode(err, errors.ErrConfig, "Cannot render default settings", "")
	}
	if err := paths.Ensure(); err != nil {
		return path, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return path, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write "+path,
			"Check directory permissions")
	}
	return path, nil
}
