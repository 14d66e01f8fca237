package config

import "time"

// CurrentSettingsVersion is the schema version for fleetwatch.yaml.
// Increment when making breaking changes to the settings structure.
const CurrentSettingsVersion = 1

// DefaultPort is the TCP port the server listens on unless configured otherwise.
const DefaultPort = 51347

// Settings represents the complete fleetwatch.yaml file: runtime tunables for
// the server, the store, the dashboard and the agent loop.
type Settings struct {
	Version   int               `yaml:"version" mapstructure:"version"`
	Server    ServerSettings    `yaml:"server" mapstructure:"server"`
	Store     StoreSettings     `yaml:"store" mapstructure:"store"`
	Dashboard DashboardSettings `yaml:"dashboard" mapstructure:"dashboard"`
	Client    ClientSettings    `yaml:"client" mapstructure:"client"`
}

// ServerSettings controls the protocol server.
type ServerSettings struct {
	// Listen is the TCP address the server binds to.
	Listen string `yaml:"listen" mapstructure:"listen"`

	// Workers bounds how many connections are handled at once.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// ReadTimeout caps how long a client may take to deliver its frame.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout caps how long writing a response may take.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// MinInputInterval is the per-device minimum spacing between accepted INPUTs.
	MinInputInterval time.Duration `yaml:"min_input_interval" mapstructure:"min_input_interval"`

	// ChargeUnregistered makes an unregistered device's INPUT consume its
	// rate-limit slot before it is rejected.
	ChargeUnregistered bool `yaml:"charge_unregistered" mapstructure:"charge_unregistered"`

	// MetricsAddr serves Prometheus metrics when non-empty (e.g. "127.0.0.1:9347").
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
}

// StoreSettings controls the SQLite metrics store.
type StoreSettings struct {
	// Path overrides the database location; empty means <config-dir>/database.sqlite.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxConns bounds the connection pool.
	MaxConns int `yaml:"max_conns" mapstructure:"max_conns"`

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`
}

// DashboardSettings controls the terminal dashboard.
type DashboardSettings struct {
	Refresh            time.Duration `yaml:"refresh" mapstructure:"refresh"`
	TargetPoints       int           `yaml:"target_points" mapstructure:"target_points"`
	InterpolationSteps int           `yaml:"interpolation_steps" mapstructure:"interpolation_steps"`
}

// ClientSettings controls the agent loop and outbound requests.
type ClientSettings struct {
	SendInterval time.Duration `yaml:"send_interval" mapstructure:"send_interval"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Version: CurrentSettingsVersion,
		Server: ServerSettings{
			Listen:             "0.0.0.0:51347",
			Workers:            16,
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			MinInputInterval:   110 * time.Second,
			ChargeUnregistered: true,
		},
		Store: StoreSettings{
			MaxConns:    5,
			BusyTimeout: 5 * time.Second,
		},
		Dashboard: DashboardSettings{
			Refresh:      10 * time.Second,
			TargetPoints: 40,
		},
		Client: ClientSettings{
			SendInterval: 120 * time.Second,
			Timeout:      10 * time.Second,
		},
	}
}
