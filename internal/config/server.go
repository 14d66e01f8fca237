package config

// ServerConfig is the persisted registry state.
type ServerConfig struct {
	RegisteredDeviceIDs []string `json:"registeredDeviceIDs"`
	AdminIDs            []string `json:"adminIDs"`
	FirstRun            bool     `json:"firstRun"`
}

// DefaultServerConfig is the state of a server that has never run.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		RegisteredDeviceIDs: []string{},
		AdminIDs:            []string{},
		FirstRun:            true,
	}
}

// LoadServerConfig reads server.json. A missing file yields defaults.
func LoadServerConfig(paths Paths) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	found, err := readJSON(paths.Server(), cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultServerConfig(), nil
	}
	if cfg.RegisteredDeviceIDs == nil {
		cfg.RegisteredDeviceIDs = []string{}
	}
	if cfg.AdminIDs == nil {
		cfg.AdminIDs = []string{}
	}
	return cfg, nil
}

// SaveServerConfig overwrites server.json with cfg.
func SaveServerConfig(paths Paths, cfg *ServerConfig) error {
	return writeJSON(paths.Server(), cfg)
}

// ServerFile adapts Paths to the registry's persistence hook.
type ServerFile struct {
	Paths Paths
}

func (f ServerFile) Load() (*ServerConfig, error) { return LoadServerConfig(f.Paths) }
func (f ServerFile) Save(cfg *ServerConfig) error { return SaveServerConfig(f.Paths, cfg) }
