package cli

import (
	"context"

	"github.com/rileyhilliard/fleetwatch/internal/client"
	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/registry"
	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// environment is the configuration context every command works from.
type environment struct {
	paths    config.Paths
	settings *config.Settings
}

// resolvePaths builds Paths from --config-dir and creates the directory.
func resolvePaths() (config.Paths, error) {
	paths, err := config.NewPaths(configDir)
	if err != nil {
		return config.Paths{}, err
	}
	if err := paths.Ensure(); err != nil {
		return config.Paths{}, err
	}
	return paths, nil
}

// loadEnvironment resolves paths and loads fleetwatch.yaml.
func loadEnvironment() (*environment, error) {
	paths, err := resolvePaths()
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(paths)
	if err != nil {
		return nil, err
	}
	return &environment{paths: paths, settings: settings}, nil
}

func (e *environment) openStore(ctx context.Context) (*store.SQLiteStore, error) {
	return store.OpenSQLite(ctx, e.paths.Database(e.settings), store.Options{
		MaxConns:    e.settings.Store.MaxConns,
		BusyTimeout: e.settings.Store.BusyTimeout,
	})
}

func (e *environment) openRegistry() (*registry.Registry, error) {
	return registry.Open(config.ServerFile{Paths: e.paths})
}

func (e *environment) clientConfig() (*config.ClientConfig, error) {
	return config.LoadClientConfig(e.paths)
}

func (e *environment) newClient(cfg *config.ClientConfig) *client.Client {
	return client.New(cfg.ServerAddr, e.settings.Client.Timeout)
}

// registeredClient loads client.json and requires a completed setup. Admin
// commands present this device id as their credential.
func (e *environment) registeredClient() (*config.ClientConfig, *client.Client, error) {
	cfg, err := e.clientConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Registered() {
		return nil, nil, errors.New(errors.ErrConfig,
			"This machine has no device id yet",
			"Run 'fleetwatch setup' first")
	}
	return cfg, e.newClient(cfg), nil
}
