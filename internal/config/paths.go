package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/fleetwatch/internal/errors"
)

const (
	// AppDirName is the directory under the user config dir holding all state.
	AppDirName = "fleetwatch"
	// ClientConfigFile holds the client identity and server address.
	ClientConfigFile = "client.json"
	// ServerConfigFile holds the device registry and admin digests.
	ServerConfigFile = "server.json"
	// SettingsFile holds runtime tunables.
	SettingsFile = "fleetwatch.yaml"
	// DatabaseFile is the SQLite metrics store.
	DatabaseFile = "database.sqlite"
)

// Paths locates every file fleetwatch reads or writes. It is built once by
// the CLI and handed to components; nothing else resolves locations.
type Paths struct {
	Dir string
}

// DefaultDir returns <user config dir>/fleetwatch.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine the user config directory",
			"Pass --config-dir to choose where fleetwatch keeps its files")
	}
	return filepath.Join(base, AppDirName), nil
}

// NewPaths returns Paths rooted at dir, or at DefaultDir when dir is empty.
func NewPaths(dir string) (Paths, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return Paths{}, err
		}
		dir = d
	}
	return Paths{Dir: dir}, nil
}

// Ensure creates the config directory if needed.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create config directory "+p.Dir,
			"Check directory permissions")
	}
	return nil
}

func (p Paths) Client() string   { return filepath.Join(p.Dir, ClientConfigFile) }
func (p Paths) Server() string   { return filepath.Join(p.Dir, ServerConfigFile) }
func (p Paths) Settings() string { return filepath.Join(p.Dir, SettingsFile) }

// Database returns the store location, honoring a settings override.
func (p Paths) Database(s *Settings) string {
	if s != nil && s.Store.Path != "" {
		return s.Store.Path
	}
	return filepath.Join(p.Dir, DatabaseFile)
}
