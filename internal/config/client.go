package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/fleetwatch/internal/errors"
)

// UnsetDeviceID marks a client that has not completed setup.
const UnsetDeviceID = "N/A"

// ClientConfig identifies this machine to the server.
type ClientConfig struct {
	DeviceID   string `json:"deviceID"`
	DeviceName string `json:"deviceName"`
	ServerAddr string `json:"serverAddr"`
}

// DefaultClientConfig is what a fresh install starts from.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		DeviceID:   UnsetDeviceID,
		ServerAddr: fmt.Sprintf("127.0.0.1:%d", DefaultPort),
	}
}

// Registered reports whether setup has assigned a device id.
func (c *ClientConfig) Registered() bool {
	return c.DeviceID != "" && c.DeviceID != UnsetDeviceID
}

// ClientKeys lists the keys accepted by SetClientValue.
var ClientKeys = []string{"deviceName", "serverAddr", "deviceID"}

// SetClientValue updates one field by its JSON key.
func (c *ClientConfig) SetClientValue(key, value string) error {
	switch key {
	case "deviceName":
		c.DeviceName = value
	case "serverAddr":
		c.ServerAddr = value
	case "deviceID":
		c.DeviceID = value
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown client config key '%s'", key),
			fmt.Sprintf("Valid keys: %v", ClientKeys))
	}
	return nil
}

// LoadClientConfig reads client.json. A missing file yields defaults.
func LoadClientConfig(paths Paths) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	found, err := readJSON(paths.Client(), cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return DefaultClientConfig(), nil
	}
	return cfg, nil
}

// SaveClientConfig writes client.json in full.
func SaveClientConfig(paths Paths, cfg *ClientConfig) error {
	return writeJSON(paths.Client(), cfg)
}

// readJSON decodes path into v. It reports found=false when the file does not exist.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot read "+filepath.Base(path),
			"Check file permissions on "+path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid JSON in "+filepath.Base(path),
			"Fix or delete "+path+" and run setup again")
	}
	return true, nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot encode "+filepath.Base(path), "")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create config directory "+dir,
			"Check directory permissions")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write "+filepath.Base(path),
			"Check directory permissions on "+dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot write "+filepath.Base(path), "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot write "+filepath.Base(path), "")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot replace "+path, "")
	}
	return nil
}
