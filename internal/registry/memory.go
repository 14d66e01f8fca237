package registry

import (
	"sync"

	"github.com/rileyhilliard/fleetwatch/internal/config"
)

// MemoryPersister keeps the registry in memory. Used in tests and by
// callers that do not want a server.json on disk.
type MemoryPersister struct {
	mu    sync.Mutex
	cfg   *config.ServerConfig
	Saves int
	// Err, when set, is returned from Save.
	Err error
}

// NewMemoryPersister starts from cfg, or from defaults when cfg is nil.
func NewMemoryPersister(cfg *config.ServerConfig) *MemoryPersister {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	return &MemoryPersister{cfg: clone(cfg)}
}

func (m *MemoryPersister) Load() (*config.ServerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.cfg), nil
}

func (m *MemoryPersister) Save(cfg *config.ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.cfg = clone(cfg)
	m.Saves++
	return nil
}

// Stored returns a copy of the last saved state.
func (m *MemoryPersister) Stored() *config.ServerConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.cfg)
}

func clone(c *config.ServerConfig) *config.ServerConfig {
	return &config.ServerConfig{
		RegisteredDeviceIDs: append([]string{}, c.RegisteredDeviceIDs...),
		AdminIDs:            append([]string{}, c.AdminIDs...),
		FirstRun:            c.FirstRun,
	}
}
