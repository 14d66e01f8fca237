// Package registry tracks which devices may ingest data and which digests
// carry admin rights.
//
// The two sets use different encodings and are never compared directly:
// registered ids are stored raw, admin ids are stored as the hex SHA-256 of
// the raw id. Every mutation reloads the persisted state, applies its change
// and writes the result back, so edits other processes made to the file
// (admin-add, a local remove) are merged instead of overwritten.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/rileyhilliard/fleetwatch/internal/config"
	"github.com/rileyhilliard/fleetwatch/internal/errors"
)

// Persister loads and saves the registry's on-disk shape.
// config.ServerFile is the production implementation.
type Persister interface {
	Load() (*config.ServerConfig, error)
	Save(*config.ServerConfig) error
}

// AdminDigest returns the credential an admin presents for rawID.
func AdminDigest(rawID string) string {
	sum := sha256.Sum256([]byte(rawID))
	return hex.EncodeToString(sum[:])
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	persist Persister
	st      state
}

// state is the in-memory form of config.ServerConfig.
type state struct {
	registered map[string]struct{}
	admins     map[string]struct{}
	firstRun   bool
}

func stateFrom(cfg *config.ServerConfig) state {
	return state{
		registered: toSet(cfg.RegisteredDeviceIDs),
		admins:     toSet(cfg.AdminIDs),
		firstRun:   cfg.FirstRun,
	}
}

func (s state) config() *config.ServerConfig {
	return &config.ServerConfig{
		RegisteredDeviceIDs: sortedKeys(s.registered),
		AdminIDs:            sortedKeys(s.admins),
		FirstRun:            s.firstRun,
	}
}

// Open loads the registry through p.
func Open(p Persister) (*Registry, error) {
	r := &Registry{persist: p}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the in-memory state with what p currently holds. On error
// the previous state is kept.
func (r *Registry) Reload() error {
	st, err := r.load()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.st = st
	return nil
}

func (r *Registry) load() (state, error) {
	cfg, err := r.persist.Load()
	if err != nil {
		return state{}, errors.WrapWithCode(err, errors.ErrRegistry,
			"Cannot load the device registry",
			"Check "+config.ServerConfigFile+" in the config directory")
	}
	return stateFrom(cfg), nil
}

// update reloads the persisted state under the write lock and hands it to
// fn. When fn reports a change the result is saved; the in-memory state
// only moves forward once the save succeeds.
func (r *Registry) update(fn func(st *state) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.load()
	if err != nil {
		return false, err
	}
	if !fn(&st) {
		r.st = st
		return false, nil
	}
	if err := r.persist.Save(st.config()); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrRegistry,
			"Cannot persist the device registry",
			"Check that "+config.ServerConfigFile+" is writable")
	}
	r.st = st
	return true, nil
}

// IsRegistered reports whether the raw id may INPUT.
func (r *Registry) IsRegistered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.st.registered[id]
	return ok
}

// IsAdmin reports whether presented is a stored admin digest. The value is
// compared as-is; callers hash before sending.
func (r *Registry) IsAdmin(presented string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.st.admins[presented]
	return ok
}

// IsAdminID reports whether rawID's digest is an admin digest.
func (r *Registry) IsAdminID(rawID string) bool {
	return r.IsAdmin(AdminDigest(rawID))
}

// Register adds id and persists. Registering a known id is a no-op.
func (r *Registry) Register(id string) error {
	_, err := r.update(func(st *state) bool {
		if _, ok := st.registered[id]; ok {
			return false
		}
		st.registered[id] = struct{}{}
		return true
	})
	return err
}

// Remove drops id and persists. It reports whether id was registered.
func (r *Registry) Remove(id string) (bool, error) {
	return r.update(func(st *state) bool {
		if _, ok := st.registered[id]; !ok {
			return false
		}
		delete(st.registered, id)
		return true
	})
}

// AddAdmin hashes rawID, stores the digest and persists. It returns the digest.
func (r *Registry) AddAdmin(rawID string) (string, error) {
	digest := AdminDigest(rawID)
	_, err := r.update(func(st *state) bool {
		if _, ok := st.admins[digest]; ok {
			return false
		}
		st.admins[digest] = struct{}{}
		return true
	})
	if err != nil {
		return "", err
	}
	return digest, nil
}

// RemoveAdmin revokes rawID's admin digest. It reports whether it was present.
func (r *Registry) RemoveAdmin(rawID string) (bool, error) {
	digest := AdminDigest(rawID)
	return r.update(func(st *state) bool {
		if _, ok := st.admins[digest]; !ok {
			return false
		}
		delete(st.admins, digest)
		return true
	})
}

// Reconcile seeds the registry from ids already present in the store. It
// runs when the registry has never been reconciled or holds no devices, and
// reports whether it did anything.
func (r *Registry) Reconcile(storeIDs []string) (bool, error) {
	return r.update(func(st *state) bool {
		if !st.firstRun && len(st.registered) > 0 {
			return false
		}
		for _, id := range storeIDs {
			st.registered[id] = struct{}{}
		}
		st.firstRun = false
		return true
	})
}

// FirstRun reports whether reconciliation is still pending.
func (r *Registry) FirstRun() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.firstRun
}

// Registered returns the registered ids, sorted.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.st.registered)
}

// Snapshot returns the persisted shape of the current state.
func (r *Registry) Snapshot() *config.ServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.config()
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
