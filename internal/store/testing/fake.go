// Package testing provides an in-memory Store for tests.
package testing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// FakeStore implements store.Store in memory.
type FakeStore struct {
	mu      sync.Mutex
	samples []store.Sample
	closed  bool

	// InsertErr, when set, is returned by InsertSample.
	InsertErr error
}

var _ store.Store = (*FakeStore)(nil)

// NewFakeStore returns a store seeded with samples.
func NewFakeStore(samples ...store.Sample) *FakeStore {
	return &FakeStore{samples: append([]store.Sample{}, samples...)}
}

func (f *FakeStore) InsertSample(_ context.Context, s store.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.samples = append(f.samples, s)
	return nil
}

func (f *FakeStore) DistinctDeviceIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	ids := []string{}
	for _, s := range f.samples {
		if !seen[s.DeviceID] {
			seen[s.DeviceID] = true
			ids = append(ids, s.DeviceID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeStore) latest(id string) (store.Sample, bool) {
	var best store.Sample
	found := false
	for _, s := range f.samples {
		if s.DeviceID == id && (!found || s.Time >= best.Time) {
			best, found = s, true
		}
	}
	return best, found
}

func (f *FakeStore) DeviceName(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.latest(id)
	if !ok {
		return "", fmt.Errorf("device %s: %w", id, store.ErrNotFound)
	}
	return s.DeviceName, nil
}

func (f *FakeStore) SamplesSince(_ context.Context, id string, minTime int64) ([]store.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Sample{}
	for _, s := range f.samples {
		if s.DeviceID == id && s.Time >= minTime {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (f *FakeStore) DeviceExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.latest(id)
	return ok, nil
}

func (f *FakeStore) LatestSample(_ context.Context, id string) (store.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.latest(id)
	if !ok {
		return store.Sample{}, fmt.Errorf("device %s: %w", id, store.ErrNotFound)
	}
	return s, nil
}

func (f *FakeStore) DeleteAllFor(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.samples[:0]
	var n int64
	for _, s := range f.samples {
		if s.DeviceID == id {
			n++
			continue
		}
		kept = append(kept, s)
	}
	f.samples = kept
	return n, nil
}

func (f *FakeStore) RenameDevice(_ context.Context, id, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.samples {
		if f.samples[i].DeviceID == id {
			f.samples[i].DeviceName = name
			n++
		}
	}
	return n, nil
}

func (f *FakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("already closed")
	}
	f.closed = true
	return nil
}

// All returns a copy of every stored sample in insertion order.
func (f *FakeStore) All() []store.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Sample{}, f.samples...)
}
