// Package store defines the metrics store contract and its SQLite
// implementation.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Sample is one ingested metrics row. Rows are immutable once written.
type Sample struct {
	DeviceID   string
	DeviceName string
	RAMUsed    int64
	RAMTotal   int64
	// CPUUsage is a fraction in [0, 1].
	CPUUsage   float64
	Processes  int64
	NetworkIn  int64
	NetworkOut int64
	// Time is Unix seconds.
	Time int64
}

// Device pairs an id with its current display name.
type Device struct {
	ID   string
	Name string
}

// Reader is the read side used by the dashboard and LIST.
type Reader interface {
	DistinctDeviceIDs(ctx context.Context) ([]string, error)
	// DeviceName returns ErrNotFound when id has no rows.
	DeviceName(ctx context.Context, id string) (string, error)
	// SamplesSince returns rows with Time >= minTime, ascending by time.
	SamplesSince(ctx context.Context, id string, minTime int64) ([]Sample, error)
	DeviceExists(ctx context.Context, id string) (bool, error)
	// LatestSample returns ErrNotFound when id has no rows.
	LatestSample(ctx context.Context, id string) (Sample, error)
}

// Store is the full contract the server needs.
type Store interface {
	Reader
	InsertSample(ctx context.Context, s Sample) error
	// DeleteAllFor removes every row for id and returns how many went.
	DeleteAllFor(ctx context.Context, id string) (int64, error)
	// RenameDevice rewrites the name column on every row for id.
	RenameDevice(ctx context.Context, id, name string) (int64, error)
	Close() error
}

// ListDevices resolves names for every distinct id, skipping ids for which
// skip returns true. Ids whose name lookup reports ErrNotFound (deleted
// between the two queries) are omitted.
func ListDevices(ctx context.Context, r Reader, skip func(id string) bool) ([]Device, error) {
	ids, err := r.DistinctDeviceIDs(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		if skip != nil && skip(id) {
			continue
		}
		name, err := r.DeviceName(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		devices = append(devices, Device{ID: id, Name: name})
	}
	return devices, nil
}
