package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/rileyhilliard/fleetwatch/internal/resample"
	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// Snapshot is one refresh worth of dashboard data.
type Snapshot struct {
	Devices []store.Device
	// Selected indexes Devices, or is -1 when there are none.
	Selected int
	Series   []resample.Series
	// RAMTotal is the latest reported total memory in bytes, 0 if unknown.
	RAMTotal int64
	Time     time.Time
}

// Device returns the selected device.
func (s Snapshot) Device() (store.Device, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Devices) {
		return store.Device{}, false
	}
	return s.Devices[s.Selected], true
}

// Query describes what to fetch.
type Query struct {
	// DeviceID is the preferred device. When it is gone, Fallback picks by
	// index into the fresh device list.
	DeviceID string
	Fallback int
	Window   time.Duration
	Options  resample.Options
	Skip     func(id string) bool
}

// Fetch lists devices, picks one, and builds its series over the window
// ending at now. All store access is read-only.
func Fetch(ctx context.Context, r store.Reader, q Query, now time.Time) (Snapshot, error) {
	snap := Snapshot{Selected: -1, Time: now}

	devices, err := store.ListDevices(ctx, r, q.Skip)
	if err != nil {
		return snap, err
	}
	snap.Devices = devices
	if len(devices) == 0 {
		return snap, nil
	}

	snap.Selected = clampInt(q.Fallback, len(devices)-1)
	for i, d := range devices {
		if d.ID == q.DeviceID {
			snap.Selected = i
			break
		}
	}
	id := devices[snap.Selected].ID

	start := now.Unix() - int64(q.Window/time.Second)
	samples, err := r.SamplesSince(ctx, id, start)
	if err != nil {
		return snap, err
	}
	snap.Series = resample.BuildAll(samples, now.Unix(), q.Window, q.Options)

	latest, err := r.LatestSample(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return snap, err
	default:
		snap.RAMTotal = latest.RAMTotal
	}
	return snap, nil
}
