// Package agent samples host metrics and pushes them to the server on a
// fixed cadence.
package agent

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Reading is one raw observation. Network counters are cumulative since boot.
type Reading struct {
	RAMUsed    int64
	RAMTotal   int64
	CPUUsage   float64
	Processes  int64
	NetworkIn  uint64
	NetworkOut uint64
}

// Source produces readings. HostSource is the real one.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

// HostSource reads the local machine through gopsutil.
type HostSource struct {
	// CPUWindow is how long CPU usage is measured over.
	CPUWindow time.Duration
}

// NewHostSource measures CPU over one second.
func NewHostSource() *HostSource {
	return &HostSource{CPUWindow: time.Second}
}

func (h *HostSource) Read(ctx context.Context) (Reading, error) {
	var r Reading

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return r, err
	}
	r.RAMUsed = int64(vm.Used)
	r.RAMTotal = int64(vm.Total)

	percent, err := cpu.PercentWithContext(ctx, h.CPUWindow, false)
	if err != nil {
		return r, err
	}
	if len(percent) > 0 {
		r.CPUUsage = percent[0] / 100
	}

	// Process count is best-effort; some sandboxes hide /proc.
	if pids, err := process.PidsWithContext(ctx); err == nil {
		r.Processes = int64(len(pids))
	}

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return r, err
	}
	if len(counters) > 0 {
		r.NetworkIn = counters[0].BytesRecv
		r.NetworkOut = counters[0].BytesSent
	}
	return r, nil
}

// Sampler turns cumulative network counters into per-interval deltas.
// The first reading reports zero traffic.
type Sampler struct {
	src      Source
	prevIn   uint64
	prevOut  uint64
	havePrev bool
}

// NewSampler wraps src.
func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// Next takes a reading and returns it with windowed network values.
func (s *Sampler) Next(ctx context.Context) (Reading, error) {
	r, err := s.src.Read(ctx)
	if err != nil {
		return r, err
	}

	in, out := r.NetworkIn, r.NetworkOut
	if s.havePrev {
		r.NetworkIn = delta(s.prevIn, in)
		r.NetworkOut = delta(s.prevOut, out)
	} else {
		r.NetworkIn, r.NetworkOut = 0, 0
	}
	s.prevIn, s.prevOut, s.havePrev = in, out, true
	return r, nil
}

// delta handles counter resets (reboot, interface reset) by treating the
// new value as the whole window.
func delta(prev, cur uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}
