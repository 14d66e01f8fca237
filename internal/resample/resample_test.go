package resample

import (
	"testing"
	"time"

	"github.com/rileyhilliard/fleetwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{X: float64(i), Y: float64(i * 2)}
	}
	return pts
}

func TestFilter(t *testing.T) {
	samples := []store.Sample{
		{Time: 900, CPUUsage: 0.1},
		{Time: 1000, CPUUsage: 0.25, RAMUsed: 10},
		{Time: 1500, CPUUsage: 0.5, RAMUsed: 20},
	}

	got := Filter(samples, CPU, 1600, 600*time.Second)
	assert.Equal(t, []Point{{X: 0, Y: 25}, {X: 500, Y: 50}}, got)

	got = Filter(samples, RAM, 1600, 600*time.Second)
	assert.Equal(t, []Point{{X: 0, Y: 10}, {X: 500, Y: 20}}, got)

	assert.Empty(t, Filter(nil, CPU, 1600, time.Hour))
}

func TestDownsample_Bounds(t *testing.T) {
	for n := 0; n <= 200; n++ {
		got := Downsample(ramp(n), DefaultTargetPoints)
		assert.LessOrEqual(t, len(got), DefaultTargetPoints, "n=%d", n)
		assert.Equal(t, n == 0, len(got) == 0, "n=%d", n)
	}
}

func TestDownsample(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		target int
		want   []Point
	}{
		{name: "empty", points: nil, target: 40, want: []Point{}},
		{name: "zero target", points: ramp(5), target: 0, want: []Point{}},
		{name: "fewer than target is unchanged", points: ramp(3), target: 40, want: ramp(3)},
		{
			name:   "exact multiple averages pairs",
			points: []Point{{0, 0}, {2, 4}, {4, 8}, {6, 12}},
			target: 2,
			want:   []Point{{1, 2}, {5, 10}},
		},
		{
			name:   "remainder lands in the final chunk",
			points: []Point{{0, 0}, {1, 3}, {2, 6}, {3, 9}, {4, 12}},
			target: 2,
			want:   []Point{{1, 3}, {3.5, 10.5}},
		},
		{
			name:   "single chunk",
			points: []Point{{0, 1}, {10, 3}},
			target: 1,
			want:   []Point{{5, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Downsample(tt.points, tt.target))
		})
	}
}

func TestInterpolate_Count(t *testing.T) {
	for _, steps := range []int{1, 2, 5, 10} {
		for k := 0; k <= 12; k++ {
			got := Interpolate(ramp(k), steps)
			want := 0
			if k > 0 {
				want = (k-1)*steps + 1
			}
			assert.Len(t, got, want, "k=%d steps=%d", k, steps)
		}
	}
}

func TestInterpolate_Values(t *testing.T) {
	got := Interpolate([]Point{{0, 0}, {4, 8}, {8, 0}}, 4)
	want := []Point{
		{0, 0}, {1, 2}, {2, 4}, {3, 6},
		{4, 8}, {5, 6}, {6, 4}, {7, 2},
		{8, 0},
	}
	assert.Equal(t, want, got)
}

func TestInterpolate_NonPositiveStepsIsIdentity(t *testing.T) {
	in := ramp(4)
	assert.Equal(t, in, Interpolate(in, 0))
	assert.Equal(t, in, Interpolate(in, -3))
}

func TestAxisRange(t *testing.T) {
	tests := []struct {
		name             string
		points           []Point
		wantMin, wantMax float64
	}{
		{name: "zeros excluded from min", points: []Point{{0, 0}, {1, 5}, {2, 0}, {3, 10}}, wantMin: 5, wantMax: 10},
		{name: "empty", points: nil, wantMin: 0, wantMax: 0},
		{name: "all zero", points: []Point{{0, 0}, {1, 0}}, wantMin: 0, wantMax: 0},
		{name: "single value", points: []Point{{0, 7}}, wantMin: 7, wantMax: 7},
		{name: "no zeros", points: []Point{{0, 3}, {1, 1}, {2, 2}}, wantMin: 1, wantMax: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minY, maxY := AxisRange(tt.points)
			assert.Equal(t, tt.wantMin, minY)
			assert.Equal(t, tt.wantMax, maxY)
		})
	}
}

func TestSelectUnit(t *testing.T) {
	tests := []struct {
		name  string
		peak  float64
		units []Unit
		want  string
	}{
		{name: "bytes", peak: 512, units: ByteUnits, want: "B"},
		{name: "exactly one KiB", peak: 1024, units: ByteUnits, want: "KiB"},
		{name: "just under MiB", peak: 1<<20 - 1, units: ByteUnits, want: "KiB"},
		{name: "gibibytes", peak: 16 << 30, units: ByteUnits, want: "GiB"},
		{name: "caps at largest", peak: 1 << 62, units: ByteUnits, want: "PiB"},
		{name: "zero", peak: 0, units: ByteUnits, want: "B"},
		{name: "seconds", peak: 59, units: TimeUnits, want: "s"},
		{name: "minutes", peak: 30 * 60, units: TimeUnits, want: "min"},
		{name: "hours", peak: 3600, units: TimeUnits, want: "h"},
		{name: "days", peak: 86400, units: TimeUnits, want: "d"},
		{name: "weeks", peak: 30 * 86400, units: TimeUnits, want: "w"},
		{name: "364 days", peak: 364 * 86400, units: TimeUnits, want: "w"},
		{name: "years", peak: 365 * 86400, units: TimeUnits, want: "y"},
		{name: "decades", peak: 20 * 365 * 86400, units: TimeUnits, want: "decade"},
		{name: "no table", peak: 55, units: nil, want: "%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectUnit(tt.peak, tt.units).Name)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "512 B", Format(512, ByteUnits))
	assert.Equal(t, "1.5 GiB", Format(1.5*(1<<30), ByteUnits))
	assert.Equal(t, "2 h", Format(7200, TimeUnits))
	assert.Equal(t, "1 y", Format((365 * 24 * time.Hour).Seconds(), TimeUnits))
	assert.Equal(t, "42.5%", FormatIn(42.5, PercentUnit))
}

func TestBuild(t *testing.T) {
	const now = 10_000
	var samples []store.Sample
	for i := 0; i < 100; i++ {
		samples = append(samples, store.Sample{
			Time:     now - 3600 + int64(i*36),
			CPUUsage: 0.5,
			RAMUsed:  int64(2 << 30),
		})
	}
	// Outside the window.
	samples = append([]store.Sample{{Time: 1, RAMUsed: 99 << 40}}, samples...)

	ram := Build(samples, RAM, now, time.Hour, DefaultOptions())
	require.False(t, ram.Empty())
	assert.LessOrEqual(t, len(ram.Points), DefaultTargetPoints)
	assert.Equal(t, "GiB", ram.Unit.Name)
	assert.InDelta(t, 2.0, ram.Max, 1e-9)
	assert.InDelta(t, 2.0, ram.Min, 1e-9)
	assert.InDelta(t, float64(2<<30), ram.RawMax, 1)
	assert.Equal(t, "h", ram.XUnit.Name)
	assert.Equal(t, 3600.0, ram.Window)

	cpu := Build(samples, CPU, now, time.Hour, Options{TargetPoints: 10, Steps: 3})
	assert.Len(t, cpu.Points, (10-1)*3+1)
	assert.Equal(t, "%", cpu.Unit.Name)
	assert.InDelta(t, 50.0, cpu.Max, 1e-9)

	empty := Build(nil, NetworkIn, now, time.Hour, DefaultOptions())
	assert.True(t, empty.Empty())
	assert.Equal(t, 0.0, empty.Max)

	all := BuildAll(samples, now, time.Hour, DefaultOptions())
	require.Len(t, all, len(Channels))
	for i, s := range all {
		assert.Equal(t, Channels[i], s.Channel)
	}
}

func TestChannelStrings(t *testing.T) {
	assert.Equal(t, "CPU", CPU.String())
	assert.Equal(t, "Network out", NetworkOut.String())
	assert.Nil(t, CPU.Units())
	assert.Equal(t, ByteUnits, NetworkIn.Units())
}
