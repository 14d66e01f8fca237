// Package resample turns raw, irregularly spaced store rows into bounded,
// chart-ready point series.
//
// The pipeline for one channel is Filter, Downsample, optional Interpolate,
// then AxisRange and unit selection over the result.
package resample

import (
	"math"
	"time"

	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// DefaultTargetPoints bounds how many points a chart receives.
const DefaultTargetPoints = 40

// Point is one chart coordinate. X is seconds since the window start.
type Point struct {
	X, Y float64
}

// Channel selects which metric a series plots.
type Channel int

const (
	CPU Channel = iota
	RAM
	NetworkIn
	NetworkOut
)

// Channels lists every channel in display order.
var Channels = []Channel{CPU, RAM, NetworkIn, NetworkOut}

func (c Channel) String() string {
	switch c {
	case CPU:
		return "CPU"
	case RAM:
		return "RAM"
	case NetworkIn:
		return "Network in"
	case NetworkOut:
		return "Network out"
	}
	return "unknown"
}

// Value extracts the channel's raw value from a sample. CPU is reported
// as a percentage.
func (c Channel) Value(s store.Sample) float64 {
	switch c {
	case CPU:
		return s.CPUUsage * 100
	case RAM:
		return float64(s.RAMUsed)
	case NetworkIn:
		return float64(s.NetworkIn)
	case NetworkOut:
		return float64(s.NetworkOut)
	}
	return 0
}

// Units returns the table used to scale the channel, or nil when values are
// displayed as-is.
func (c Channel) Units() []Unit {
	if c == CPU {
		return nil
	}
	return ByteUnits
}

// Filter keeps samples at or after now-window and maps each to
// (time - window start, value). Input order is preserved.
func Filter(samples []store.Sample, ch Channel, now int64, window time.Duration) []Point {
	start := now - int64(window/time.Second)
	points := make([]Point, 0, len(samples))
	for _, s := range samples {
		if s.Time < start {
			continue
		}
		points = append(points, Point{X: float64(s.Time - start), Y: ch.Value(s)})
	}
	return points
}

// Downsample splits points into contiguous chunks of ceil(n/target) and
// collapses each chunk to the mean of its x and y values. The final chunk
// takes the remainder. The result has at most target points, and is empty
// only when points is empty or target is not positive.
func Downsample(points []Point, target int) []Point {
	n := len(points)
	if n == 0 || target <= 0 {
		return []Point{}
	}

	size := int(math.Ceil(float64(n) / float64(target)))
	out := make([]Point, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		var sx, sy float64
		for _, p := range points[start:end] {
			sx += p.X
			sy += p.Y
		}
		count := float64(end - start)
		out = append(out, Point{X: sx / count, Y: sy / count})
	}
	return out
}

// Interpolate emits steps evenly spaced points from each point toward its
// successor (the starting point included), then appends the final point.
// k input points yield (k-1)*steps+1 outputs. steps below 1 is treated as 1,
// which returns a copy of the input.
func Interpolate(points []Point, steps int) []Point {
	if len(points) == 0 {
		return []Point{}
	}
	if steps < 1 {
		steps = 1
	}

	out := make([]Point, 0, (len(points)-1)*steps+1)
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		for j := 0; j < steps; j++ {
			t := float64(j) / float64(steps)
			out = append(out, Point{
				X: a.X + (b.X-a.X)*t,
				Y: a.Y + (b.Y-a.Y)*t,
			})
		}
	}
	return append(out, points[len(points)-1])
}

// AxisRange returns the y-axis bounds. Zero values are ignored for the
// minimum, so gaps in the data do not pin the floor at zero, but they still
// count toward the maximum. An empty series, or one that is all zeros,
// yields a minimum of 0.
func AxisRange(points []Point) (minY, maxY float64) {
	if len(points) == 0 {
		return 0, 0
	}

	haveMin := false
	maxY = points[0].Y
	for _, p := range points {
		if p.Y > maxY {
			maxY = p.Y
		}
		if p.Y == 0 {
			continue
		}
		if !haveMin || p.Y < minY {
			minY = p.Y
			haveMin = true
		}
	}
	if !haveMin {
		minY = 0
	}
	return minY, maxY
}
