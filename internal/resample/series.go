package resample

import (
	"time"

	"github.com/rileyhilliard/fleetwatch/internal/store"
)

// Options configures Build.
type Options struct {
	// TargetPoints caps the downsampled length.
	TargetPoints int
	// Steps enables interpolation when greater than 1.
	Steps int
}

// DefaultOptions downsamples to DefaultTargetPoints without interpolation.
func DefaultOptions() Options {
	return Options{TargetPoints: DefaultTargetPoints}
}

// Series is a chart-ready channel. Points, Min and Max are already scaled
// into Unit; RawMax keeps the unscaled peak.
type Series struct {
	Channel Channel
	Points  []Point
	Min     float64
	Max     float64
	RawMax  float64
	Unit    Unit
	// Window is the x-axis span in seconds, and XUnit its display unit.
	Window float64
	XUnit  Unit
}

// Empty reports whether there is nothing to plot.
func (s Series) Empty() bool {
	return len(s.Points) == 0
}

// Build runs the full pipeline for one channel over [now-window, now].
func Build(samples []store.Sample, ch Channel, now int64, window time.Duration, opts Options) Series {
	points := Filter(samples, ch, now, window)
	points = Downsample(points, opts.TargetPoints)
	if opts.Steps > 1 {
		points = Interpolate(points, opts.Steps)
	}

	minY, maxY := AxisRange(points)
	unit := SelectUnit(maxY, ch.Units())

	scaled := make([]Point, len(points))
	for i, p := range points {
		scaled[i] = Point{X: p.X, Y: unit.Scale(p.Y)}
	}

	span := window.Seconds()
	return Series{
		Channel: ch,
		Points:  scaled,
		Min:     unit.Scale(minY),
		Max:     unit.Scale(maxY),
		RawMax:  maxY,
		Unit:    unit,
		Window:  span,
		XUnit:   TimeUnit(span),
	}
}

// BuildAll builds every channel from the same rows.
func BuildAll(samples []store.Sample, now int64, window time.Duration, opts Options) []Series {
	out := make([]Series, 0, len(Channels))
	for _, ch := range Channels {
		out = append(out, Build(samples, ch, now, window, opts))
	}
	return out
}
