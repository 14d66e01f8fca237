package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/fleetwatch/internal/resample"
)

// Charts are drawn with braille characters. Each cell is a 2x4 dot matrix:
//
//	  Col 0  Col 1
//	Row 0:   ⠁      ⠈
//	Row 1:   ⠂      ⠐
//	Row 2:   ⠄      ⠠
//	Row 3:   ⡀      ⢀
//
// U+2800 is the empty cell; each dot sets one bit.

const brailleBase = '\u2800'

// brailleDots maps [row][col] inside a cell to the dot's bit offset.
var brailleDots = [4][2]uint8{
	{0, 3},
	{1, 4},
	{2, 5},
	{6, 7},
}

// grid is a height x width matrix of braille bit patterns.
type grid [][]rune

func newGrid(width, height int) grid {
	g := make(grid, height)
	for i := range g {
		g[i] = make([]rune, width)
	}
	return g
}

// set lights the dot at dot-column x and dot-level y, where level 0 is the
// bottom of the chart.
func (g grid) set(x, y int) {
	height := len(g)
	row := height - 1 - y/4
	if row < 0 || row >= height {
		return
	}
	col := x / 2
	if col < 0 || col >= len(g[row]) {
		return
	}
	g[row][col] |= 1 << brailleDots[3-y%4][x%2]
}

// normalizeValue maps val into 0-1 given bounds. A flat range sits in the middle.
func normalizeValue(val, minVal, maxVal float64) float64 {
	if maxVal > minVal {
		n := (val - minVal) / (maxVal - minVal)
		if n < 0 {
			return 0
		}
		if n > 1 {
			return 1
		}
		return n
	}
	return 0.5
}

func clampInt(val, maxVal int) int {
	if val < 0 {
		return 0
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// ChartBounds returns the y range a series is drawn against. A positive ref
// (already in the series unit) raises the top so the reference line fits.
func ChartBounds(s resample.Series, ref float64) (lo, hi float64) {
	lo, hi = s.Min, s.Max
	if s.Channel == resample.CPU {
		lo = 0
		if hi < 100 {
			hi = 100
		}
	}
	if ref > hi {
		hi = ref
	}
	return lo, hi
}

// RenderChart draws s as a filled area chart of width x height cells. Points
// are placed by their x offset inside the window and consecutive points are
// joined. ref, when positive, is drawn as a horizontal line in
// ColorReference.
func RenderChart(s resample.Series, ref float64, width, height int, color lipgloss.Color) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	lo, hi := ChartBounds(s, ref)
	dotsW := width * 2
	dotsH := height * 4

	level := func(v float64) int {
		return clampInt(int(normalizeValue(v, lo, hi)*float64(dotsH-1)+0.5), dotsH-1)
	}
	column := func(x float64) int {
		if s.Window <= 0 {
			return dotsW - 1
		}
		return clampInt(int(x/s.Window*float64(dotsW-1)+0.5), dotsW-1)
	}

	data := newGrid(width, height)
	colPeak := make([]float64, width)
	fill := func(x, top int, v float64) {
		for y := 0; y <= top; y++ {
			data.set(x, y)
		}
		if v > colPeak[x/2] {
			colPeak[x/2] = v
		}
	}

	for i, p := range s.Points {
		x1, y1 := column(p.X), level(p.Y)
		if i == 0 {
			fill(x1, y1, p.Y)
			continue
		}
		prev := s.Points[i-1]
		x0, y0 := column(prev.X), level(prev.Y)
		if x1 <= x0 {
			fill(x1, y1, p.Y)
			continue
		}
		for x := x0; x <= x1; x++ {
			t := float64(x-x0) / float64(x1-x0)
			y := y0 + int(float64(y1-y0)*t+0.5)
			fill(x, y, prev.Y+(p.Y-prev.Y)*t)
		}
	}

	refGrid := newGrid(width, height)
	if ref > 0 {
		y := level(ref)
		for x := 0; x < dotsW; x++ {
			refGrid.set(x, y)
		}
	}

	lines := make([]string, height)
	for r := 0; r < height; r++ {
		var b strings.Builder
		for c := 0; c < width; c++ {
			bits := data[r][c]
			cellColor := color
			if s.Channel == resample.CPU {
				cellColor = CPUColor(colPeak[c])
			}
			if bits == 0 && refGrid[r][c] != 0 {
				cellColor = ColorReference
			}
			bits |= refGrid[r][c]
			b.WriteString(lipgloss.NewStyle().Foreground(cellColor).Render(string(brailleBase + bits)))
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

// axisLabel formats a value that is already scaled into u.
func axisLabel(v float64, u resample.Unit) string {
	factor := u.Factor
	if factor == 0 {
		factor = 1
	}
	return resample.FormatIn(v*factor, u)
}
