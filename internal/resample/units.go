package resample

import (
	"fmt"
	"strconv"
)

// Unit is a display unit. Factor is how many base units one of it holds.
type Unit struct {
	Name   string
	Factor float64
}

// Scale converts a raw value into this unit.
func (u Unit) Scale(v float64) float64 {
	if u.Factor == 0 {
		return v
	}
	return v / u.Factor
}

// ByteUnits are binary byte sizes, smallest first.
var ByteUnits = []Unit{
	{Name: "B", Factor: 1},
	{Name: "KiB", Factor: 1 << 10},
	{Name: "MiB", Factor: 1 << 20},
	{Name: "GiB", Factor: 1 << 30},
	{Name: "TiB", Factor: 1 << 40},
	{Name: "PiB", Factor: 1 << 50},
}

// TimeUnits are durations in seconds, smallest first.
var TimeUnits = []Unit{
	{Name: "s", Factor: 1},
	{Name: "min", Factor: 60},
	{Name: "h", Factor: 60 * 60},
	{Name: "d", Factor: 24 * 60 * 60},
	{Name: "w", Factor: 7 * 24 * 60 * 60},
	{Name: "y", Factor: 365 * 24 * 60 * 60},
	{Name: "decade", Factor: 10 * 365 * 24 * 60 * 60},
}

// PercentUnit labels values that are already percentages.
var PercentUnit = Unit{Name: "%", Factor: 1}

// SelectUnit walks the table while peak, expressed in the current unit,
// reaches the next unit's size. It stops at the last entry. An empty table
// yields PercentUnit.
func SelectUnit(peak float64, units []Unit) Unit {
	if len(units) == 0 {
		return PercentUnit
	}
	if peak < 0 {
		peak = -peak
	}
	i := 0
	for i+1 < len(units) && peak >= units[i+1].Factor {
		i++
	}
	return units[i]
}

// ByteUnit picks the unit for a byte quantity.
func ByteUnit(peak float64) Unit { return SelectUnit(peak, ByteUnits) }

// TimeUnit picks the unit for a span in seconds.
func TimeUnit(seconds float64) Unit { return SelectUnit(seconds, TimeUnits) }

// Format renders v in the unit chosen for v itself, e.g. "1.5 GiB".
func Format(v float64, units []Unit) string {
	u := SelectUnit(v, units)
	return FormatIn(v, u)
}

// FormatIn renders raw value v scaled to u.
func FormatIn(v float64, u Unit) string {
	scaled := u.Scale(v)
	prec := 1
	if scaled == float64(int64(scaled)) {
		prec = 0
	}
	num := strconv.FormatFloat(scaled, 'f', prec, 64)
	if u.Name == "%" {
		return num + "%"
	}
	return fmt.Sprintf("%s %s", num, u.Name)
}
