// Package colormap provides color schemes for visualization.
package colormap

import "math"

// LinearColormap maps normalized values [0, 1] onto evenly spaced color
// stops, interpolating between neighbours.
type LinearColormap struct {
	stops Palette
}

// NewLinearColormap returns a colormap over the given stops.
func NewLinearColormap(stops Palette) LinearColormap {
	return LinearColormap{stops: stops}
}

// Stops returns a copy of the colormap's anchor colors.
func (c LinearColormap) Stops() Palette {
	return c.stops.Clone()
}

// At returns the color at position t (0-1).
func (c LinearColormap) At(t float64) Color {
	if t <= 0 || math.IsNaN(t) {
		return c.stops[0]
	}
	if t >= 1 {
		return c.stops[len(c.stops)-1]
	}

	idx := t * float64(len(c.stops)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1
	if upper >= len(c.stops) {
		upper = len(c.stops) - 1
	}
	if lower == upper {
		return c.stops[lower]
	}

	frac := idx - float64(lower)
	return Interpolate(c.stops[lower], c.stops[upper], frac)
}

// Viridis is the continuous reference colormap (matplotlib viridis, 10 stops).
// It is only ever sampled, never assigned index-wise beyond its own stops.
var Viridis = NewLinearColormap(Palette{
	MustParseHex("#440154"),
	MustParseHex("#482878"),
	MustParseHex("#3e4989"),
	MustParseHex("#31688e"),
	MustParseHex("#26828e"),
	MustParseHex("#1f9e89"),
	MustParseHex("#35b779"),
	MustParseHex("#6ece58"),
	MustParseHex("#b5de2b"),
	MustParseHex("#fde725"),
})
