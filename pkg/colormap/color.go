package colormap

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an opaque 24-bit RGB color. Its canonical text form is "#rrggbb".
type Color struct {
	R, G, B uint8
}

// ParseHex parses "#rrggbb" (or the short "#rgb" form) into a Color.
func ParseHex(s string) (Color, error) {
	if (len(s) != 7 && len(s) != 4) || s[0] != '#' {
		return Color{}, fmt.Errorf("%w: color %q is not #rrggbb", ErrInvalidInput, s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("%w: color %q: %v", ErrInvalidInput, s, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b}, nil
}

// MustParseHex is like ParseHex but panics on malformed input.
// It is meant for the palette tables below.
func MustParseHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the lowercase "#rrggbb" form.
func (c Color) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}.Hex()
}

func (c Color) String() string {
	return c.Hex()
}

// RGBA implements image/color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	return r, g, b, 0xffff
}

// Interpolate blends a towards b by factor in RGB space. Each channel is
// computed as round(a + (b-a)*factor) and clamped to [0, 255]. The factor is
// clamped to [0, 1]; NaN counts as 0.
func Interpolate(a, b Color, factor float64) Color {
	if math.IsNaN(factor) || factor < 0 {
		factor = 0
	} else if factor > 1 {
		factor = 1
	}
	return Color{
		R: lerpChannel(a.R, b.R, factor),
		G: lerpChannel(a.G, b.G, factor),
		B: lerpChannel(a.B, b.B, factor),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	v := math.Floor(float64(a) + (float64(b)-float64(a))*t + 0.5)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
