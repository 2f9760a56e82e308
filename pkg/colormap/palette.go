package colormap

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a palette is requested for a count the
// palette cannot serve, or when a color cannot be parsed.
var ErrInvalidInput = errors.New("invalid input")

// MaxDiscreteCategories is the largest category count served by a discrete
// palette. Larger counts fall back to Generate.
const MaxDiscreteCategories = 64

// Palette is an ordered list of colors.
type Palette []Color

// AtIndex returns color at index i (wraps around).
func (p Palette) AtIndex(i int) Color {
	n := len(p)
	return p[((i%n)+n)%n]
}

// Clone returns a copy that can be modified freely.
func (p Palette) Clone() Palette {
	out := make(Palette, len(p))
	copy(out, p)
	return out
}

// Hex returns the palette as "#rrggbb" strings.
func (p Palette) Hex() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.Hex()
	}
	return out
}

// ParsePalette parses a list of hex colors.
func ParsePalette(hex []string) (Palette, error) {
	out := make(Palette, 0, len(hex))
	for _, h := range hex {
		c, err := ParseHex(h)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func mustPalette(hex ...string) Palette {
	p, err := ParsePalette(hex)
	if err != nil {
		panic(err)
	}
	return p
}

// Tab10 is used for up to 10 categories.
var Tab10 = mustPalette(
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
)

// Tab20 is used for 11 to 20 categories.
var Tab20 = mustPalette(
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
	"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
	"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
	"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
)

// Tab20b is used for 21 to 40 categories.
var Tab20b = mustPalette(
	"#393b79", "#5254a3", "#6b6ecf", "#9c9ede", "#637939",
	"#8ca252", "#b5cf6b", "#cedb9c", "#8c6d31", "#bd9e39",
	"#e7ba52", "#e7cb94", "#843c39", "#ad494a", "#d6616b",
	"#e7969c", "#7b4173", "#a55194", "#ce6dbd", "#de9ed6",
)

// Tab20c is used for 41 to 64 categories.
var Tab20c = mustPalette(
	"#3182bd", "#6baed6", "#9ecae1", "#c6dbef", "#e6550d",
	"#fd8d3c", "#fdae6b", "#fdd0a2", "#31a354", "#74c476",
	"#a1d99b", "#c7e9c0", "#756bb1", "#9e9ac8", "#bcbddc",
	"#dadaeb", "#636363", "#969696", "#bdbdbd", "#d9d9d9",
)

// Categorical is the fixed 20-color palette used when dynamic palette
// selection is turned off.
var Categorical = mustPalette(
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	"#aec7e8", "#ffbb78", "#98df8a", "#ff9896", "#c5b0d5",
	"#c49c94", "#f7b6d2", "#c7c7c7", "#dbdb8d", "#9edae5",
)

type tier struct {
	name    string
	max     int
	palette Palette
}

// Thresholds are inclusive upper bounds; first match wins.
var tiers = []tier{
	{"tab10", 10, Tab10},
	{"tab20", 20, Tab20},
	{"tab20b", 40, Tab20b},
	{"tab20c", MaxDiscreteCategories, Tab20c},
}

// SelectDiscrete returns a copy of the discrete palette for count
// categories. It is only defined for 1 <= count <= MaxDiscreteCategories.
func SelectDiscrete(count int) (Palette, error) {
	_, p, err := selectTier(count)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// TierName returns the name of the palette ForCount picks for count
// categories ("tab10", "tab20", "tab20b", "tab20c" or "viridis").
func TierName(count int) (string, error) {
	if count > MaxDiscreteCategories {
		return "viridis", nil
	}
	name, _, err := selectTier(count)
	return name, err
}

func selectTier(count int) (string, Palette, error) {
	if count < 1 || count > MaxDiscreteCategories {
		return "", nil, fmt.Errorf("%w: discrete palette requested for %d categories (want 1..%d)",
			ErrInvalidInput, count, MaxDiscreteCategories)
	}
	for _, t := range tiers {
		if count <= t.max {
			return t.name, t.palette, nil
		}
	}
	// unreachable: the last tier covers MaxDiscreteCategories
	return "", nil, fmt.Errorf("%w: no palette for %d categories", ErrInvalidInput, count)
}

// Generate returns count colors sampled evenly along Viridis. The first
// color is the first stop and, for count > 1, the last color is the last
// stop.
func Generate(count int) (Palette, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: continuous palette requested for %d colors", ErrInvalidInput, count)
	}
	if count == 1 {
		return Palette{Viridis.stops[0]}, nil
	}

	out := make(Palette, count)
	for i := range out {
		out[i] = Viridis.At(float64(i) / float64(count-1))
	}
	return out, nil
}

// ForCount returns the palette to use for count categories: a discrete
// tier up to MaxDiscreteCategories, a generated gradient beyond.
func ForCount(count int) (Palette, error) {
	if count > MaxDiscreteCategories {
		return Generate(count)
	}
	return SelectDiscrete(count)
}
