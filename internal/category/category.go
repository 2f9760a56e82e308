// Package category discovers the categories present in a label vector,
// assigns each one a stable color, and partitions points by category.
package category

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/atlasmap-sc/embedview/pkg/colormap"
)

// ErrInvalidInput wraps colormap.ErrInvalidInput so callers can test either.
var ErrInvalidInput = fmt.Errorf("category: %w", colormap.ErrInvalidInput)

// Label is an integer cell-type identifier, one per data point.
type Label int

// Key returns the string form used by name lookup tables (idx_to_label).
func (l Label) Key() string {
	return strconv.Itoa(int(l))
}

// ParseLabelKey is the inverse of Label.Key.
func ParseLabelKey(key string) (Label, error) {
	v, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("%w: label %q is not an integer", ErrInvalidInput, key)
	}
	return Label(v), nil
}

// ColorMap maps each category to its color.
type ColorMap map[Label]colormap.Color

// Hex returns the color map keyed by Label.Key with "#rrggbb" values.
func (m ColorMap) Hex() map[string]string {
	out := make(map[string]string, len(m))
	for l, c := range m {
		out[l.Key()] = c.Hex()
	}
	return out
}

// PaletteFunc returns the palette to use for count categories.
type PaletteFunc func(count int) (colormap.Palette, error)

// FixedPalette always returns a copy of p, regardless of the category
// count. Colors repeat once the category count exceeds len(p).
func FixedPalette(p colormap.Palette) PaletteFunc {
	return func(int) (colormap.Palette, error) {
		if len(p) == 0 {
			return nil, fmt.Errorf("%w: empty palette", ErrInvalidInput)
		}
		return p.Clone(), nil
	}
}

// Categories is the result of processing a label vector.
type Categories struct {
	// Set holds the distinct labels in ascending order.
	Set []Label
	// Colors has exactly one entry per member of Set.
	Colors ColorMap
	// Palette is the palette the colors were drawn from.
	Palette colormap.Palette
}

// Len returns the number of distinct categories.
func (c *Categories) Len() int {
	return len(c.Set)
}

// Color returns the color of l.
func (c *Categories) Color(l Label) (colormap.Color, bool) {
	col, ok := c.Colors[l]
	return col, ok
}

// Processor builds Categories from label vectors.
type Processor struct {
	// Palette selects the palette for a category count. Nil means
	// colormap.ForCount (tiered discrete palettes, gradient beyond 64).
	Palette PaletteFunc
}

// Process runs the default Processor.
func Process(labels []Label) (*Categories, error) {
	return Processor{}.Process(labels)
}

// Process discovers the sorted set of distinct labels and assigns
// palette[i mod len(palette)] to the i-th one. An empty label vector yields
// empty results. The input is not modified.
func (p Processor) Process(labels []Label) (*Categories, error) {
	set := Unique(labels)
	out := &Categories{
		Set:    set,
		Colors: make(ColorMap, len(set)),
	}
	if len(set) == 0 {
		return out, nil
	}

	pick := p.Palette
	if pick == nil {
		pick = colormap.ForCount
	}
	palette, err := pick(len(set))
	if err != nil {
		return nil, fmt.Errorf("select palette for %d categories: %w", len(set), err)
	}
	if len(palette) == 0 {
		return nil, fmt.Errorf("%w: empty palette for %d categories", ErrInvalidInput, len(set))
	}

	for i, l := range set {
		out.Colors[l] = palette.AtIndex(i)
	}
	out.Palette = palette
	return out, nil
}

// Unique returns the distinct labels in ascending order.
func Unique(labels []Label) []Label {
	set := make([]Label, len(labels))
	copy(set, labels)
	slices.Sort(set)
	return slices.Compact(set)
}

// IndicesOf returns every position i where labels[i] == target, ascending.
// The result is empty (never nil) when target is absent.
func IndicesOf(labels []Label, target Label) []int {
	out := make([]int, 0)
	for i, l := range labels {
		if l == target {
			out = append(out, i)
		}
	}
	return out
}

// Partition groups point indices by label in a single pass. Every member of
// the returned map holds ascending indices, identical to IndicesOf.
func Partition(labels []Label) map[Label][]int {
	out := make(map[Label][]int)
	for i, l := range labels {
		out[l] = append(out[l], i)
	}
	return out
}
