// Package render draws embedding scatter plots using fogleman/gg.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/atlasmap-sc/embedview/internal/data/dataset"
	"github.com/atlasmap-sc/embedview/pkg/colormap"
	"github.com/fogleman/gg"
)

// ErrInvalidSize is returned for non-positive or oversized canvases.
var ErrInvalidSize = errors.New("invalid plot size")

// Style holds marker appearance. Sizes are marker diameters in pixels.
type Style struct {
	NormalSize       float64
	HighlightSize    float64
	NormalOpacity    float64
	HighlightOpacity float64
	OutlineColor     colormap.Color
	OutlineWidth     float64
}

// DefaultStyle matches the viewer's marker defaults.
func DefaultStyle() Style {
	return Style{
		NormalSize:       3,
		HighlightSize:    8,
		NormalOpacity:    0.4,
		HighlightOpacity: 1.0,
		OutlineColor:     colormap.Color{R: 0x33, G: 0x33, B: 0x33},
		OutlineWidth:     2,
	}
}

// Config contains renderer configuration.
type Config struct {
	MaxWidth  int
	MaxHeight int
	Style     Style
}

// Series is one category's points in one panel.
type Series struct {
	Points      []dataset.Point
	Color       colormap.Color
	Highlighted bool
}

// Panel is one embedding drawn side by side with the others.
type Panel struct {
	Title  string
	Series []Series
}

// PlotRenderer renders scatter plots to PNG.
type PlotRenderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewPlotRenderer creates a new plot renderer.
func NewPlotRenderer(cfg Config) *PlotRenderer {
	return &PlotRenderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

const (
	panelGap   = 0.04 // fraction of width between panels
	marginPx   = 24.0
	titleSpace = 18.0
)

// RenderScatter draws panels left to right on a white canvas. Normal
// points are drawn before highlighted ones so highlights stay on top.
func (r *PlotRenderer) RenderScatter(panels []Panel, width, height int) ([]byte, error) {
	if err := r.checkSize(width, height); err != nil {
		return nil, err
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	if len(panels) == 0 {
		return r.encodeContext(dc)
	}

	n := float64(len(panels))
	w := float64(width)
	panelWidth := w * (1 - panelGap*(n-1)) / n

	for i, p := range panels {
		x0 := float64(i) * (panelWidth + w*panelGap)
		r.drawPanel(dc, p, x0, 0, panelWidth, float64(height))
	}

	return r.encodeContext(dc)
}

func (r *PlotRenderer) drawPanel(dc *gg.Context, p Panel, x0, y0, w, h float64) {
	top := y0 + marginPx
	if p.Title != "" {
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(p.Title, x0+w/2, y0+marginPx/2+titleSpace/2, 0.5, 0.5)
		top += titleSpace
	}

	minX, minY, maxX, maxY, ok := bounds(p.Series)
	if !ok {
		return
	}

	// Pad the data range so edge points are not clipped.
	padX := (maxX - minX) * 0.05
	padY := (maxY - minY) * 0.05
	if padX == 0 {
		padX = 1
	}
	if padY == 0 {
		padY = 1
	}
	minX, maxX = minX-padX, maxX+padX
	minY, maxY = minY-padY, maxY+padY

	left := x0 + marginPx
	plotW := w - 2*marginPx
	plotH := y0 + h - marginPx - top
	if plotW <= 0 || plotH <= 0 {
		return
	}

	project := func(pt dataset.Point) (float64, float64) {
		px := left + (pt[0]-minX)/(maxX-minX)*plotW
		// Screen y grows downward.
		py := top + (maxY-pt[1])/(maxY-minY)*plotH
		return px, py
	}

	style := r.config.Style
	for _, highlighted := range []bool{false, true} {
		for _, s := range p.Series {
			if s.Highlighted != highlighted {
				continue
			}
			size, opacity := style.NormalSize, style.NormalOpacity
			if highlighted {
				size, opacity = style.HighlightSize, style.HighlightOpacity
			}
			radius := math.Max(size/2, 0.5)

			for _, pt := range s.Points {
				px, py := project(pt)
				dc.DrawCircle(px, py, radius)
				dc.SetRGBA255(int(s.Color.R), int(s.Color.G), int(s.Color.B), int(opacity*255+0.5))
				if highlighted && style.OutlineWidth > 0 {
					dc.FillPreserve()
					dc.SetColor(style.OutlineColor)
					dc.SetLineWidth(style.OutlineWidth)
					dc.Stroke()
				} else {
					dc.Fill()
				}
			}
		}
	}
}

// bounds returns the data extent of all finite points.
func bounds(series []Series) (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, s := range series {
		for _, pt := range s.Points {
			if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
				continue
			}
			minX = math.Min(minX, pt[0])
			maxX = math.Max(maxX, pt[0])
			minY = math.Min(minY, pt[1])
			maxY = math.Max(maxY, pt[1])
			ok = true
		}
	}
	return minX, minY, maxX, maxY, ok
}

func (r *PlotRenderer) checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if (r.config.MaxWidth > 0 && width > r.config.MaxWidth) || (r.config.MaxHeight > 0 && height > r.config.MaxHeight) {
		return fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrInvalidSize, width, height, r.config.MaxWidth, r.config.MaxHeight)
	}
	return nil
}

func (r *PlotRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	return r.encodeImage(dc.Image())
}

func (r *PlotRenderer) encodeImage(img image.Image) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// CreateEmpty creates a blank white plot, used when nothing is selected.
func (r *PlotRenderer) CreateEmpty(width, height int) ([]byte, error) {
	if err := r.checkSize(width, height); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i++ {
		img.Pix[i] = 255
	}
	return r.encodeImage(img)
}
