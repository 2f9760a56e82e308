package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atlasmap-sc/embedview/internal/cache"
	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/data/dataset"
)

// Figure is a Plotly figure: traces, layout and chart options.
type Figure struct {
	Data   []Trace       `json:"data"`
	Layout Layout        `json:"layout"`
	Config PlotlyOptions `json:"config"`
}

// Trace is one scatter trace, one per category and embedding.
type Trace struct {
	X             []float64 `json:"x"`
	Y             []float64 `json:"y"`
	CustomData    [][5]any  `json:"customdata"`
	Mode          string    `json:"mode"`
	Type          string    `json:"type"`
	Name          string    `json:"name"`
	Marker        Marker    `json:"marker"`
	HoverTemplate string    `json:"hovertemplate"`
	ShowLegend    *bool     `json:"showlegend,omitempty"`
	LegendGroup   string    `json:"legendgroup,omitempty"`
	XAxis         string    `json:"xaxis,omitempty"`
	YAxis         string    `json:"yaxis,omitempty"`
	// Visible is "legendonly" for categories hidden by the filter.
	Visible string `json:"visible,omitempty"`
}

// Marker styles a trace's points.
type Marker struct {
	Size    float64     `json:"size"`
	Opacity float64     `json:"opacity"`
	Color   string      `json:"color"`
	Line    *MarkerLine `json:"line,omitempty"`
}

// MarkerLine outlines highlighted points.
type MarkerLine struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

// Layout is the Plotly layout.
type Layout struct {
	Title      Title   `json:"title"`
	Grid       *Grid   `json:"grid,omitempty"`
	XAxis      Axis    `json:"xaxis"`
	YAxis      Axis    `json:"yaxis"`
	XAxis2     *Axis   `json:"xaxis2,omitempty"`
	YAxis2     *Axis   `json:"yaxis2,omitempty"`
	ShowLegend bool    `json:"showlegend"`
	Legend     *Legend `json:"legend,omitempty"`
	Height     int     `json:"height"`
	Margin     Margin  `json:"margin"`
}

type Title struct {
	Text string `json:"text"`
	Font Font   `json:"font"`
}

type Font struct {
	Size int `json:"size"`
}

type Grid struct {
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	Pattern string `json:"pattern"`
}

type Axis struct {
	Title  string      `json:"title"`
	Domain *[2]float64 `json:"domain,omitempty"`
}

type Legend struct {
	Orientation string  `json:"orientation"`
	YAnchor     string  `json:"yanchor"`
	Y           float64 `json:"y"`
	XAnchor     string  `json:"xanchor"`
	X           float64 `json:"x"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// PlotlyOptions is the chart configuration passed to Plotly.newPlot.
type PlotlyOptions struct {
	Responsive             bool     `json:"responsive"`
	DisplayModeBar         bool     `json:"displayModeBar"`
	ModeBarButtonsToRemove []string `json:"modeBarButtonsToRemove"`
	DisplayLogo            bool     `json:"displaylogo"`
}

func (s *ViewService) plotlyOptions() PlotlyOptions {
	deref := func(b *bool, def bool) bool {
		if b == nil {
			return def
		}
		return *b
	}
	buttons := s.plotly.ModeBarButtonsToRemove
	if buttons == nil {
		buttons = []string{}
	}
	return PlotlyOptions{
		Responsive:             deref(s.plotly.Responsive, true),
		DisplayModeBar:         deref(s.plotly.DisplayModeBar, true),
		ModeBarButtonsToRemove: buttons,
		DisplayLogo:            deref(s.plotly.DisplayLogo, false),
	}
}

var (
	leftDomain  = [2]float64{0, 0.48}
	rightDomain = [2]float64{0.52, 1}
	fullDomain  = [2]float64{0, 1}
)

// Figure builds the Plotly figure. "both" places the proposed and original
// embeddings side by side with a shared legend; a single method gets its
// own titled plot. Categories missing from filter stay in the legend but
// are hidden.
func (s *ViewService) Figure(method Method, sel Selection, filter []string) (*Figure, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	return s.buildFigure(sess, method, sel, filter)
}

// FigureJSON returns the encoded figure, served from the query cache when
// possible.
func (s *ViewService) FigureJSON(method Method, sel Selection, filter []string) ([]byte, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}

	cacheKey := cache.FigureKey(s.cacheID(sess), string(method), sel.String(), filter)
	if data, ok := s.cache.GetQuery(cacheKey); ok {
		return data, nil
	}

	fig, err := s.buildFigure(sess, method, sel, filter)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(fig)
	if err != nil {
		return nil, fmt.Errorf("encode figure: %w", err)
	}
	s.cache.SetQuery(cacheKey, data)
	return data, nil
}

func (s *ViewService) buildFigure(sess *Session, method Method, sel Selection, filter []string) (*Figure, error) {
	visible, err := visibleSet(filter)
	if err != nil {
		return nil, err
	}

	fig := &Figure{
		Data:   make([]Trace, 0),
		Config: s.plotlyOptions(),
	}

	if method == MethodBoth {
		for i, m := range []Method{MethodProposed, MethodOriginal} {
			first := i == 0
			for _, tr := range s.traces(sess, m, m.Short(), sel, visible) {
				show := first
				tr.ShowLegend = &show
				tr.LegendGroup = "type_" + tr.LegendGroup
				if first {
					tr.XAxis, tr.YAxis = "x", "y"
				} else {
					tr.XAxis, tr.YAxis = "x2", "y2"
				}
				fig.Data = append(fig.Data, tr)
			}
		}
		fig.Layout = s.comparisonLayout()
		return fig, nil
	}

	for _, tr := range s.traces(sess, method, method.Title(), sel, visible) {
		tr.LegendGroup = ""
		fig.Data = append(fig.Data, tr)
	}
	fig.Layout = s.singleLayout(method, sess.Dataset.Name)
	return fig, nil
}

// traces builds one trace per non-empty category in label order. The
// returned LegendGroup holds the bare label key.
func (s *ViewService) traces(sess *Session, method Method, methodName string, sel Selection, visible map[category.Label]bool) []Trace {
	ds := sess.Dataset
	coords := ds.Proposed
	if method == MethodOriginal {
		coords = ds.Original
	}

	out := make([]Trace, 0, sess.Categories.Len())
	for _, l := range sess.Categories.Set {
		idx := sess.Indices[l]
		if len(idx) == 0 {
			continue
		}

		x := make([]float64, len(idx))
		y := make([]float64, len(idx))
		custom := make([][5]any, len(idx))
		for j, i := range idx {
			x[j] = coords[i][0]
			y[j] = coords[i][1]
			custom[j] = hoverData(ds.CellInfo(ds.CellID(i)))
		}

		name := traceName(ds, l)
		col, _ := sess.Categories.Color(l)
		tr := Trace{
			X:             x,
			Y:             y,
			CustomData:    custom,
			Mode:          "markers",
			Type:          "scatter",
			Name:          name,
			Marker:        s.marker(col.Hex(), sel.Highlights(l)),
			HoverTemplate: hoverTemplate(name, methodName),
			LegendGroup:   l.Key(),
		}
		if !isVisible(visible, l) {
			tr.Visible = "legendonly"
		}
		out = append(out, tr)
	}
	return out
}

func (s *ViewService) marker(color string, highlighted bool) Marker {
	if highlighted {
		return Marker{
			Size:    s.viz.MarkerSize.Highlighted,
			Opacity: s.viz.Opacity.Highlighted,
			Color:   color,
			Line:    &MarkerLine{Width: 2, Color: "#333"},
		}
	}
	return Marker{
		Size:    s.viz.MarkerSize.Normal,
		Opacity: s.viz.Opacity.Normal,
		Color:   color,
	}
}

// traceName labels a trace "<label> - <name>". Unlike CategoryName it says
// "Unknown" rather than "Type <l>" when no mapping is loaded.
func traceName(ds *dataset.Dataset, l category.Label) string {
	name := "Unknown"
	if ds.Mapping.IdxToLabel != nil {
		name = ds.CategoryName(l)
	}
	return fmt.Sprintf("%d - %s", l, name)
}

func hoverData(info dataset.CellInfo) [5]any {
	return [5]any{info.CellID, info.Sample, info.NumGenesExpressed, info.NUMI, info.SizeFactor}
}

func hoverTemplate(name, methodName string) string {
	lines := []string{
		"<b>Cell Type " + name + "</b>",
		"Cell ID: %{customdata[0]}",
		"Sample: %{customdata[1]}",
		"Genes Expressed: %{customdata[2]}",
		"UMI Count: %{customdata[3]}",
		"Size Factor: %{customdata[4]:.3f}",
		"UMAP1: %{x:.3f}",
		"UMAP2: %{y:.3f}",
		"Method: " + methodName,
		"<extra></extra>",
	}
	return strings.Join(lines, "<br>")
}

func (s *ViewService) comparisonLayout() Layout {
	return Layout{
		Title:      Title{Text: "", Font: Font{Size: 20}},
		Grid:       &Grid{Rows: 1, Columns: 2, Pattern: "independent"},
		XAxis:      Axis{Title: "Proposed 1", Domain: &leftDomain},
		YAxis:      Axis{Title: "Proposed 2", Domain: &fullDomain},
		XAxis2:     &Axis{Title: "UMAP 1 (Original)", Domain: &rightDomain},
		YAxis2:     &Axis{Title: "UMAP 2 (Original)", Domain: &fullDomain},
		ShowLegend: true,
		Legend: &Legend{
			Orientation: "h",
			YAnchor:     "bottom",
			Y:           1.02,
			XAnchor:     "right",
			X:           1,
		},
		Height: s.viz.PlotHeight,
		Margin: Margin{L: 50, R: 50, T: 80, B: 50},
	}
}

func (s *ViewService) singleLayout(method Method, datasetName string) Layout {
	return Layout{
		Title:      Title{Text: singleTitle(method, datasetName), Font: Font{Size: 20}},
		XAxis:      Axis{Title: "UMAP 1"},
		YAxis:      Axis{Title: "UMAP 2"},
		ShowLegend: true,
		Height:     s.viz.PlotHeight,
		Margin:     Margin{L: 50, R: 50, T: 80, B: 50},
	}
}

func singleTitle(method Method, datasetName string) string {
	return fmt.Sprintf("%s  - %s Dataset", method.Title(), datasetName)
}
