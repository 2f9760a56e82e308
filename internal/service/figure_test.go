package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/config"
	"github.com/atlasmap-sc/embedview/internal/data/dataset"
	"github.com/atlasmap-sc/embedview/internal/render"
)

func TestFigure_Both(t *testing.T) {
	svc := newTestService(t, testDataset(), config.PaletteConfig{Mode: config.PaletteDynamic})

	fig, err := svc.Figure(MethodBoth, Selection{Label: 3}, nil)
	if err != nil {
		t.Fatalf("Figure: %v", err)
	}

	// Three categories per panel.
	if len(fig.Data) != 6 {
		t.Fatalf("expected 6 traces, got %d", len(fig.Data))
	}
	for i, tr := range fig.Data {
		first := i < 3
		if tr.ShowLegend == nil || *tr.ShowLegend != first {
			t.Errorf("trace %d: unexpected showlegend", i)
		}
		wantAxis := "x"
		if !first {
			wantAxis = "x2"
		}
		if tr.XAxis != wantAxis {
			t.Errorf("trace %d: expected axis %s, got %s", i, wantAxis, tr.XAxis)
		}
	}

	glia := fig.Data[2]
	if glia.Name != "3 - glia" || glia.LegendGroup != "type_3" {
		t.Fatalf("unexpected trace: %s %s", glia.Name, glia.LegendGroup)
	}
	if glia.Marker.Size != 8 || glia.Marker.Opacity != 1 || glia.Marker.Line == nil || glia.Marker.Line.Color != "#333" {
		t.Fatalf("expected highlighted marker, got %+v", glia.Marker)
	}
	if len(glia.X) != 3 || glia.X[1] != 2 {
		t.Fatalf("unexpected x values: %v", glia.X)
	}
	if !strings.Contains(glia.HoverTemplate, "Method: P") {
		t.Fatalf("expected short method name in hover: %s", glia.HoverTemplate)
	}
	if !strings.Contains(fig.Data[5].HoverTemplate, "Method: O") || fig.Data[5].Y[0] != 1 {
		t.Fatalf("unexpected original trace: %+v", fig.Data[5])
	}

	neuron := fig.Data[0]
	if neuron.Marker.Size != 3 || neuron.Marker.Opacity != 0.4 || neuron.Marker.Line != nil {
		t.Fatalf("expected normal marker, got %+v", neuron.Marker)
	}

	if fig.Layout.XAxis2 == nil || fig.Layout.XAxis.Domain[1] != 0.48 || fig.Layout.XAxis2.Domain[0] != 0.52 {
		t.Fatalf("unexpected comparison layout: %+v", fig.Layout)
	}
	if fig.Config.DisplayLogo || len(fig.Config.ModeBarButtonsToRemove) != 3 {
		t.Fatalf("unexpected plotly options: %+v", fig.Config)
	}
}

func TestFigure_Single(t *testing.T) {
	svc := newTestService(t, testDataset(), config.PaletteConfig{Mode: config.PaletteDynamic})

	fig, err := svc.Figure(MethodOriginal, SelectAll, nil)
	if err != nil {
		t.Fatalf("Figure: %v", err)
	}
	if len(fig.Data) != 3 {
		t.Fatalf("expected 3 traces, got %d", len(fig.Data))
	}
	if fig.Layout.Title.Text != "Original  - Test Dataset" {
		t.Fatalf("unexpected title %q", fig.Layout.Title.Text)
	}
	if fig.Layout.XAxis2 != nil || fig.Layout.Grid != nil {
		t.Fatal("expected a single-panel layout")
	}
	for _, tr := range fig.Data {
		if tr.ShowLegend != nil || tr.LegendGroup != "" || tr.XAxis != "" {
			t.Fatalf("unexpected comparison fields on single trace: %+v", tr)
		}
		if tr.Marker.Line != nil {
			t.Fatal("expected nothing highlighted")
		}
	}
}

func TestFigure_CustomData(t *testing.T) {
	svc := newTestService(t, testDataset(), config.PaletteConfig{Mode: config.PaletteDynamic})

	data, err := svc.FigureJSON(MethodProposed, SelectAll, nil)
	if err != nil {
		t.Fatalf("FigureJSON: %v", err)
	}

	var decoded struct {
		Data []struct {
			Name       string              `json:"name"`
			CustomData [][]json.RawMessage `json:"customdata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid figure json: %v", err)
	}

	glia := decoded.Data[2]
	if glia.Name != "3 - glia" || len(glia.CustomData) != 3 {
		t.Fatalf("unexpected trace: %+v", glia)
	}
	// Cell "a" has a detailed record; "c" falls back.
	if string(glia.CustomData[0][1]) != `"s1"` || string(glia.CustomData[0][3]) != "20" {
		t.Fatalf("unexpected detailed customdata: %s", glia.CustomData[0])
	}
	if string(glia.CustomData[1][0]) != `"c"` || string(glia.CustomData[1][1]) != `"Unknown"` || string(glia.CustomData[1][4]) != `"N/A"` {
		t.Fatalf("unexpected fallback customdata: %s", glia.CustomData[1])
	}

	cached, err := svc.FigureJSON(MethodProposed, SelectAll, nil)
	if err != nil || !bytes.Equal(cached, data) {
		t.Fatalf("expected cached figure, got %v", err)
	}
}

func TestFigure_Filter(t *testing.T) {
	svc := newTestService(t, testDataset(), config.PaletteConfig{Mode: config.PaletteDynamic})

	fig, err := svc.Figure(MethodProposed, SelectAll, []string{"2"})
	if err != nil {
		t.Fatalf("Figure: %v", err)
	}
	for _, tr := range fig.Data {
		hidden := tr.Visible == "legendonly"
		if strings.HasPrefix(tr.Name, "2 ") == hidden {
			t.Errorf("trace %s: unexpected visibility %q", tr.Name, tr.Visible)
		}
	}

	if _, err := svc.Figure(MethodProposed, SelectAll, []string{"glia"}); !errors.Is(err, category.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFigure_NamesWithoutMapping(t *testing.T) {
	ds := testDataset()
	ds.Mapping = dataset.LabelMapping{}
	svc := newTestService(t, ds, config.PaletteConfig{Mode: config.PaletteDynamic})

	fig, err := svc.Figure(MethodProposed, SelectAll, nil)
	if err != nil {
		t.Fatalf("Figure: %v", err)
	}
	want := []string{"1 - Unknown", "2 - Unknown", "3 - Unknown"}
	for i, tr := range fig.Data {
		if tr.Name != want[i] {
			t.Errorf("trace %d: expected name %q, got %q", i, want[i], tr.Name)
		}
		if !strings.Contains(tr.HoverTemplate, "<b>Cell Type "+want[i]+"</b>") {
			t.Errorf("trace %d: unexpected hover title: %s", i, tr.HoverTemplate)
		}
	}

	// The category list keeps the "Type <l>" fallback.
	cats, err := svc.Categories()
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if cats[0].Name != "Type 1" {
		t.Errorf("expected category name 'Type 1', got %q", cats[0].Name)
	}
}

func TestPlot(t *testing.T) {
	svc := newTestService(t, testDataset(), config.PaletteConfig{Mode: config.PaletteDynamic})

	data, err := svc.Plot(MethodBoth, Selection{Label: 1}, nil, 0, 0)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid png: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Fatalf("expected the configured size, got %v", img.Bounds())
	}

	again, err := svc.Plot(MethodBoth, Selection{Label: 1}, nil, 200, 100)
	if err != nil || !bytes.Equal(again, data) {
		t.Fatalf("expected the cached plot, got %v", err)
	}

	if _, err := svc.Plot(MethodProposed, SelectAll, nil, 5000, 100); !errors.Is(err, render.ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	if _, err := svc.Plot(MethodProposed, SelectAll, []string{"x"}, 100, 100); !errors.Is(err, category.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
