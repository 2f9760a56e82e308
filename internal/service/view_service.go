// Package service provides business logic for the embedding viewer.
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlasmap-sc/embedview/internal/cache"
	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/config"
	"github.com/atlasmap-sc/embedview/internal/data/dataset"
	"github.com/atlasmap-sc/embedview/internal/render"
	"github.com/atlasmap-sc/embedview/pkg/colormap"
)

// Loader reads a dataset from its source files.
type Loader interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
}

// ViewServiceConfig contains view service configuration.
type ViewServiceConfig struct {
	DatasetID     string
	Loader        Loader
	Palette       config.PaletteConfig
	Cache         *cache.Manager
	Renderer      *render.PlotRenderer
	Visualization config.VisualizationConfig
	Plotly        config.PlotlyConfig
	PlotWidth     int
	PlotHeight    int
}

// Session is one loaded dataset together with its processed categories.
// A session never changes; Reload replaces it.
type Session struct {
	Dataset    *dataset.Dataset
	Categories *category.Categories
	// Counts holds one row per category in ascending label order.
	Counts []category.Count
	// Indices maps each category to its point positions.
	Indices  map[category.Label][]int
	Palette  string
	LoadedAt time.Time

	cellIndex  map[string]int
	generation uint64
}

// ViewService serves categories, colors, statistics, figures and plots for
// one dataset.
type ViewService struct {
	datasetID string
	loader    Loader
	processor category.Processor
	palette   config.PaletteConfig
	cache     *cache.Manager
	renderer  *render.PlotRenderer
	viz       config.VisualizationConfig
	plotly    config.PlotlyConfig
	width     int
	height    int

	reloadMu   sync.Mutex
	session    atomic.Pointer[Session]
	generation atomic.Uint64
}

// NewViewService creates a new view service. Call Reload before serving.
func NewViewService(cfg ViewServiceConfig) (*ViewService, error) {
	datasetID := cfg.DatasetID
	if datasetID == "" {
		datasetID = "default"
	}

	pick, err := PaletteFunc(cfg.Palette)
	if err != nil {
		return nil, err
	}

	width, height := cfg.PlotWidth, cfg.PlotHeight
	if width <= 0 {
		width = 1200
	}
	if height <= 0 {
		height = 1000
	}

	return &ViewService{
		datasetID: datasetID,
		loader:    cfg.Loader,
		processor: category.Processor{Palette: pick},
		palette:   cfg.Palette,
		cache:     cfg.Cache,
		renderer:  cfg.Renderer,
		viz:       cfg.Visualization,
		plotly:    cfg.Plotly,
		width:     width,
		height:    height,
	}, nil
}

// PaletteFunc returns the palette selector for cfg. Dynamic mode returns
// nil, which makes the processor pick a palette by category count.
func PaletteFunc(cfg config.PaletteConfig) (category.PaletteFunc, error) {
	if cfg.Mode != config.PaletteFixed {
		return nil, nil
	}
	if len(cfg.Colors) == 0 {
		return category.FixedPalette(colormap.Categorical), nil
	}
	p, err := colormap.ParsePalette(cfg.Colors)
	if err != nil {
		return nil, fmt.Errorf("palette.colors: %w", err)
	}
	return category.FixedPalette(p), nil
}

// DatasetID returns the dataset this service serves.
func (s *ViewService) DatasetID() string {
	return s.datasetID
}

// Reload reads the dataset files, processes the labels and swaps in the new
// session. Concurrent readers keep the previous session until the swap.
func (s *ViewService) Reload(ctx context.Context) (*Session, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", s.datasetID, err)
	}

	cats, err := s.processor.Process(ds.Labels)
	if err != nil {
		return nil, fmt.Errorf("process categories for %s: %w", s.datasetID, err)
	}

	sess := &Session{
		Dataset:    ds,
		Categories: cats,
		Counts:     category.Distribution(ds.Labels),
		Indices:    category.Partition(ds.Labels),
		Palette:    s.paletteName(cats.Len()),
		LoadedAt:   time.Now(),
		cellIndex:  make(map[string]int, ds.Len()),
		generation: s.generation.Add(1),
	}
	for i := 0; i < ds.Len(); i++ {
		sess.cellIndex[ds.CellID(i)] = i
	}
	s.session.Store(sess)

	log.Printf("  [%s] Loaded %d points, %d categories (%s palette) in %v",
		s.datasetID, ds.Len(), cats.Len(), sess.Palette, time.Since(start).Round(time.Millisecond))
	return sess, nil
}

func (s *ViewService) paletteName(count int) string {
	if s.palette.Mode == config.PaletteFixed {
		return config.PaletteFixed
	}
	if count == 0 {
		return "none"
	}
	name, err := colormap.TierName(count)
	if err != nil {
		return "none"
	}
	return name
}

// Session returns the current session.
func (s *ViewService) Session() (*Session, error) {
	sess := s.session.Load()
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, s.datasetID)
	}
	return sess, nil
}

// cacheID scopes cache keys to the current session so a reload never
// serves stale entries.
func (s *ViewService) cacheID(sess *Session) string {
	return fmt.Sprintf("%s@%d", s.datasetID, sess.generation)
}

// Metadata describes the loaded dataset and the viewer defaults.
type Metadata struct {
	DatasetID       string        `json:"dataset_id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	NumPoints       int           `json:"num_points"`
	NumCategories   int           `json:"num_categories"`
	Palette         string        `json:"palette"`
	DetailedCells   bool          `json:"detailed_cells"`
	LoadedAt        time.Time     `json:"loaded_at"`
	DefaultMethod   string        `json:"default_method"`
	DefaultCellType string        `json:"default_cell_type"`
	PlotHeight      int           `json:"plot_height"`
	Plotly          PlotlyOptions `json:"plotly"`
}

// Metadata returns dataset and viewer metadata.
func (s *ViewService) Metadata() (*Metadata, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	ds := sess.Dataset
	return &Metadata{
		DatasetID:       s.datasetID,
		Name:            ds.Name,
		Description:     ds.Description,
		NumPoints:       ds.Len(),
		NumCategories:   sess.Categories.Len(),
		Palette:         sess.Palette,
		DetailedCells:   ds.Detailed != nil,
		LoadedAt:        sess.LoadedAt,
		DefaultMethod:   s.viz.DefaultMethod,
		DefaultCellType: s.viz.DefaultCellType,
		PlotHeight:      s.viz.PlotHeight,
		Plotly:          s.plotlyOptions(),
	}, nil
}

// CategoryItem is one entry of the cell type dropdown.
type CategoryItem struct {
	Label   int    `json:"label"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Display string `json:"display"`
	Color   string `json:"color"`
	Count   int    `json:"count"`
}

// Categories returns the dropdown items in ascending label order.
func (s *ViewService) Categories() ([]CategoryItem, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}

	items := make([]CategoryItem, len(sess.Categories.Set))
	for i, l := range sess.Categories.Set {
		name := sess.Dataset.CategoryName(l)
		col, _ := sess.Categories.Color(l)
		items[i] = CategoryItem{
			Label:   int(l),
			Key:     l.Key(),
			Name:    name,
			Display: fmt.Sprintf("%d - %s", l, name),
			Color:   col.Hex(),
			Count:   len(sess.Indices[l]),
		}
	}
	return items, nil
}

// Colors returns the color map keyed by label.
func (s *ViewService) Colors() (map[string]string, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	return sess.Categories.Colors.Hex(), nil
}

// StatsRow is the count of one category.
type StatsRow struct {
	Label      int     `json:"label"`
	Name       string  `json:"name"`
	Color      string  `json:"color,omitempty"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Stats summarizes the dataset or one selected category.
type Stats struct {
	Dataset      string     `json:"dataset"`
	CellType     string     `json:"cell_type"`
	TotalCells   int        `json:"total_cells"`
	CellTypes    int        `json:"cell_types"`
	Distribution []StatsRow `json:"distribution,omitempty"`
	Selected     *StatsRow  `json:"selected,omitempty"`
}

// Stats returns summary statistics. Selecting every category yields the
// full distribution; a single label yields its count and share. A label
// absent from the dataset counts 0.
func (s *ViewService) Stats(sel Selection) (*Stats, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	ds := sess.Dataset

	out := &Stats{
		Dataset:    ds.Name,
		CellType:   sel.String(),
		TotalCells: ds.Len(),
		CellTypes:  sess.Categories.Len(),
	}

	if sel.All {
		out.Distribution = make([]StatsRow, len(sess.Counts))
		for i, c := range sess.Counts {
			out.Distribution[i] = s.statsRow(sess, c)
		}
		return out, nil
	}

	row := s.statsRow(sess, category.CountOf(ds.Labels, sel.Label))
	out.Selected = &row
	return out, nil
}

func (s *ViewService) statsRow(sess *Session, c category.Count) StatsRow {
	row := StatsRow{
		Label:      int(c.Label),
		Name:       sess.Dataset.CategoryName(c.Label),
		Count:      c.Count,
		Percentage: c.Percentage,
	}
	if col, ok := sess.Categories.Color(c.Label); ok {
		row.Color = col.Hex()
	}
	return row
}

// CellRecord is the hover record of one cell with its placement.
type CellRecord struct {
	dataset.CellInfo
	Index    int           `json:"index"`
	Label    int           `json:"label"`
	Name     string        `json:"name"`
	Color    string        `json:"color"`
	Proposed dataset.Point `json:"proposed"`
	Original dataset.Point `json:"original"`
}

// Cell returns the record of cellID.
func (s *ViewService) Cell(cellID string) (*CellRecord, error) {
	sess, err := s.Session()
	if err != nil {
		return nil, err
	}
	i, ok := sess.cellIndex[cellID]
	if !ok {
		return nil, fmt.Errorf("%w: cell %q", ErrNotFound, cellID)
	}

	ds := sess.Dataset
	l := ds.Labels[i]
	col, _ := sess.Categories.Color(l)
	return &CellRecord{
		CellInfo: ds.CellInfo(cellID),
		Index:    i,
		Label:    int(l),
		Name:     ds.CategoryName(l),
		Color:    col.Hex(),
		Proposed: ds.Proposed[i],
		Original: ds.Original[i],
	}, nil
}

// visibleSet converts a category filter into a label set. A nil filter
// means every category is visible.
func visibleSet(filter []string) (map[category.Label]bool, error) {
	if filter == nil {
		return nil, nil
	}
	set := make(map[category.Label]bool, len(filter))
	for _, key := range filter {
		l, err := category.ParseLabelKey(key)
		if err != nil {
			return nil, err
		}
		set[l] = true
	}
	return set, nil
}

func isVisible(set map[category.Label]bool, l category.Label) bool {
	return set == nil || set[l]
}
