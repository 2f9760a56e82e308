// Package config handles configuration loading for the embedview server.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/atlasmap-sc/embedview/internal/category"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Data          DataConfig          `yaml:"data"`
	Cache         CacheConfig         `yaml:"cache"`
	Render        RenderConfig        `yaml:"render"`
	Visualization VisualizationConfig `yaml:"visualization"`
	Palette       PaletteConfig       `yaml:"palette"`
	Plotly        PlotlyConfig        `yaml:"plotly"`
	Views         ViewsConfig         `yaml:"views"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Title       string   `yaml:"title"`
	Subtitle    string   `yaml:"subtitle"`
}

// DataConfig contains data source settings, one entry per dataset.
type DataConfig struct {
	DefaultDataset string
	Datasets       map[string]DatasetConfig
	order          []string
}

// DatasetConfig describes where one dataset's files live.
type DatasetConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	DataPath    string `yaml:"data_path"`
	Files       Files  `yaml:"files"`
	// DetailedMetadata loads per-cell hover records (sample, gene and UMI
	// counts, size factor). Nil means enabled.
	DetailedMetadata *bool `yaml:"detailed_metadata"`
}

// DetailedMetadataEnabled reports whether detailed cell metadata is loaded.
func (d DatasetConfig) DetailedMetadataEnabled() bool {
	return d.DetailedMetadata == nil || *d.DetailedMetadata
}

// Files names the input files inside DataPath.
type Files struct {
	Proposed         string `yaml:"proposed"`
	Original         string `yaml:"original"`
	Labels           string `yaml:"labels"`
	LabelMapping     string `yaml:"label_mapping"`
	CellMetadata     string `yaml:"cell_metadata"`
	DetailedMetadata string `yaml:"detailed_metadata"`
}

// DefaultFiles returns the file names written by the preprocessing scripts.
func DefaultFiles() Files {
	return Files{
		Proposed:         "Z_umap_proposed.json",
		Original:         "Z_umap_original.json",
		Labels:           "y.json",
		LabelMapping:     "label_mapping.json",
		CellMetadata:     "cell_metadata.json",
		DetailedMetadata: "detailed_cell_metadata.json",
	}
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	PlotSizeMB     int `yaml:"plot_size_mb"`
	PlotTTLMinutes int `yaml:"plot_ttl_minutes"`
	QueryCacheSize int `yaml:"query_cache_size"`
}

// RenderConfig contains server-side plot rendering settings.
type RenderConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// VisualizationConfig mirrors the viewer's display settings.
type VisualizationConfig struct {
	DefaultMethod   string      `yaml:"default_method"`
	DefaultCellType string      `yaml:"default_cell_type"`
	PlotHeight      int         `yaml:"plot_height"`
	MarkerSize      MarkerStyle `yaml:"marker_size"`
	Opacity         MarkerStyle `yaml:"opacity"`
}

// MarkerStyle holds a value for normal and highlighted points.
type MarkerStyle struct {
	Normal      float64 `yaml:"normal"`
	Highlighted float64 `yaml:"highlighted"`
}

// Palette modes.
const (
	PaletteDynamic = "dynamic"
	PaletteFixed   = "fixed"
)

// PaletteConfig selects how category colors are assigned.
type PaletteConfig struct {
	// Mode is "dynamic" (palette chosen by category count) or "fixed".
	Mode string `yaml:"mode"`
	// Colors is the fixed palette; empty means the built-in 20 colors.
	Colors []string `yaml:"colors"`
}

// PlotlyConfig is passed through to the browser's chart configuration.
type PlotlyConfig struct {
	Responsive             *bool    `yaml:"responsive"`
	DisplayModeBar         *bool    `yaml:"display_mode_bar"`
	ModeBarButtonsToRemove []string `yaml:"mode_bar_buttons_to_remove"`
	DisplayLogo            *bool    `yaml:"displaylogo"`
}

// ViewsConfig configures persisted viewer state.
type ViewsConfig struct {
	SQLitePath    string `yaml:"sqlite_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// DatasetIDs returns dataset IDs in configuration order.
func (d *DataConfig) DatasetIDs() []string {
	return d.order
}

// UnmarshalYAML accepts either a single dataset (legacy form: data_path at
// the top level of "data") or a map of dataset ID to DatasetConfig. The
// optional "default" key names the default dataset.
func (d *DataConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("data: expected a mapping, got %v", node.Tag)
	}

	var legacy DatasetConfig
	isLegacy := false
	datasets := make(map[string]DatasetConfig)
	var order []string
	defaultID := ""

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		if key == "default" && val.Kind == yaml.ScalarNode {
			defaultID = val.Value
			continue
		}
		switch key {
		case "name", "description", "data_path", "files", "detailed_metadata":
			isLegacy = true
			continue
		}

		if val.Kind != yaml.MappingNode {
			return fmt.Errorf("data.%s: expected a mapping", key)
		}
		var ds DatasetConfig
		if err := val.Decode(&ds); err != nil {
			return fmt.Errorf("data.%s: %w", key, err)
		}
		datasets[key] = ds
		order = append(order, key)
	}

	if isLegacy {
		if len(order) > 0 {
			return fmt.Errorf("data: cannot mix data_path with named datasets")
		}
		if err := node.Decode(&legacy); err != nil {
			return fmt.Errorf("data: %w", err)
		}
		datasets["default"] = legacy
		order = []string{"default"}
	}

	d.Datasets = datasets
	d.order = order
	d.DefaultDataset = defaultID
	return nil
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if _, ok := c.Data.Datasets[c.Data.DefaultDataset]; !ok {
		return fmt.Errorf("default dataset %q is not configured", c.Data.DefaultDataset)
	}
	switch c.Palette.Mode {
	case PaletteDynamic, PaletteFixed:
	default:
		return fmt.Errorf("unknown palette mode %q", c.Palette.Mode)
	}
	switch c.Visualization.DefaultMethod {
	case "both", "proposed", "original":
	default:
		return fmt.Errorf("unknown default method %q", c.Visualization.DefaultMethod)
	}
	if ct := strings.TrimSpace(c.Visualization.DefaultCellType); ct != "" && !strings.EqualFold(ct, "all") {
		if _, err := category.ParseLabelKey(ct); err != nil {
			return fmt.Errorf("default cell type must be \"all\" or an integer label: %w", err)
		}
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "UMAP Visualization",
			Subtitle:    "Interactive Scatter Plot",
		},
		Data: DataConfig{
			DefaultDataset: "default",
			Datasets: map[string]DatasetConfig{
				"default": {
					Name:     "default",
					DataPath: "./data/d1",
					Files:    DefaultFiles(),
				},
			},
			order: []string{"default"},
		},
		Cache: CacheConfig{
			PlotSizeMB:     256,
			PlotTTLMinutes: 10,
			QueryCacheSize: 1000,
		},
		Render: RenderConfig{
			Width:     1200,
			Height:    1000,
			MaxWidth:  4096,
			MaxHeight: 4096,
		},
		Visualization: VisualizationConfig{
			DefaultMethod:   "both",
			DefaultCellType: "all",
			PlotHeight:      1000,
			MarkerSize:      MarkerStyle{Normal: 3, Highlighted: 8},
			Opacity:         MarkerStyle{Normal: 0.4, Highlighted: 1.0},
		},
		Palette: PaletteConfig{
			Mode: PaletteDynamic,
		},
		Plotly: PlotlyConfig{
			Responsive:             &enabled,
			DisplayModeBar:         &enabled,
			ModeBarButtonsToRemove: []string{"pan2d", "lasso2d", "select2d"},
			DisplayLogo:            new(bool),
		},
		Views: ViewsConfig{
			SQLitePath:    "./data/views.sqlite",
			RetentionDays: 30,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if cfg.Server.Subtitle == "" {
		cfg.Server.Subtitle = defaults.Server.Subtitle
	}

	if len(cfg.Data.Datasets) == 0 {
		cfg.Data = defaults.Data
	}
	if cfg.Data.DefaultDataset == "" && len(cfg.Data.order) > 0 {
		cfg.Data.DefaultDataset = cfg.Data.order[0]
	}
	for id, ds := range cfg.Data.Datasets {
		if ds.Name == "" {
			ds.Name = id
		}
		if ds.DataPath == "" {
			ds.DataPath = "./data/" + id
		}
		ds.Files = applyFileDefaults(ds.Files)
		cfg.Data.Datasets[id] = ds
	}

	if cfg.Cache.PlotSizeMB == 0 {
		cfg.Cache.PlotSizeMB = defaults.Cache.PlotSizeMB
	}
	if cfg.Cache.PlotTTLMinutes == 0 {
		cfg.Cache.PlotTTLMinutes = defaults.Cache.PlotTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}

	if cfg.Render.Width == 0 {
		cfg.Render.Width = defaults.Render.Width
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = defaults.Render.Height
	}
	if cfg.Render.MaxWidth == 0 {
		cfg.Render.MaxWidth = defaults.Render.MaxWidth
	}
	if cfg.Render.MaxHeight == 0 {
		cfg.Render.MaxHeight = defaults.Render.MaxHeight
	}

	v := &cfg.Visualization
	if v.DefaultMethod == "" {
		v.DefaultMethod = defaults.Visualization.DefaultMethod
	}
	if v.DefaultCellType == "" {
		v.DefaultCellType = defaults.Visualization.DefaultCellType
	}
	if v.PlotHeight == 0 {
		v.PlotHeight = defaults.Visualization.PlotHeight
	}
	if v.MarkerSize.Normal == 0 {
		v.MarkerSize.Normal = defaults.Visualization.MarkerSize.Normal
	}
	if v.MarkerSize.Highlighted == 0 {
		v.MarkerSize.Highlighted = defaults.Visualization.MarkerSize.Highlighted
	}
	if v.Opacity.Normal == 0 {
		v.Opacity.Normal = defaults.Visualization.Opacity.Normal
	}
	if v.Opacity.Highlighted == 0 {
		v.Opacity.Highlighted = defaults.Visualization.Opacity.Highlighted
	}

	if cfg.Palette.Mode == "" {
		cfg.Palette.Mode = defaults.Palette.Mode
	}

	p := &cfg.Plotly
	if p.Responsive == nil {
		p.Responsive = defaults.Plotly.Responsive
	}
	if p.DisplayModeBar == nil {
		p.DisplayModeBar = defaults.Plotly.DisplayModeBar
	}
	if p.ModeBarButtonsToRemove == nil {
		p.ModeBarButtonsToRemove = defaults.Plotly.ModeBarButtonsToRemove
	}
	if p.DisplayLogo == nil {
		p.DisplayLogo = defaults.Plotly.DisplayLogo
	}

	if cfg.Views.SQLitePath == "" {
		cfg.Views.SQLitePath = defaults.Views.SQLitePath
	}
	if cfg.Views.RetentionDays == 0 {
		cfg.Views.RetentionDays = defaults.Views.RetentionDays
	}
}

func applyFileDefaults(f Files) Files {
	d := DefaultFiles()
	if f.Proposed == "" {
		f.Proposed = d.Proposed
	}
	if f.Original == "" {
		f.Original = d.Original
	}
	if f.Labels == "" {
		f.Labels = d.Labels
	}
	if f.LabelMapping == "" {
		f.LabelMapping = d.LabelMapping
	}
	if f.CellMetadata == "" {
		f.CellMetadata = d.CellMetadata
	}
	if f.DetailedMetadata == "" {
		f.DetailedMetadata = d.DetailedMetadata
	}
	return f
}
