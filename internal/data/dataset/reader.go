// Package dataset reads precomputed embedding files for one dataset.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/config"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a required input file is missing.
var ErrNotFound = errors.New("dataset file not found")

// Files names the input files inside the dataset directory.
type Files struct {
	Proposed         string
	Original         string
	Labels           string
	LabelMapping     string
	CellMetadata     string
	DetailedMetadata string
}

// Config contains reader configuration.
type Config struct {
	Name        string
	Description string
	BasePath    string
	Files       Files
	// Detailed enables loading of per-cell hover records.
	Detailed bool
}

// Reader loads a dataset from disk. Each file may also be stored
// zstd-compressed as "<name>.zst".
type Reader struct {
	cfg     Config
	decoder *zstd.Decoder
}

// Point is one 2-D embedding coordinate.
type Point [2]float64

// LabelMapping translates between label indices and category names.
type LabelMapping struct {
	LabelToIdx map[string]int    `json:"label_to_idx"`
	IdxToLabel map[string]string `json:"idx_to_label"`
}

// CellMetadata holds cell identifiers in point order.
type CellMetadata struct {
	CellIDs []string `json:"cell_ids"`
}

// CellInfo is the detailed hover record of one cell. Everything except the
// cell id is kept as raw JSON and passed through untouched.
type CellInfo struct {
	CellID            string          `json:"cell_id"`
	Sample            json.RawMessage `json:"sample"`
	NumGenesExpressed json.RawMessage `json:"num_genes_expressed"`
	NUMI              json.RawMessage `json:"n_umi"`
	SizeFactor        json.RawMessage `json:"size_factor"`
}

// FromConfig builds a reader configuration from a dataset entry.
func FromConfig(ds config.DatasetConfig) Config {
	return Config{
		Name:        ds.Name,
		Description: ds.Description,
		BasePath:    ds.DataPath,
		Files: Files{
			Proposed:         ds.Files.Proposed,
			Original:         ds.Files.Original,
			Labels:           ds.Files.Labels,
			LabelMapping:     ds.Files.LabelMapping,
			CellMetadata:     ds.Files.CellMetadata,
			DetailedMetadata: ds.Files.DetailedMetadata,
		},
		Detailed: ds.DetailedMetadataEnabled(),
	}
}

// NewReader creates a new dataset reader.
func NewReader(cfg Config) (*Reader, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Reader{cfg: cfg, decoder: decoder}, nil
}

// Close releases decoder resources.
func (r *Reader) Close() {
	r.decoder.Close()
}

type coordinateFile struct {
	Data []Point `json:"data"`
}

type labelFile struct {
	Data []any `json:"data"`
}

// Load reads every input file in parallel and validates that the parallel
// arrays line up.
func (r *Reader) Load(ctx context.Context) (*Dataset, error) {
	var (
		proposed coordinateFile
		original coordinateFile
		labels   labelFile
		mapping  LabelMapping
		cells    CellMetadata
		detailed map[string]CellInfo
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.readJSON(ctx, r.cfg.Files.Proposed, &proposed) })
	g.Go(func() error { return r.readJSON(ctx, r.cfg.Files.Original, &original) })
	g.Go(func() error { return r.readJSON(ctx, r.cfg.Files.Labels, &labels) })
	g.Go(func() error { return r.readJSON(ctx, r.cfg.Files.LabelMapping, &mapping) })
	g.Go(func() error { return r.readJSON(ctx, r.cfg.Files.CellMetadata, &cells) })
	if r.cfg.Detailed {
		g.Go(func() error { return r.readJSON(ctx, r.cfg.Files.DetailedMetadata, &detailed) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parsed, err := category.ParseLabels(labels.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.cfg.Files.Labels, err)
	}

	n := len(parsed)
	if len(proposed.Data) != n {
		return nil, fmt.Errorf("%s: %d points, expected %d (one per label)", r.cfg.Files.Proposed, len(proposed.Data), n)
	}
	if len(original.Data) != n {
		return nil, fmt.Errorf("%s: %d points, expected %d (one per label)", r.cfg.Files.Original, len(original.Data), n)
	}
	if len(cells.CellIDs) != 0 && len(cells.CellIDs) != n {
		return nil, fmt.Errorf("%s: %d cell ids, expected %d (one per label)", r.cfg.Files.CellMetadata, len(cells.CellIDs), n)
	}

	return &Dataset{
		Name:        r.cfg.Name,
		Description: r.cfg.Description,
		Proposed:    proposed.Data,
		Original:    original.Data,
		Labels:      parsed,
		Mapping:     mapping,
		CellIDs:     cells.CellIDs,
		Detailed:    detailed,
	}, nil
}

// readJSON decodes name (or name.zst) from the dataset directory into v.
func (r *Reader) readJSON(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := r.readFile(name)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (r *Reader) readFile(name string) ([]byte, error) {
	path := filepath.Join(r.cfg.BasePath, name)

	data, err := os.ReadFile(path)
	if err == nil {
		if strings.HasSuffix(name, ".zst") {
			return r.decompress(name, data)
		}
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	compressed, zerr := os.ReadFile(path + ".zst")
	if zerr != nil {
		if errors.Is(zerr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s.zst: %w", name, zerr)
	}
	return r.decompress(name+".zst", compressed)
}

func (r *Reader) decompress(name string, compressed []byte) ([]byte, error) {
	data, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress %s failed: %w", name, err)
	}
	return data, nil
}
