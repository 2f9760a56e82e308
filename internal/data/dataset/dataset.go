package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/atlasmap-sc/embedview/internal/category"
)

// Dataset is one loaded dataset. It is read-only once loaded.
type Dataset struct {
	Name        string
	Description string

	// Proposed, Original, Labels and CellIDs (when present) are parallel
	// arrays indexed by point.
	Proposed []Point
	Original []Point
	Labels   []category.Label
	CellIDs  []string

	Mapping  LabelMapping
	Detailed map[string]CellInfo
}

// Len returns the number of points.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// CellID returns the identifier of point i, or "Cell_<i>" when the dataset
// carries no cell identifiers.
func (d *Dataset) CellID(i int) string {
	if i >= 0 && i < len(d.CellIDs) {
		return d.CellIDs[i]
	}
	return fmt.Sprintf("Cell_%d", i)
}

var (
	notAvailable  = json.RawMessage(`"N/A"`)
	unknownSample = json.RawMessage(`"Unknown"`)
)

// CellInfo returns the detailed record for cellID, or a placeholder record
// when detailed metadata is disabled or lacks the cell.
func (d *Dataset) CellInfo(cellID string) CellInfo {
	if info, ok := d.Detailed[cellID]; ok {
		if info.CellID == "" {
			info.CellID = cellID
		}
		return info
	}
	return CellInfo{
		CellID:            cellID,
		Sample:            unknownSample,
		NumGenesExpressed: notAvailable,
		NUMI:              notAvailable,
		SizeFactor:        notAvailable,
	}
}

// CategoryName returns the human-readable name of l. Without a loaded
// mapping it is "Type <l>"; a mapping that lacks l yields "Unknown".
func (d *Dataset) CategoryName(l category.Label) string {
	if d.Mapping.IdxToLabel == nil {
		return fmt.Sprintf("Type %d", l)
	}
	if name, ok := d.Mapping.IdxToLabel[l.Key()]; ok {
		return name
	}
	return "Unknown"
}
