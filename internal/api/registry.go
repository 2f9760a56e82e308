package api

import (
	"github.com/atlasmap-sc/embedview/internal/service"
)

// DatasetInfo contains information about a dataset for the API response.
type DatasetInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DatasetRegistry holds view services for all configured datasets.
type DatasetRegistry struct {
	services       map[string]*service.ViewService
	infos          map[string]DatasetInfo
	defaultDataset string
	datasetOrder   []string
	title          string
	subtitle       string
}

// NewDatasetRegistry creates a new dataset registry.
func NewDatasetRegistry(defaultDataset string, order []string, title, subtitle string) *DatasetRegistry {
	return &DatasetRegistry{
		services:       make(map[string]*service.ViewService),
		infos:          make(map[string]DatasetInfo),
		defaultDataset: defaultDataset,
		datasetOrder:   order,
		title:          title,
		subtitle:       subtitle,
	}
}

// Register adds a view service for a dataset.
func (r *DatasetRegistry) Register(info DatasetInfo, svc *service.ViewService) {
	if info.Name == "" {
		info.Name = info.ID
	}
	r.services[info.ID] = svc
	r.infos[info.ID] = info
}

// Get returns the view service for a dataset, or nil if not found.
func (r *DatasetRegistry) Get(datasetID string) *service.ViewService {
	return r.services[datasetID]
}

// DefaultDatasetID returns the default dataset ID.
func (r *DatasetRegistry) DefaultDatasetID() string {
	return r.defaultDataset
}

// Title returns the configured site title.
func (r *DatasetRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "UMAP Visualization"
}

// Subtitle returns the configured site subtitle.
func (r *DatasetRegistry) Subtitle() string {
	return r.subtitle
}

// Datasets returns dataset info for all registered datasets in config order.
func (r *DatasetRegistry) Datasets() []DatasetInfo {
	infos := make([]DatasetInfo, 0, len(r.datasetOrder))
	for _, id := range r.datasetOrder {
		info, ok := r.infos[id]
		if !ok {
			// Configured but failed to load
			continue
		}
		infos = append(infos, info)
	}
	return infos
}
