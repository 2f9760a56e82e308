// Package cache provides caching for rendered plots and figure JSON.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	PlotCacheSizeMB int
	PlotTTL         time.Duration
	QueryCacheSize  int
}

// Manager manages plot and query caches.
type Manager struct {
	plotCache  *bigcache.BigCache
	queryCache *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	ttl := cfg.PlotTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	// PNG entries are large; keep the shard count low.
	plotCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         ttl,
		CleanWindow:        ttl / 2,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       256 * 1024,
		HardMaxCacheSize:   cfg.PlotCacheSizeMB,
		Verbose:            false,
	}

	plotCache, err := bigcache.New(context.Background(), plotCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create plot cache: %w", err)
	}

	size := cfg.QueryCacheSize
	if size <= 0 {
		size = 1000
	}
	queryCache, err := lru.New[string, []byte](size)
	if err != nil {
		plotCache.Close()
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		plotCache:  plotCache,
		queryCache: queryCache,
	}, nil
}

// GetPlot retrieves a rendered plot from cache.
func (m *Manager) GetPlot(key string) ([]byte, bool) {
	data, err := m.plotCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetPlot stores a rendered plot in cache.
func (m *Manager) SetPlot(key string, data []byte) error {
	return m.plotCache.Set(key, data)
}

// GetQuery retrieves a query result from cache.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	return m.queryCache.Get(key)
}

// SetQuery stores a query result in cache.
func (m *Manager) SetQuery(key string, data []byte) {
	m.queryCache.Add(key, data)
}

// PlotKey generates a cache key for a rendered plot.
func PlotKey(datasetID, method, selection string, filter []string, width, height int) string {
	base := fmt.Sprintf("plot:%s:%s:%s:%dx%d", datasetID, method, selection, width, height)
	return base + filterSuffix(filter)
}

// FigureKey generates a cache key for figure JSON.
func FigureKey(datasetID, method, selection string, filter []string) string {
	base := fmt.Sprintf("fig:%s:%s:%s", datasetID, method, selection)
	return base + filterSuffix(filter)
}

// filterSuffix hashes a category filter independent of its order. A nil
// filter (show everything) and an empty filter (show nothing) differ.
func filterSuffix(filter []string) string {
	if filter == nil {
		return ""
	}
	if len(filter) == 0 {
		return ":none"
	}

	sorted := slices.Clone(filter)
	slices.Sort(sorted)

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	return ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"plot_cache_len":  m.plotCache.Len(),
		"plot_cache_cap":  m.plotCache.Capacity(),
		"query_cache_len": m.queryCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.plotCache.Close()
}
