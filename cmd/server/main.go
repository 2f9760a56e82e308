// Package main is the entry point for the embedding viewer server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasmap-sc/embedview/internal/api"
	"github.com/atlasmap-sc/embedview/internal/cache"
	"github.com/atlasmap-sc/embedview/internal/config"
	"github.com/atlasmap-sc/embedview/internal/data/dataset"
	"github.com/atlasmap-sc/embedview/internal/render"
	"github.com/atlasmap-sc/embedview/internal/service"
	"github.com/atlasmap-sc/embedview/internal/viewstore"
	"github.com/atlasmap-sc/embedview/pkg/colormap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting embedding viewer on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Initialize cache manager (shared across all datasets)
	cacheManager, err := cache.NewManager(cache.Config{
		PlotCacheSizeMB: cfg.Cache.PlotSizeMB,
		PlotTTL:         time.Duration(cfg.Cache.PlotTTLMinutes) * time.Minute,
		QueryCacheSize:  cfg.Cache.QueryCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize plot renderer (shared across all datasets)
	viz := cfg.Visualization
	plotRenderer := render.NewPlotRenderer(render.Config{
		MaxWidth:  cfg.Render.MaxWidth,
		MaxHeight: cfg.Render.MaxHeight,
		Style: render.Style{
			NormalSize:       viz.MarkerSize.Normal,
			HighlightSize:    viz.MarkerSize.Highlighted,
			NormalOpacity:    viz.Opacity.Normal,
			HighlightOpacity: viz.Opacity.Highlighted,
			OutlineColor:     colormap.MustParseHex("#333333"),
			OutlineWidth:     2,
		},
	})

	// Initialize dataset registry
	datasetIDs := cfg.Data.DatasetIDs()
	registry := api.NewDatasetRegistry(cfg.Data.DefaultDataset, datasetIDs, cfg.Server.Title, cfg.Server.Subtitle)

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.DefaultDataset)

	for _, datasetID := range datasetIDs {
		ds := cfg.Data.Datasets[datasetID]

		reader, err := dataset.NewReader(dataset.FromConfig(ds))
		if err != nil {
			log.Fatalf("Failed to initialize reader for dataset %q: %v", datasetID, err)
		}
		defer reader.Close()

		viewService, err := service.NewViewService(service.ViewServiceConfig{
			DatasetID:     datasetID,
			Loader:        reader,
			Palette:       cfg.Palette,
			Cache:         cacheManager,
			Renderer:      plotRenderer,
			Visualization: viz,
			Plotly:        cfg.Plotly,
			PlotWidth:     cfg.Render.Width,
			PlotHeight:    cfg.Render.Height,
		})
		if err != nil {
			log.Fatalf("Failed to initialize dataset %q: %v", datasetID, err)
		}

		log.Printf("  [%s] Loading from: %s", datasetID, ds.DataPath)
		if _, err := viewService.Reload(ctx); err != nil {
			// Stays registered; requests answer 503 until a reload succeeds.
			log.Printf("  [%s] Not loaded: %v", datasetID, err)
		}

		name := ds.Name
		if name == "" {
			name = datasetID
		}
		registry.Register(api.DatasetInfo{
			ID:          datasetID,
			Name:        name,
			Description: ds.Description,
		}, viewService)
	}

	// Initialize saved view store (SQLite persistence)
	views, err := viewstore.NewStore(cfg.Views.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to initialize view store: %v", err)
	}
	defer views.Close()
	log.Printf("View store: retention_days=%d, sqlite=%s", cfg.Views.RetentionDays, cfg.Views.SQLitePath)

	cleaner := viewstore.NewCleaner(views, cfg.Views.RetentionDays, time.Hour)
	cleaner.Start()
	defer cleaner.Stop()

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Views:       views,
		Cache:       cacheManager,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
