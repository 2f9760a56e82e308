// Package api provides HTTP handlers for the embedding viewer server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/atlasmap-sc/embedview/internal/cache"
	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/data/dataset"
	"github.com/atlasmap-sc/embedview/internal/render"
	"github.com/atlasmap-sc/embedview/internal/service"
	"github.com/atlasmap-sc/embedview/internal/viewstore"
	"github.com/atlasmap-sc/embedview/pkg/colormap"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *DatasetRegistry
	CORSOrigins []string
	Views       *viewstore.Store
	Cache       *cache.Manager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global endpoints (not dataset-scoped)
	r.Get("/api/datasets", datasetsHandler(cfg.Registry))
	r.Get("/api/palettes", paletteHandler)
	if cfg.Cache != nil {
		r.Get("/api/cache", cacheStatsHandler(cfg.Cache))
	}

	// Dataset-scoped routes: /d/{dataset}/...
	r.Route("/d/{dataset}", func(r chi.Router) {
		r.Use(datasetMiddleware(cfg.Registry))

		r.Get("/plot.png", plotHandler)
		r.Post("/plot.png", plotHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/metadata", metadataHandler)
			r.Get("/categories", categoriesHandler)
			r.Get("/colors", colorsHandler)
			r.Get("/stats", statsHandler)
			r.Get("/figure", figureHandler)
			r.Post("/figure", figureHandler)
			r.Get("/cells/{cell_id}", cellHandler)
			r.Post("/reload", reloadHandler)

			r.Route("/views", func(r chi.Router) {
				r.Get("/", viewListHandler(cfg.Views))
				r.Post("/", viewCreateHandler(cfg.Views))
				r.Get("/{view_id}", viewGetHandler(cfg.Views))
				r.Put("/{view_id}", viewUpdateHandler(cfg.Views))
				r.Delete("/{view_id}", viewDeleteHandler(cfg.Views))
			})
		})
	})

	return r
}

// Context key for dataset service
type ctxKey string

const datasetServiceKey ctxKey = "datasetService"

// datasetMiddleware resolves the dataset from URL and injects the view service into context.
func datasetMiddleware(registry *DatasetRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			datasetID := chi.URLParam(r, "dataset")
			svc := registry.Get(datasetID)
			if svc == nil {
				http.Error(w, "dataset not found: "+datasetID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), datasetServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getDatasetService(r *http.Request) *service.ViewService {
	if svc, ok := r.Context().Value(datasetServiceKey).(*service.ViewService); ok {
		return svc
	}
	return nil
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, colormap.ErrInvalidInput), errors.Is(err, render.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound), errors.Is(err, viewstore.ErrNotFound), errors.Is(err, dataset.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errorStatus(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// datasetsHandler returns the list of available datasets.
func datasetsHandler(registry *DatasetRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"default":  registry.DefaultDatasetID(),
			"datasets": registry.Datasets(),
			"title":    registry.Title(),
			"subtitle": registry.Subtitle(),
		})
	}
}

// cacheStatsHandler reports plot and figure cache occupancy.
func cacheStatsHandler(m *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.Stats())
	}
}

// maxPaletteCount bounds /api/palettes; the response holds one color per
// category.
const maxPaletteCount = 4096

// paletteHandler returns the palette chosen for ?count=N categories.
func paletteHandler(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("count")))
	if err != nil || count < 1 || count > maxPaletteCount {
		http.Error(w, fmt.Sprintf("count must be an integer in 1..%d", maxPaletteCount), http.StatusBadRequest)
		return
	}

	tier, err := colormap.TierName(count)
	if err != nil {
		writeError(w, err)
		return
	}
	palette, err := colormap.ForCount(count)
	if err != nil {
		writeError(w, err)
		return
	}

	// Discrete tiers are shorter than count past 20 categories; expand so
	// colors[i] is the color of the i-th category.
	colors := make([]string, count)
	for i := range colors {
		colors[i] = palette.AtIndex(i).Hex()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  count,
		"tier":   tier,
		"colors": colors,
	})
}

func metadataHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	md, err := svc.Metadata()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func categoriesHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	items, err := svc.Categories()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset":    svc.DatasetID(),
		"categories": items,
	})
}

func colorsHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	colors, err := svc.Colors()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, colors)
}

func statsHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	_, sel, err := svc.ParseView("", r.URL.Query().Get("cell_type"))
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := svc.Stats(sel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func figureHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	q := r.URL.Query()
	method, sel, err := svc.ParseView(q.Get("method"), q.Get("cell_type"))
	if err != nil {
		writeError(w, err)
		return
	}
	filter, err := requestFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := svc.FigureJSON(method, sel, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func plotHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	q := r.URL.Query()
	method, sel, err := svc.ParseView(q.Get("method"), q.Get("cell_type"))
	if err != nil {
		writeError(w, err)
		return
	}
	width, err := parseDimension(q, "width")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := parseDimension(q, "height")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter, err := requestFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := svc.Plot(method, sel, filter, width, height)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}

func cellHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	rec, err := svc.Cell(chi.URLParam(r, "cell_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func reloadHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if _, err := svc.Reload(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	md, err := svc.Metadata()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// parseDimension returns 0 (use the configured size) when name is absent.
func parseDimension(query url.Values, name string) (int, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

// requestFilter reads the category filter from the POST body or the query.
// A filter lists the label keys that stay visible. A query carries them as
// repeated ?categories= values, each either a JSON array ([3,1] or
// ["3","1"]) or a comma list. An empty value hides every category and no
// parameter at all means no filter. Keys are validated by the view service.
func requestFilter(r *http.Request) ([]string, error) {
	if r.Method == http.MethodPost {
		return bodyFilter(r)
	}
	return queryFilter(r.URL.Query()), nil
}

// queryFilter returns nil when the query has no categories parameter.
func queryFilter(q url.Values) []string {
	values, ok := q["categories"]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(values))
	for _, v := range values {
		keys = append(keys, splitLabelKeys(v)...)
	}
	return keys
}

// splitLabelKeys parses one filter value. Malformed arrays fall through to
// the comma split and are rejected later as invalid keys.
func splitLabelKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		if keys, err := decodeLabelKeys([]byte(raw)); err == nil {
			return keys
		}
	}
	keys := make([]string, 0)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// decodeLabelKeys decodes a JSON array whose entries are label numbers or
// strings, in any mix.
func decodeLabelKeys(raw []byte) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: category filter: %v", category.ErrInvalidInput, err)
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			keys = append(keys, strings.TrimSpace(s))
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return nil, fmt.Errorf("%w: category filter entry %s", category.ErrInvalidInput, item)
		}
		keys = append(keys, n.String())
	}
	return keys, nil
}

const maxFilterBodyBytes = 1 << 20

// bodyFilter reads a POST filter: {"categories": [...]}, a bare JSON array,
// form fields or a comma list. An empty body or a null field means no
// filter.
func bodyFilter(r *http.Request) ([]string, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFilterBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxFilterBodyBytes {
		return nil, fmt.Errorf("%w: category filter body too large", category.ErrInvalidInput)
	}

	raw := bytes.TrimSpace(body)
	switch {
	case len(raw) == 0:
		return nil, nil
	case raw[0] == '{':
		var payload struct {
			Categories json.RawMessage `json:"categories"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("%w: category filter: %v", category.ErrInvalidInput, err)
		}
		value := bytes.TrimSpace(payload.Categories)
		if len(value) == 0 || bytes.Equal(value, []byte("null")) {
			return nil, nil
		}
		if value[0] == '"' {
			var list string
			if err := json.Unmarshal(value, &list); err != nil {
				return nil, fmt.Errorf("%w: category filter: %v", category.ErrInvalidInput, err)
			}
			return splitLabelKeys(list), nil
		}
		return decodeLabelKeys(value)
	case raw[0] == '[':
		return decodeLabelKeys(raw)
	case bytes.ContainsRune(raw, '='):
		q, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: category filter: %v", category.ErrInvalidInput, err)
		}
		return queryFilter(q), nil
	default:
		return splitLabelKeys(string(raw)), nil
	}
}
