package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/service"
	"github.com/atlasmap-sc/embedview/internal/viewstore"
	"github.com/go-chi/chi/v5"
)

const maxViewBodyBytes = 1 << 20

// viewRequest is the body of view create and update requests.
type viewRequest struct {
	Name     string   `json:"name"`
	Method   string   `json:"method"`
	CellType string   `json:"cell_type"`
	Hidden   []string `json:"hidden"`
}

// decodeView validates a view request against the dataset and normalizes
// method and cell type.
func decodeView(r *http.Request, svc *service.ViewService) (*viewstore.View, error) {
	var req viewRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxViewBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid view body: %v", category.ErrInvalidInput, err)
	}

	method, sel, err := svc.ParseView(req.Method, req.CellType)
	if err != nil {
		return nil, err
	}
	for _, key := range req.Hidden {
		if _, err := category.ParseLabelKey(key); err != nil {
			return nil, err
		}
	}

	return &viewstore.View{
		DatasetID: svc.DatasetID(),
		Name:      req.Name,
		Method:    string(method),
		CellType:  sel.String(),
		Hidden:    req.Hidden,
	}, nil
}

func viewsUnavailable(w http.ResponseWriter, store *viewstore.Store) bool {
	if store == nil {
		http.Error(w, "view store not configured", http.StatusNotImplemented)
		return true
	}
	return false
}

// datasetView loads a view and checks it belongs to the request's dataset.
func datasetView(r *http.Request, store *viewstore.Store, svc *service.ViewService) (*viewstore.View, error) {
	id := chi.URLParam(r, "view_id")
	v, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	if v.DatasetID != svc.DatasetID() {
		return nil, fmt.Errorf("%w: %s", viewstore.ErrNotFound, id)
	}
	return v, nil
}

func viewListHandler(store *viewstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if viewsUnavailable(w, store) {
			return
		}
		svc := getDatasetService(r)
		views, err := store.ListByDataset(svc.DatasetID())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"dataset": svc.DatasetID(),
			"views":   views,
		})
	}
}

func viewCreateHandler(store *viewstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if viewsUnavailable(w, store) {
			return
		}
		v, err := decodeView(r, getDatasetService(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if err := store.Create(v); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	}
}

func viewGetHandler(store *viewstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if viewsUnavailable(w, store) {
			return
		}
		v, err := datasetView(r, store, getDatasetService(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func viewUpdateHandler(store *viewstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if viewsUnavailable(w, store) {
			return
		}
		svc := getDatasetService(r)
		existing, err := datasetView(r, store, svc)
		if err != nil {
			writeError(w, err)
			return
		}
		v, err := decodeView(r, svc)
		if err != nil {
			writeError(w, err)
			return
		}
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt
		if err := store.Update(v); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func viewDeleteHandler(store *viewstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if viewsUnavailable(w, store) {
			return
		}
		v, err := datasetView(r, store, getDatasetService(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if err := store.Delete(v.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
