package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skycomb-go/thermaltrack/internal/database"
)

// CatalogHandler serves read-only queries over a run's persisted catalog.
// It never mutates state; writes happen only through the run controller.
type CatalogHandler struct {
	store *database.Store
}

// NewCatalogHandler wraps a store as an HTTP query surface.
func NewCatalogHandler(store *database.Store) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// Routes returns the catalog routes, mounted under /api/v1/catalog.
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/blocks", h.ListBlocks)
	r.Get("/blocks/{id}", h.GetBlock)
	r.Get("/blocks/{id}/features", h.FeaturesByBlock)

	r.Get("/features", h.ListFeatures)

	r.Get("/objects", h.ListObjects)
	r.Get("/objects/{id}", h.GetObject)
	r.Get("/objects/{id}/features", h.FeaturesByObject)

	r.Get("/spans", h.ListSpans)
	r.Get("/spans/{id}", h.GetSpan)

	r.Get("/flight-steps", h.ListFlightSteps)

	return r
}

// ListBlocks returns every block in the run, ordered by id.
func (h *CatalogHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.store.LoadBlocks(r.Context())
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, blocks)
}

// GetBlock returns a single block by id.
func (h *CatalogHandler) GetBlock(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	b, err := h.store.GetBlock(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		NotFound(w, "block not found")
		return
	}
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, b)
}

// FeaturesByBlock returns every feature scanned into a block.
func (h *CatalogHandler) FeaturesByBlock(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	features, err := h.store.FeaturesByBlock(r.Context(), id)
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, features)
}

// ListFeatures returns features, optionally filtered by block_id or
// object_id query parameters.
func (h *CatalogHandler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if raw := q.Get("block_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			BadRequest(w, "invalid block_id")
			return
		}
		features, err := h.store.FeaturesByBlock(r.Context(), id)
		if err != nil {
			InternalError(w, err.Error())
			return
		}
		OK(w, features)
		return
	}
	if raw := q.Get("object_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			BadRequest(w, "invalid object_id")
			return
		}
		features, err := h.store.FeaturesByObject(r.Context(), id)
		if err != nil {
			InternalError(w, err.Error())
			return
		}
		OK(w, features)
		return
	}
	BadRequest(w, "block_id or object_id query parameter is required")
}

// ListObjects returns every tracked object, optionally filtered to only
// significant ones via ?significant=true.
func (h *CatalogHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	objects, err := h.store.LoadObjects(r.Context())
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	if r.URL.Query().Get("significant") == "true" {
		filtered := objects[:0]
		for _, o := range objects {
			if o.Significant {
				filtered = append(filtered, o)
			}
		}
		objects = filtered
	}
	OK(w, objects)
}

// GetObject returns a single object by id.
func (h *CatalogHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	o, err := h.store.GetObject(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		NotFound(w, "object not found")
		return
	}
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, o)
}

// FeaturesByObject returns every feature an object claimed across its
// lifetime, in block order.
func (h *CatalogHandler) FeaturesByObject(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	features, err := h.store.FeaturesByObject(r.Context(), id)
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, features)
}

// ListSpans returns every closed optimization span.
func (h *CatalogHandler) ListSpans(w http.ResponseWriter, r *http.Request) {
	spans, err := h.store.LoadSpans(r.Context())
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, spans)
}

// GetSpan returns a single span by id.
func (h *CatalogHandler) GetSpan(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	sp, err := h.store.GetSpan(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		NotFound(w, "span not found")
		return
	}
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, sp)
}

// ListFlightSteps returns every platform telemetry sample in the run.
func (h *CatalogHandler) ListFlightSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := h.store.LoadFlightSteps(r.Context())
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	OK(w, steps)
}
