package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"photovault/internal/store"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// ListItems returns one page of items filtered by the query parameters.
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	filters, err := parseQueryFilters(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.engine.GetItems(r.Context(), filters)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, page)
}

// GetItem returns a single item with its location.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.engine.GetItemByID(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, item)
}

// GetItemMetadata returns an item's decrypted metadata entries, optionally
// restricted to one namespace.
func (h *Handlers) GetItemMetadata(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	namespace := store.MetadataNamespace(r.URL.Query().Get("namespace"))
	entries, err := h.engine.GetItemMetadata(r.Context(), id, namespace)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []store.MetadataEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entries)
}

// FavoriteRequest sets an item's favorite flag.
type FavoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// SetFavorite flips an item's favorite flag.
func (h *Handlers) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.engine.SetFavorite(r.Context(), id, req.Favorite); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONStatus(w, "ok")
}

// DeleteItem soft-deletes a single item.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	n, err := h.engine.SoftDelete(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if n == 0 {
		writeEngineError(w, store.ErrNotFound)
		return
	}

	writeJSONStatus(w, "deleted")
}

// DeleteItemsRequest soft-deletes a batch of items.
type DeleteItemsRequest struct {
	IDs []string `json:"ids"`
}

// DeleteItems soft-deletes a batch of items in one transaction.
func (h *Handlers) DeleteItems(w http.ResponseWriter, r *http.Request) {
	var req DeleteItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "ids is required", http.StatusBadRequest)
		return
	}

	n, err := h.engine.SoftDelete(r.Context(), req.IDs...)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int64{"deleted": n})
}

// GetStats returns library summary counts.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.GetPhotoCount(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"totalItems": count,
		"cache":      h.engine.CacheStats(),
	})
}

func parseQueryFilters(r *http.Request) (store.QueryFilters, error) {
	q := r.URL.Query()
	filters := store.QueryFilters{Limit: defaultPageSize}

	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		filters.Limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filters.Offset = v
	}

	filters.MimeType = q.Get("mimeType")
	filters.FavoritesOnly = q.Get("favorites") == "true"
	filters.IncludeDeleted = q.Get("includeDeleted") == "true"

	if raw := q.Get("start"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, &queryError{"start", raw}
		}
		filters.StartDate = &ts
	}
	if raw := q.Get("end"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, &queryError{"end", raw}
		}
		filters.EndDate = &ts
	}

	if q.Has("minLat") || q.Has("maxLat") || q.Has("minLon") || q.Has("maxLon") {
		bounds := &store.BoundingBox{}
		for _, f := range []struct {
			param string
			dst   *float64
		}{
			{"minLat", &bounds.MinLatitude},
			{"maxLat", &bounds.MaxLatitude},
			{"minLon", &bounds.MinLongitude},
			{"maxLon", &bounds.MaxLongitude},
		} {
			raw := q.Get(f.param)
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return filters, &queryError{f.param, raw}
			}
			*f.dst = v
		}
		filters.Bounds = bounds
	}

	return filters, nil
}

type queryError struct {
	param string
	value string
}

func (e *queryError) Error() string {
	return "invalid " + e.param + " parameter: " + e.value
}
