package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"photovault/internal/store"
)

// AlbumRequest creates an album.
type AlbumRequest struct {
	Name string          `json:"name"`
	Type store.AlbumType `json:"type"`
}

// AlbumItemsRequest adds or removes album members.
type AlbumItemsRequest struct {
	IDs []string `json:"ids"`
}

func albumID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ListAlbums returns all albums ordered by name.
func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.engine.ListAlbums(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if albums == nil {
		albums = []store.Album{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, albums)
}

// CreateAlbum creates a virtual grouping.
func (h *Handlers) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var req AlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeJSONError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = store.AlbumCustom
	}

	album, err := h.engine.CreateAlbum(r.Context(), req.Name, req.Type)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, album)
}

// GetAlbum returns one album.
func (h *Handlers) GetAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := albumID(r)
	if err != nil {
		writeJSONError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	album, err := h.engine.GetAlbum(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, album)
}

// DeleteAlbum removes an album. Member items are untouched.
func (h *Handlers) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := albumID(r)
	if err != nil {
		writeJSONError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	if err := h.engine.DeleteAlbum(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONStatus(w, "deleted")
}

// GetAlbumItems returns the live items in an album.
func (h *Handlers) GetAlbumItems(w http.ResponseWriter, r *http.Request) {
	id, err := albumID(r)
	if err != nil {
		writeJSONError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	items, err := h.engine.AlbumItems(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if items == nil {
		items = []store.MediaItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, items)
}

// AddAlbumItems adds items to an album.
func (h *Handlers) AddAlbumItems(w http.ResponseWriter, r *http.Request) {
	h.modifyAlbumItems(w, r, h.engine.AddToAlbum)
}

// RemoveAlbumItems removes items from an album.
func (h *Handlers) RemoveAlbumItems(w http.ResponseWriter, r *http.Request) {
	h.modifyAlbumItems(w, r, h.engine.RemoveFromAlbum)
}

func (h *Handlers) modifyAlbumItems(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, albumID int64, ids ...string) error) {
	id, err := albumID(r)
	if err != nil {
		writeJSONError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	var req AlbumItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "ids is required", http.StatusBadRequest)
		return
	}

	if err := op(r.Context(), id, req.IDs...); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONStatus(w, "ok")
}
