package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"photovault/internal/store"
)

// CreateBackup produces a sealed, verified point-in-time export.
func (h *Handlers) CreateBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.engine.CreateBackup(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, backup)
}

// ListBackups enumerates available backups, newest first.
func (h *Handlers) ListBackups(w http.ResponseWriter, _ *http.Request) {
	backups, err := h.engine.ListBackups()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if backups == nil {
		backups = []store.Backup{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, backups)
}

// RestoreRequest names the backup archive to restore.
type RestoreRequest struct {
	Path string `json:"path"`
}

// RestoreBackup replaces the live store with a verified backup. The
// archive must live inside the configured backup directory.
func (h *Handlers) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}
	if strings.Contains(req.Path, "..") || !filepath.IsAbs(req.Path) {
		writeJSONError(w, "path must be absolute", http.StatusBadRequest)
		return
	}

	if err := h.engine.RestoreFromBackup(r.Context(), req.Path); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONStatus(w, "restored")
}

// GetCacheStats returns a snapshot of cache counters.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.engine.CacheStats())
}

// ClearCache drops a cache namespace, or everything when no namespace is
// given.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	cleared := h.engine.ClearCache(namespace)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"cleared": cleared})
}

// Vacuum compacts the store file.
func (h *Handlers) Vacuum(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Store().Vacuum(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONStatus(w, "ok")
}
