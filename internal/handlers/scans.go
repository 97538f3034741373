package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"photovault/internal/logging"
	"photovault/internal/scanner"
)

// ScanStatusResponse reports the scanner lifecycle state and the most
// recent finished scan, if any.
type ScanStatusResponse struct {
	State      string          `json:"state"`
	LastResult *scanner.Result `json:"lastResult,omitempty"`
}

func (h *Handlers) startScan(w http.ResponseWriter, scanType string, run func(context.Context) (*scanner.Result, error)) {
	if h.engine.ScanState() == scanner.StateScanning {
		writeEngineError(w, scanner.ErrScanActive)
		return
	}

	// The scan outlives the request; it is cancelled through the
	// cancel endpoint, not by the client hanging up.
	go func() {
		res, err := run(context.Background())
		if err != nil {
			logging.Error("%s scan failed to start: %v", scanType, err)
			return
		}
		logging.Info("%s scan finished: status=%s processed=%d added=%d updated=%d",
			scanType, res.Status, res.Processed, res.Added, res.Updated)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "started", "scanType": scanType})
}

// StartFullScan launches a full library scan in the background.
func (h *Handlers) StartFullScan(w http.ResponseWriter, _ *http.Request) {
	h.startScan(w, "full", h.engine.StartFullScan)
}

// StartIncrementalScan launches an incremental scan in the background.
func (h *Handlers) StartIncrementalScan(w http.ResponseWriter, _ *http.Request) {
	h.startScan(w, "incremental", h.engine.StartIncrementalScan)
}

// CancelScan requests cancellation of the running scan. Cancellation is
// cooperative; the scan stops at the next batch boundary.
func (h *Handlers) CancelScan(w http.ResponseWriter, _ *http.Request) {
	h.engine.CancelScan()
	writeJSONStatus(w, "cancelling")
}

// ScanStatus returns the scanner state and last finished result.
func (h *Handlers) ScanStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ScanStatusResponse{
		State:      string(h.engine.ScanState()),
		LastResult: h.engine.LastScanResult(),
	})
}

// RecentScans returns persisted scan history, newest first.
func (h *Handlers) RecentScans(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	scans, err := h.engine.RecentScans(r.Context(), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, scans)
}

// ScanProgress streams scan progress updates as Server-Sent Events until
// the client disconnects or the scan finishes.
func (h *Handlers) ScanProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe := h.engine.SubscribeProgress()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case p, open := <-updates:
			if !open {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := enc.Encode(p); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
