package handlers

import (
	"net/http"
	"strconv"
	"time"

	"photovault/internal/timeline"
)

// SectionsResponse wraps timeline sections with their grouping.
type SectionsResponse struct {
	Grouping string             `json:"grouping"`
	Sections []timeline.Section `json:"sections"`
}

// GetTimelineSections returns date-bucketed sections for the requested
// grouping (daily, weekly, monthly, yearly).
func (h *Handlers) GetTimelineSections(w http.ResponseWriter, r *http.Request) {
	grouping := timeline.ParseGrouping(r.URL.Query().Get("grouping"))

	sections, err := h.engine.GetSections(r.Context(), grouping)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if sections == nil {
		sections = []timeline.Section{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, SectionsResponse{
		Grouping: string(grouping),
		Sections: sections,
	})
}

// GetTimelineSlices returns virtualization slices for the requested
// grouping and slice size.
func (h *Handlers) GetTimelineSlices(w http.ResponseWriter, r *http.Request) {
	grouping := timeline.ParseGrouping(r.URL.Query().Get("grouping"))

	sliceSize := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("sliceSize")); err == nil && v > 0 {
		sliceSize = v
	}

	slices, err := h.engine.GetSlices(r.Context(), grouping, sliceSize)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if slices == nil {
		slices = []timeline.Slice{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, slices)
}

// ScrollResponse locates a date on the timeline.
type ScrollResponse struct {
	Found    bool              `json:"found"`
	Position timeline.Position `json:"position"`
}

// ScrollToDate resolves a date to a section index and scroll offset.
func (h *Handlers) ScrollToDate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	date, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSONError(w, "invalid date parameter: "+raw, http.StatusBadRequest)
		return
	}
	grouping := timeline.ParseGrouping(r.URL.Query().Get("grouping"))

	pos, found, err := h.engine.ScrollToDate(r.Context(), grouping, date)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ScrollResponse{Found: found, Position: pos})
}

// GetTimelineMetrics returns summary statistics for a grouping.
func (h *Handlers) GetTimelineMetrics(w http.ResponseWriter, r *http.Request) {
	grouping := timeline.ParseGrouping(r.URL.Query().Get("grouping"))

	m, err := h.engine.TimelineMetrics(r.Context(), grouping)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, m)
}
