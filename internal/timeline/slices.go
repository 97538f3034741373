package timeline

import (
	"sort"
	"time"
)

// Layout constants for estimated render heights, in logical pixels.
const (
	sectionHeaderHeight = 44.0
	itemRowHeight       = 120.0
	itemsPerRow         = 3
)

// Slice is a fixed-size contiguous window over the flattened item order,
// used to feed a virtualized scroller. Slices are deterministic for the
// same (sections, sliceSize) input.
type Slice struct {
	Index           int     `json:"index"`
	StartItem       int     `json:"startItem"` // global offset in flattened order
	ItemCount       int     `json:"itemCount"`
	FirstSection    int     `json:"firstSection"`
	LastSection     int     `json:"lastSection"`
	EstimatedHeight float64 `json:"estimatedHeight"`
}

// CreateSlices partitions the ordered section list into windows of
// sliceSize items. The estimated height accounts for section headers that
// begin inside the slice plus the item grid rows.
func CreateSlices(sections []Section, sliceSize int) []Slice {
	if sliceSize <= 0 {
		sliceSize = 60
	}

	total := 0
	for _, section := range sections {
		total += section.Count
	}
	if total == 0 {
		return nil
	}

	var slices []Slice
	for start := 0; start < total; start += sliceSize {
		count := sliceSize
		if start+count > total {
			count = total - start
		}

		first, last, headers := sectionSpan(sections, start, count)
		rows := (count + itemsPerRow - 1) / itemsPerRow
		slices = append(slices, Slice{
			Index:           len(slices),
			StartItem:       start,
			ItemCount:       count,
			FirstSection:    first,
			LastSection:     last,
			EstimatedHeight: float64(headers)*sectionHeaderHeight + float64(rows)*itemRowHeight,
		})
	}
	return slices
}

// sectionSpan locates the sections covered by the item window
// [start, start+count) and how many of them begin inside it.
func sectionSpan(sections []Section, start, count int) (first, last, headersInside int) {
	offset := 0
	first, last = -1, -1
	for i, section := range sections {
		sectionStart := offset
		sectionEnd := offset + section.Count
		offset = sectionEnd

		if sectionEnd <= start {
			continue
		}
		if sectionStart >= start+count {
			break
		}
		if first < 0 {
			first = i
		}
		last = i
		if sectionStart >= start {
			headersInside++
		}
	}
	return first, last, headersInside
}

// Position is a resolved timeline location for scroll restoration.
type Position struct {
	SectionIndex    int     `json:"sectionIndex"`
	EstimatedOffset float64 `json:"estimatedOffset"`
}

// ScrollToDate finds the section containing date via binary search over
// the newest-first section boundaries. A date outside the observed range
// clamps to the nearest boundary section. Returns false only for an empty
// section list.
func ScrollToDate(date time.Time, sections []Section) (Position, bool) {
	if len(sections) == 0 {
		return Position{}, false
	}

	// Newer than everything: top of the timeline.
	if !date.Before(sections[0].EndDate) {
		return Position{SectionIndex: 0}, true
	}
	// Older than everything: bottom.
	oldest := len(sections) - 1
	if date.Before(sections[oldest].StartDate) {
		return Position{SectionIndex: oldest, EstimatedOffset: offsetToSection(sections, oldest)}, true
	}

	// Sections are sorted by StartDate descending: find the first section
	// whose start is not after date.
	idx := sort.Search(len(sections), func(i int) bool {
		return !sections[i].StartDate.After(date)
	})
	// Date may fall in a gap between sections; idx is the nearest older
	// section, which is the right landing spot.
	return Position{SectionIndex: idx, EstimatedOffset: offsetToSection(sections, idx)}, true
}

// offsetToSection estimates the scroll offset of a section's header.
func offsetToSection(sections []Section, index int) float64 {
	offset := 0.0
	for i := 0; i < index && i < len(sections); i++ {
		rows := (sections[i].Count + itemsPerRow - 1) / itemsPerRow
		offset += sectionHeaderHeight + float64(rows)*itemRowHeight
	}
	return offset
}
