package timeline

import (
	"fmt"
	"sort"
	"time"

	"photovault/internal/store"
)

// Grouping selects the date-bucketing granularity.
type Grouping string

const (
	// GroupDaily buckets by calendar day.
	GroupDaily Grouping = "daily"
	// GroupWeekly buckets by week starting Monday.
	GroupWeekly Grouping = "weekly"
	// GroupMonthly buckets by calendar month.
	GroupMonthly Grouping = "monthly"
	// GroupYearly buckets by calendar year.
	GroupYearly Grouping = "yearly"
)

// ParseGrouping maps a string to a Grouping, defaulting to monthly.
func ParseGrouping(s string) Grouping {
	switch Grouping(s) {
	case GroupDaily, GroupWeekly, GroupMonthly, GroupYearly:
		return Grouping(s)
	default:
		return GroupMonthly
	}
}

// Section is one date bucket, newest-first in a generated list. Start is
// inclusive, End exclusive.
type Section struct {
	BucketKey    string            `json:"bucketKey"`
	DisplayLabel string            `json:"displayLabel"`
	StartDate    time.Time         `json:"startDate"`
	EndDate      time.Time         `json:"endDate"`
	Items        []store.MediaItem `json:"items"`
	Count        int               `json:"count"`
}

// GenerateSections groups items into date buckets in local time. Buckets
// are ordered newest-first; within a bucket items are ordered by creation
// time descending with the id as tiebreaker. Items without a usable
// timestamp are returned in excluded, never silently dropped.
func GenerateSections(items []store.MediaItem, grouping Grouping) (sections []Section, excluded []store.MediaItem) {
	buckets := make(map[string]*Section)

	for _, item := range items {
		if item.CreationTime.IsZero() {
			excluded = append(excluded, item)
			continue
		}

		start := bucketStart(item.CreationTime.Local(), grouping)
		key := bucketKey(start, grouping)
		section, ok := buckets[key]
		if !ok {
			section = &Section{
				BucketKey:    key,
				DisplayLabel: displayLabel(start, grouping),
				StartDate:    start,
				EndDate:      bucketEnd(start, grouping),
			}
			buckets[key] = section
		}
		section.Items = append(section.Items, item)
	}

	sections = make([]Section, 0, len(buckets))
	for _, section := range buckets {
		sort.Slice(section.Items, func(i, j int) bool {
			a, b := section.Items[i], section.Items[j]
			if !a.CreationTime.Equal(b.CreationTime) {
				return a.CreationTime.After(b.CreationTime)
			}
			return a.ID > b.ID
		})
		section.Count = len(section.Items)
		sections = append(sections, *section)
	}

	sort.Slice(sections, func(i, j int) bool {
		return sections[i].StartDate.After(sections[j].StartDate)
	})
	return sections, excluded
}

// bucketStart returns the start-of-period boundary containing t.
func bucketStart(t time.Time, grouping Grouping) time.Time {
	year, month, day := t.Date()
	switch grouping {
	case GroupDaily:
		return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	case GroupWeekly:
		// Weeks start Monday.
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(year, month, day-offset, 0, 0, 0, 0, t.Location())
	case GroupMonthly:
		return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	case GroupYearly:
		return time.Date(year, 1, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	}
}

func bucketEnd(start time.Time, grouping Grouping) time.Time {
	switch grouping {
	case GroupDaily:
		return start.AddDate(0, 0, 1)
	case GroupWeekly:
		return start.AddDate(0, 0, 7)
	case GroupMonthly:
		return start.AddDate(0, 1, 0)
	case GroupYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

func bucketKey(start time.Time, grouping Grouping) string {
	switch grouping {
	case GroupDaily:
		return start.Format("2006-01-02")
	case GroupWeekly:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GroupMonthly:
		return start.Format("2006-01")
	case GroupYearly:
		return start.Format("2006")
	default:
		return start.Format("2006-01")
	}
}

func displayLabel(start time.Time, grouping Grouping) string {
	switch grouping {
	case GroupDaily:
		return start.Format("January 2, 2006")
	case GroupWeekly:
		return "Week of " + start.Format("January 2, 2006")
	case GroupMonthly:
		return start.Format("January 2006")
	case GroupYearly:
		return start.Format("2006")
	default:
		return start.Format("January 2006")
	}
}

// Metrics summarizes a generated section list.
type Metrics struct {
	TotalItems    int        `json:"totalItems"`
	TotalSections int        `json:"totalSections"`
	OldestItem    *time.Time `json:"oldestItem,omitempty"`
	NewestItem    *time.Time `json:"newestItem,omitempty"`
}

// GetMetrics computes summary statistics over sections.
func GetMetrics(sections []Section) Metrics {
	m := Metrics{TotalSections: len(sections)}
	for _, section := range sections {
		m.TotalItems += section.Count
		for _, item := range section.Items {
			t := item.CreationTime
			if m.OldestItem == nil || t.Before(*m.OldestItem) {
				oldest := t
				m.OldestItem = &oldest
			}
			if m.NewestItem == nil || t.After(*m.NewestItem) {
				newest := t
				m.NewestItem = &newest
			}
		}
	}
	return m
}
