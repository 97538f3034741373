package timeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"photovault/internal/cache"
	"photovault/internal/keystore"
	"photovault/internal/store"
)

func newTestTimeline(t *testing.T) (*Timeline, *store.Store) {
	t.Helper()

	dir := t.TempDir()
	keys, err := keystore.NewFileProvider(filepath.Join(dir, "keys"))
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}
	st, err := store.New(context.Background(), filepath.Join(dir, "photovault.db"), keys, store.Options{})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return New(st, cache.New(cache.Options{})), st
}

func saveAt(t *testing.T, st *store.Store, id string, at time.Time) {
	t.Helper()

	item := itemAt(id, at)
	item.ModificationTime = at
	if _, err := st.SaveItem(context.Background(), store.ItemWrite{Item: item}); err != nil {
		t.Fatalf("SaveItem(%s): %v", id, err)
	}
}

func TestTimelineSectionsFromStore(t *testing.T) {
	t.Parallel()

	tl, st := newTestTimeline(t)
	ctx := context.Background()

	saveAt(t, st, "jan-a", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
	saveAt(t, st, "jan-b", time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC))
	saveAt(t, st, "mar-a", time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC))

	sections, err := tl.GetSections(ctx, GroupMonthly)
	if err != nil {
		t.Fatalf("GetSections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2 (Jan, Mar)", len(sections))
	}
	if sections[0].Count != 1 || sections[1].Count != 2 {
		t.Errorf("section counts = %d, %d; want 1 (Mar), 2 (Jan)", sections[0].Count, sections[1].Count)
	}

	m, err := tl.Metrics(ctx, GroupMonthly)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.TotalItems != 3 || m.TotalSections != 2 {
		t.Errorf("metrics = %d/%d, want 3 items / 2 sections", m.TotalItems, m.TotalSections)
	}
}

func TestTimelineRegeneratesOnlyOnChange(t *testing.T) {
	t.Parallel()

	tl, st := newTestTimeline(t)
	ctx := context.Background()

	saveAt(t, st, "one", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	first, err := tl.GetSections(ctx, GroupMonthly)
	if err != nil {
		t.Fatalf("GetSections: %v", err)
	}
	second, err := tl.GetSections(ctx, GroupMonthly)
	if err != nil {
		t.Fatalf("GetSections again: %v", err)
	}
	// Unchanged content returns the memoized slice, not a regeneration.
	if len(first) == 0 || len(second) == 0 || &first[0] != &second[0] {
		t.Error("unchanged item set regenerated sections")
	}

	// A write invalidates the content hash.
	saveAt(t, st, "two", time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	third, err := tl.GetSections(ctx, GroupMonthly)
	if err != nil {
		t.Fatalf("GetSections after write: %v", err)
	}
	if third[0].Count != 2 {
		t.Errorf("section count after write = %d, want 2", third[0].Count)
	}

	// Switching grouping regenerates too.
	daily, err := tl.GetSections(ctx, GroupDaily)
	if err != nil {
		t.Fatalf("GetSections daily: %v", err)
	}
	if len(daily) != 2 {
		t.Errorf("daily sections = %d, want 2", len(daily))
	}
}

func TestTimelineIgnoresSoftDeleted(t *testing.T) {
	t.Parallel()

	tl, st := newTestTimeline(t)
	ctx := context.Background()

	saveAt(t, st, "keep", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	saveAt(t, st, "drop", time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))
	if _, err := st.SoftDelete(ctx, "drop"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	sections, err := tl.GetSections(ctx, GroupMonthly)
	if err != nil {
		t.Fatalf("GetSections: %v", err)
	}
	if len(sections) != 1 || sections[0].Count != 1 || sections[0].Items[0].ID != "keep" {
		t.Errorf("sections = %+v, want only the kept item", sections)
	}
}

func TestTimelineSlicesAndScroll(t *testing.T) {
	t.Parallel()

	tl, st := newTestTimeline(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		saveAt(t, st, itemID(i), base.AddDate(0, 0, i))
	}

	slices, err := tl.GetSlices(ctx, GroupDaily, 4)
	if err != nil {
		t.Fatalf("GetSlices: %v", err)
	}
	if len(slices) != 3 {
		t.Errorf("got %d slices over 10 items at size 4, want 3", len(slices))
	}

	pos, ok, err := tl.ScrollToDate(ctx, GroupDaily, base.AddDate(0, 0, 9))
	if err != nil || !ok {
		t.Fatalf("ScrollToDate: ok=%v err=%v", ok, err)
	}
	if pos.SectionIndex != 0 {
		t.Errorf("newest item resolves to section %d, want 0", pos.SectionIndex)
	}
}

func itemID(i int) string {
	return string(rune('a'+i)) + "-item"
}
