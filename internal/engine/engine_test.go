package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"photovault/internal/mediasource"
	"photovault/internal/scanner"
	"photovault/internal/store"
	"photovault/internal/timeline"
)

func newTestEngine(t *testing.T, provider mediasource.Provider) *Engine {
	t.Helper()

	dir := t.TempDir()
	eng, err := New(context.Background(), Config{
		StorePath: filepath.Join(dir, "photovault.db"),
		KeyDir:    filepath.Join(dir, "keys"),
		Provider:  provider,
		Scanner:   scanner.Options{BatchSize: 10},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := eng.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return eng
}

func fakeProvider(n int) *mediasource.FakeProvider {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	items := make([]mediasource.ItemDescriptor, n)
	for i := range items {
		when := base.Add(time.Duration(i) * time.Hour)
		items[i] = mediasource.ItemDescriptor{
			ID:               fmt.Sprintf("ph-%04d", i),
			URI:              fmt.Sprintf("file:///dcim/IMG_%04d.jpg", i),
			Filename:         fmt.Sprintf("IMG_%04d.jpg", i),
			FileSize:         2048,
			MimeType:         "image/jpeg",
			Width:            4000,
			Height:           3000,
			CreationTime:     when,
			ModificationTime: when,
		}
	}
	return mediasource.NewFakeProvider(items...)
}

func TestEngineRequiresProvider(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{
		StorePath: filepath.Join(t.TempDir(), "photovault.db"),
		KeyDir:    filepath.Join(t.TempDir(), "keys"),
	})
	if err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestEngineScanAndQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := newTestEngine(t, fakeProvider(12))

	res, err := eng.StartFullScan(ctx)
	if err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if res.Status != store.ScanCompleted {
		t.Fatalf("status = %q, want completed", res.Status)
	}
	if res.Added != 12 {
		t.Fatalf("added = %d, want 12", res.Added)
	}

	count, err := eng.GetPhotoCount(ctx)
	if err != nil {
		t.Fatalf("GetPhotoCount: %v", err)
	}
	if count != 12 {
		t.Fatalf("count = %d, want 12", count)
	}

	page, err := eng.GetItems(ctx, store.QueryFilters{Limit: 5})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	if len(page.Items) != 5 || page.TotalItems != 12 {
		t.Fatalf("page = %d items total %d, want 5/12", len(page.Items), page.TotalItems)
	}

	scans, err := eng.RecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScans: %v", err)
	}
	if len(scans) != 1 {
		t.Fatalf("scan records = %d, want 1", len(scans))
	}
}

func TestEngineStaleScansInterruptedAtStartup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	cfg := Config{
		StorePath: filepath.Join(dir, "photovault.db"),
		KeyDir:    filepath.Join(dir, "keys"),
		Provider:  fakeProvider(0),
	}

	eng, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := eng.store.StartScanRecord(ctx, store.ScanFull); err != nil {
		t.Fatalf("StartScanRecord: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	eng2, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer eng2.Close()

	scans, err := eng2.RecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScans: %v", err)
	}
	if len(scans) != 1 || scans[0].Status != store.ScanFailed {
		t.Fatalf("scans = %+v, want one failed record", scans)
	}
}

func TestEngineTimelineSurface(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := newTestEngine(t, fakeProvider(30))

	if _, err := eng.StartFullScan(ctx); err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}

	sections, err := eng.GetSections(ctx, timeline.GroupDaily)
	if err != nil {
		t.Fatalf("GetSections: %v", err)
	}
	if len(sections) == 0 {
		t.Fatal("no sections generated")
	}
	total := 0
	for _, sec := range sections {
		total += sec.Count
	}
	if total != 30 {
		t.Fatalf("section items = %d, want 30", total)
	}

	slices, err := eng.GetSlices(ctx, timeline.GroupDaily, 10)
	if err != nil {
		t.Fatalf("GetSlices: %v", err)
	}
	if len(slices) != 3 {
		t.Fatalf("slices = %d, want 3", len(slices))
	}

	pos, ok, err := eng.ScrollToDate(ctx, timeline.GroupDaily, sections[0].StartDate)
	if err != nil || !ok {
		t.Fatalf("ScrollToDate: ok=%v err=%v", ok, err)
	}
	if pos.SectionIndex != 0 {
		t.Fatalf("section index = %d, want 0", pos.SectionIndex)
	}

	m, err := eng.TimelineMetrics(ctx, timeline.GroupDaily)
	if err != nil {
		t.Fatalf("TimelineMetrics: %v", err)
	}
	if m.TotalItems != 30 {
		t.Fatalf("metric items = %d, want 30", m.TotalItems)
	}
}

func TestEngineBackupRestoreInvalidatesCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := newTestEngine(t, fakeProvider(6))

	if _, err := eng.StartFullScan(ctx); err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if _, err := eng.GetSections(ctx, timeline.GroupMonthly); err != nil {
		t.Fatalf("GetSections: %v", err)
	}

	b, err := eng.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	page, err := eng.GetItems(ctx, store.QueryFilters{Limit: 1})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	if _, err := eng.SoftDelete(ctx, page.Items[0].ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	if err := eng.RestoreFromBackup(ctx, b.Path); err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}

	if stats := eng.CacheStats(); stats.EntryCount != 0 {
		t.Fatalf("cache entries after restore = %d, want 0", stats.EntryCount)
	}
	count, err := eng.GetPhotoCount(ctx)
	if err != nil {
		t.Fatalf("GetPhotoCount: %v", err)
	}
	if count != 6 {
		t.Fatalf("count after restore = %d, want 6", count)
	}

	backups, err := eng.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("backups = %d, want 1", len(backups))
	}
}

func TestEngineAlbumsSurface(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := newTestEngine(t, fakeProvider(4))
	if _, err := eng.StartFullScan(ctx); err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}

	album, err := eng.CreateAlbum(ctx, "Trips", store.AlbumCustom)
	if err != nil {
		t.Fatalf("CreateAlbum: %v", err)
	}
	page, err := eng.GetItems(ctx, store.QueryFilters{Limit: 2})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	ids := []string{page.Items[0].ID, page.Items[1].ID}
	if err := eng.AddToAlbum(ctx, album.ID, ids...); err != nil {
		t.Fatalf("AddToAlbum: %v", err)
	}

	items, err := eng.AlbumItems(ctx, album.ID)
	if err != nil {
		t.Fatalf("AlbumItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("album items = %d, want 2", len(items))
	}

	if err := eng.DeleteAlbum(ctx, album.ID); err != nil {
		t.Fatalf("DeleteAlbum: %v", err)
	}
	if _, err := eng.GetAlbum(ctx, album.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetAlbum after delete = %v, want ErrNotFound", err)
	}
}
