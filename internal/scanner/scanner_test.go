package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"photovault/internal/keystore"
	"photovault/internal/mediasource"
	"photovault/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	keys, err := keystore.NewFileProvider(filepath.Join(dir, "keys"))
	if err != nil {
		t.Fatalf("NewFileProvider: %v", err)
	}
	s, err := store.New(context.Background(), filepath.Join(dir, "photovault.db"), keys, store.Options{})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fakeDescriptors(n int) []mediasource.ItemDescriptor {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	items := make([]mediasource.ItemDescriptor, n)
	for i := range items {
		items[i] = mediasource.ItemDescriptor{
			ID:               fmt.Sprintf("ph-%04d", i),
			URI:              fmt.Sprintf("file:///dcim/IMG_%04d.jpg", i),
			Filename:         fmt.Sprintf("IMG_%04d.jpg", i),
			FileSize:         2048,
			MimeType:         "image/jpeg",
			Width:            4000,
			Height:           3000,
			CreationTime:     base.Add(time.Duration(i) * time.Minute),
			ModificationTime: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return items
}

func TestFullScanThenRescanIsIdempotent(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(25)...)
	s := New(provider, st, Options{BatchSize: 10})
	ctx := context.Background()

	result, err := s.StartFullScan(ctx)
	if err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if result.Status != store.ScanCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.Added != 25 || result.Updated != 0 {
		t.Errorf("first run added/updated = %d/%d, want 25/0", result.Added, result.Updated)
	}
	if s.State() != StateCompleted {
		t.Errorf("state = %s, want completed", s.State())
	}

	count, err := st.GetPhotoCount(ctx)
	if err != nil {
		t.Fatalf("GetPhotoCount: %v", err)
	}
	if count != 25 {
		t.Errorf("photo count = %d, want 25", count)
	}

	// Unchanged source: second full pass writes nothing.
	again, err := s.StartFullScan(ctx)
	if err != nil {
		t.Fatalf("second StartFullScan: %v", err)
	}
	if again.Added != 0 || again.Updated != 0 {
		t.Errorf("rescan added/updated = %d/%d, want 0/0", again.Added, again.Updated)
	}
	count, _ = st.GetPhotoCount(ctx)
	if count != 25 {
		t.Errorf("photo count after rescan = %d, want 25", count)
	}

	rec, err := st.GetScanRecord(ctx, result.RecordID)
	if err != nil {
		t.Fatalf("GetScanRecord: %v", err)
	}
	if rec.Status != store.ScanCompleted || rec.Added != 25 {
		t.Errorf("persisted record = %s added=%d, want completed/25", rec.Status, rec.Added)
	}
}

func TestPermissionDeniedFailsFast(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(3)...)
	provider.SetPermission(mediasource.PermissionDenied)
	s := New(provider, st, Options{})
	ctx := context.Background()

	if _, err := s.StartFullScan(ctx); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("StartFullScan = %v, want ErrPermissionDenied", err)
	}

	// No partial scan state may exist.
	records, err := st.RecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScans: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("found %d scan records after permission failure, want 0", len(records))
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

// gatedProvider blocks enumeration until released, so a test can hold a
// scan in the scanning state.
type gatedProvider struct {
	*mediasource.FakeProvider
	entered chan struct{}
	release chan struct{}
	once    bool
}

func (g *gatedProvider) ListItems(ctx context.Context, cursor string, pageSize int, filters mediasource.ListFilters) (mediasource.ListPage, error) {
	if !g.once {
		g.once = true
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return mediasource.ListPage{}, ctx.Err()
		}
	}
	return g.FakeProvider.ListItems(ctx, cursor, pageSize, filters)
}

func TestSecondScanRejectedWhileActive(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := &gatedProvider{
		FakeProvider: mediasource.NewFakeProvider(fakeDescriptors(5)...),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	s := New(provider, st, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.StartFullScan(ctx)
		done <- err
	}()

	<-provider.entered
	if _, err := s.StartFullScan(ctx); !errors.Is(err, ErrScanActive) {
		t.Errorf("concurrent StartFullScan = %v, want ErrScanActive", err)
	}
	close(provider.release)

	if err := <-done; err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
}

func TestCancellationPersistsCountsAndStatus(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(50)...)
	s := New(provider, st, Options{BatchSize: 10, BatchDelay: 5 * time.Millisecond})
	ctx := context.Background()

	progress, unsubscribe := s.Subscribe()
	defer unsubscribe()
	go func() {
		<-progress
		s.Cancel()
	}()

	result, err := s.StartFullScan(ctx)
	if err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if result.Status != store.ScanCancelled {
		t.Fatalf("status = %s, want cancelled", result.Status)
	}
	if result.Processed == 0 || result.Processed == 50 {
		t.Errorf("processed = %d, want a partial count", result.Processed)
	}

	rec, err := st.GetScanRecord(ctx, result.RecordID)
	if err != nil {
		t.Fatalf("GetScanRecord: %v", err)
	}
	if rec.Status != store.ScanCancelled {
		t.Errorf("persisted status = %s, want cancelled", rec.Status)
	}
	if rec.Processed != result.Processed {
		t.Errorf("persisted processed = %d, want %d", rec.Processed, result.Processed)
	}

	// Every written item is complete: the atomic write guarantees at
	// least the extraction bookkeeping rows exist.
	page, err := st.QueryItems(ctx, store.QueryFilters{Limit: 1000})
	if err != nil {
		t.Fatalf("QueryItems: %v", err)
	}
	if len(page.Items) != result.Added {
		t.Errorf("stored items = %d, want %d", len(page.Items), result.Added)
	}
	for _, item := range page.Items {
		n, err := st.MetadataCount(ctx, item.ID)
		if err != nil {
			t.Fatalf("MetadataCount(%s): %v", item.ID, err)
		}
		if n == 0 {
			t.Errorf("item %s written without metadata", item.ID)
		}
	}

	// A cancelled run must not advance the incremental watermark.
	last, err := st.LastScanCompleted(ctx)
	if err != nil {
		t.Fatalf("LastScanCompleted: %v", err)
	}
	if !last.IsZero() {
		t.Errorf("cancelled scan advanced last-scan watermark to %v", last)
	}
}

func TestErrorRateMarksScanFailed(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(4)...)
	for i := 0; i < 3; i++ {
		provider.FailDetail(fmt.Sprintf("ph-%04d", i), errors.New("device read error"))
	}
	s := New(provider, st, Options{})
	ctx := context.Background()

	result, err := s.StartFullScan(ctx)
	if err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if result.Status != store.ScanFailed {
		t.Errorf("status = %s, want failed (3/4 errors)", result.Status)
	}
	if len(result.ItemErrors) != 3 {
		t.Errorf("item errors = %d, want 3", len(result.ItemErrors))
	}
	// The one good item still landed.
	count, _ := st.GetPhotoCount(ctx)
	if count != 1 {
		t.Errorf("photo count = %d, want 1", count)
	}
}

func TestSingleItemErrorDoesNotFailScan(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(10)...)
	provider.FailDetail("ph-0004", errors.New("transient"))
	s := New(provider, st, Options{})
	ctx := context.Background()

	result, err := s.StartFullScan(ctx)
	if err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if result.Status != store.ScanCompleted {
		t.Errorf("status = %s, want completed with 1 error", result.Status)
	}
	if len(result.ItemErrors) != 1 || result.ItemErrors[0].ItemID != "ph-0004" {
		t.Errorf("item errors = %+v, want one for ph-0004", result.ItemErrors)
	}
	if result.Added != 9 {
		t.Errorf("added = %d, want 9", result.Added)
	}
}

func TestIncrementalScanPicksUpOnlyNewItems(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(10)...)
	s := New(provider, st, Options{})
	ctx := context.Background()

	if _, err := s.StartFullScan(ctx); err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}

	// Two new items created after the full scan started.
	now := time.Now().Add(time.Hour)
	provider.AddItems(
		mediasource.ItemDescriptor{
			ID: "ph-new-1", URI: "file:///dcim/IMG_9001.jpg", Filename: "IMG_9001.jpg",
			MimeType: "image/jpeg", CreationTime: now, ModificationTime: now,
		},
		mediasource.ItemDescriptor{
			ID: "ph-new-2", URI: "file:///dcim/IMG_9002.jpg", Filename: "IMG_9002.jpg",
			MimeType: "image/jpeg", CreationTime: now.Add(time.Minute), ModificationTime: now.Add(time.Minute),
		},
	)

	result, err := s.StartIncrementalScan(ctx)
	if err != nil {
		t.Fatalf("StartIncrementalScan: %v", err)
	}
	if result.ScanType != store.ScanIncremental {
		t.Errorf("scan type = %s, want incremental", result.ScanType)
	}
	if result.Added != 2 {
		t.Errorf("added = %d, want 2", result.Added)
	}
	if result.Processed != 2 {
		t.Errorf("processed = %d, want only the 2 new items", result.Processed)
	}

	count, _ := st.GetPhotoCount(ctx)
	if count != 12 {
		t.Errorf("photo count = %d, want 12", count)
	}
}

func TestIncrementalWithoutHistoryRunsFull(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(5)...)
	s := New(provider, st, Options{})

	result, err := s.StartIncrementalScan(context.Background())
	if err != nil {
		t.Fatalf("StartIncrementalScan: %v", err)
	}
	if result.ScanType != store.ScanFull {
		t.Errorf("scan type = %s, want full fallback", result.ScanType)
	}
	if result.Added != 5 {
		t.Errorf("added = %d, want 5", result.Added)
	}
}

func TestUnsupportedFormatsAreSkipped(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	items := fakeDescriptors(3)
	items = append(items, mediasource.ItemDescriptor{
		ID: "doc-1", URI: "file:///dcim/notes.txt", Filename: "notes.txt",
		MimeType:     "text/plain",
		CreationTime: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	provider := mediasource.NewFakeProvider(items...)
	s := New(provider, st, Options{})

	result, err := s.StartFullScan(context.Background())
	if err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if result.Processed != 3 || result.Added != 3 {
		t.Errorf("processed/added = %d/%d, want 3/3", result.Processed, result.Added)
	}
}

func TestMaxFileSizeFilter(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	items := fakeDescriptors(2)
	items[1].FileSize = 10 << 20
	provider := mediasource.NewFakeProvider(items...)
	s := New(provider, st, Options{MaxFileSize: 1 << 20})

	result, err := s.StartFullScan(context.Background())
	if err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	if result.Added != 1 || result.Skipped != 1 {
		t.Errorf("added/skipped = %d/%d, want 1/1", result.Added, result.Skipped)
	}
}

func TestProgressReportsAdvance(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	provider := mediasource.NewFakeProvider(fakeDescriptors(30)...)
	s := New(provider, st, Options{BatchSize: 10})

	progress, unsubscribe := s.Subscribe()
	defer unsubscribe()

	var reports []Progress
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			reports = append(reports, p)
			if p.Processed == 30 {
				return
			}
		}
	}()

	if _, err := s.StartFullScan(context.Background()); err != nil {
		t.Fatalf("StartFullScan: %v", err)
	}
	<-done

	if len(reports) < 3 {
		t.Fatalf("got %d progress reports, want at least 3 (one per batch)", len(reports))
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].Processed < reports[i-1].Processed {
			t.Errorf("progress went backwards: %d then %d", reports[i-1].Processed, reports[i].Processed)
		}
	}
	if final := reports[len(reports)-1]; final.TotalEstimate != 30 {
		t.Errorf("total estimate = %d, want 30", final.TotalEstimate)
	}
}
