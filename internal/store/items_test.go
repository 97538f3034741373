package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSaveItemInsertThenSkip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()
	item := testItem(1)

	result, err := s.SaveItem(ctx, ItemWrite{Item: item})
	if err != nil {
		t.Fatalf("first SaveItem: %v", err)
	}
	if result != WriteInserted {
		t.Errorf("first save = %s, want inserted", result)
	}

	// Re-saving the identical item must be a no-op.
	result, err = s.SaveItem(ctx, ItemWrite{Item: item})
	if err != nil {
		t.Fatalf("second SaveItem: %v", err)
	}
	if result != WriteSkipped {
		t.Errorf("second save = %s, want skipped", result)
	}

	count, err := s.GetPhotoCount(ctx)
	if err != nil {
		t.Fatalf("GetPhotoCount: %v", err)
	}
	if count != 1 {
		t.Errorf("photo count = %d, want 1", count)
	}
}

func TestSaveItemUpdatesOnNewerModification(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(2)
	if _, err := s.SaveItem(ctx, ItemWrite{Item: item}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	item.ModificationTime = item.ModificationTime.Add(time.Hour)
	item.IsFavorite = true
	result, err := s.SaveItem(ctx, ItemWrite{Item: item})
	if err != nil {
		t.Fatalf("SaveItem update: %v", err)
	}
	if result != WriteUpdated {
		t.Errorf("save = %s, want updated", result)
	}

	got, err := s.GetItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItemByID: %v", err)
	}
	if !got.IsFavorite {
		t.Error("update did not persist favorite flag")
	}

	// An older modification must not clobber the row.
	item.ModificationTime = item.ModificationTime.Add(-2 * time.Hour)
	item.IsFavorite = false
	result, err = s.SaveItem(ctx, ItemWrite{Item: item})
	if err != nil {
		t.Fatalf("SaveItem stale: %v", err)
	}
	if result != WriteSkipped {
		t.Errorf("stale save = %s, want skipped", result)
	}
}

func TestSaveItemWithMetadataAndLocation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(3)
	write := ItemWrite{
		Item: item,
		Metadata: []MetadataEntry{
			{MediaItemID: item.ID, Namespace: NamespaceEXIF, Key: "camera.make", Value: "Apple"},
			{MediaItemID: item.ID, Namespace: NamespaceEXIF, Key: "camera.model", Value: "iPhone 15"},
		},
		Location:   &Location{Latitude: 37.7749, Longitude: -122.4194},
		Confidence: 0.9,
	}

	if _, err := s.SaveItem(ctx, write); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	got, err := s.GetItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItemByID: %v", err)
	}
	if got.Location == nil {
		t.Fatal("item has no location")
	}
	if got.Location.Latitude != 37.7749 {
		t.Errorf("latitude = %v, want 37.7749", got.Location.Latitude)
	}

	entries, err := s.GetMetadata(ctx, item.ID, NamespaceEXIF)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d metadata entries, want 2", len(entries))
	}
	if entries[0].Key != "camera.make" || entries[0].Value != "Apple" {
		t.Errorf("first entry = %s=%q, want camera.make=Apple", entries[0].Key, entries[0].Value)
	}
}

func TestSaveItemSkipLeavesMetadataAlone(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(4)
	first := ItemWrite{
		Item:     item,
		Metadata: []MetadataEntry{{MediaItemID: item.ID, Namespace: NamespaceEXIF, Key: "iso", Value: "100"}},
	}
	if _, err := s.SaveItem(ctx, first); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	// Same modification time, different metadata: the skip must not write it.
	second := ItemWrite{
		Item:     item,
		Metadata: []MetadataEntry{{MediaItemID: item.ID, Namespace: NamespaceEXIF, Key: "iso", Value: "6400"}},
	}
	result, err := s.SaveItem(ctx, second)
	if err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if result != WriteSkipped {
		t.Fatalf("save = %s, want skipped", result)
	}

	entries, err := s.GetMetadata(ctx, item.ID, NamespaceEXIF)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if len(entries) != 1 || entries[0].Value != "100" {
		t.Errorf("metadata after skip = %+v, want single iso=100", entries)
	}
}

func TestMissingCreationTimeRoundTrips(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(0)
	item.CreationTime = time.Time{}
	if _, err := s.SaveItem(ctx, ItemWrite{Item: item}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	got, err := s.GetItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItemByID: %v", err)
	}
	if !got.CreationTime.IsZero() {
		t.Errorf("missing creation time read back as %v, want zero", got.CreationTime)
	}
}

func TestGetItemByIDNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	if _, err := s.GetItemByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItemByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestQueryItemsOrderingAndPagination(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := s.SaveItem(ctx, ItemWrite{Item: testItem(i)}); err != nil {
			t.Fatalf("SaveItem(%d): %v", i, err)
		}
	}

	page, err := s.QueryItems(ctx, QueryFilters{Limit: 4})
	if err != nil {
		t.Fatalf("QueryItems: %v", err)
	}
	if page.TotalItems != 10 {
		t.Errorf("TotalItems = %d, want 10", page.TotalItems)
	}
	if len(page.Items) != 4 {
		t.Fatalf("got %d items, want 4", len(page.Items))
	}
	// Newest first.
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i].CreationTime.After(page.Items[i-1].CreationTime) {
			t.Errorf("items out of order at %d: %v after %v",
				i, page.Items[i].CreationTime, page.Items[i-1].CreationTime)
		}
	}
	if page.Items[0].ID != "item-0009" {
		t.Errorf("first item = %s, want item-0009", page.Items[0].ID)
	}

	second, err := s.QueryItems(ctx, QueryFilters{Limit: 4, Offset: 4})
	if err != nil {
		t.Fatalf("QueryItems page 2: %v", err)
	}
	if second.Items[0].ID != "item-0005" {
		t.Errorf("second page starts at %s, want item-0005", second.Items[0].ID)
	}
}

func TestQueryItemsFilters(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	photo := testItem(0)
	video := testItem(1)
	video.MimeType = "video/mp4"
	dur := 12.5
	video.DurationSeconds = &dur
	fav := testItem(2)
	fav.IsFavorite = true

	for _, item := range []MediaItem{photo, video, fav} {
		if _, err := s.SaveItem(ctx, ItemWrite{Item: item}); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}

	tests := []struct {
		name    string
		filters QueryFilters
		wantIDs []string
	}{
		{
			name:    "mime exact",
			filters: QueryFilters{MimeType: "video/mp4"},
			wantIDs: []string{video.ID},
		},
		{
			name:    "mime prefix",
			filters: QueryFilters{MimeType: "image/"},
			wantIDs: []string{fav.ID, photo.ID},
		},
		{
			name:    "favorites only",
			filters: QueryFilters{FavoritesOnly: true},
			wantIDs: []string{fav.ID},
		},
		{
			name: "date range",
			filters: QueryFilters{
				StartDate: timePtr(photo.CreationTime),
				EndDate:   timePtr(photo.CreationTime.Add(30 * time.Second)),
			},
			wantIDs: []string{photo.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.QueryItems(ctx, tt.filters)
			if err != nil {
				t.Fatalf("QueryItems: %v", err)
			}
			if len(page.Items) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(page.Items), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if page.Items[i].ID != want {
					t.Errorf("item[%d] = %s, want %s", i, page.Items[i].ID, want)
				}
			}
		})
	}
}

func TestQueryItemsBoundingBox(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	sf := testItem(0)
	nyc := testItem(1)
	writes := []ItemWrite{
		{Item: sf, Location: &Location{Latitude: 37.7749, Longitude: -122.4194}, Confidence: 1},
		{Item: nyc, Location: &Location{Latitude: 40.7128, Longitude: -74.0060}, Confidence: 1},
	}
	for _, w := range writes {
		if _, err := s.SaveItem(ctx, w); err != nil {
			t.Fatalf("SaveItem: %v", err)
		}
	}

	page, err := s.QueryItems(ctx, QueryFilters{Bounds: &BoundingBox{
		MinLatitude: 37, MaxLatitude: 38, MinLongitude: -123, MaxLongitude: -122,
	}})
	if err != nil {
		t.Fatalf("QueryItems: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != sf.ID {
		t.Errorf("bbox query returned %+v, want only %s", page.Items, sf.ID)
	}
}

func TestSoftDeleteHidesFromQueries(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(5)
	if _, err := s.SaveItem(ctx, ItemWrite{Item: item}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}

	n, err := s.SoftDelete(ctx, item.ID)
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if n != 1 {
		t.Errorf("SoftDelete affected %d rows, want 1", n)
	}

	page, err := s.QueryItems(ctx, QueryFilters{})
	if err != nil {
		t.Fatalf("QueryItems: %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("deleted item still visible: %+v", page.Items)
	}

	withDeleted, err := s.QueryItems(ctx, QueryFilters{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("QueryItems include deleted: %v", err)
	}
	if len(withDeleted.Items) != 1 || !withDeleted.Items[0].IsDeleted {
		t.Errorf("IncludeDeleted returned %+v, want the soft-deleted item", withDeleted.Items)
	}
}

func TestSetFavorite(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	ctx := context.Background()

	item := testItem(6)
	if _, err := s.SaveItem(ctx, ItemWrite{Item: item}); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	if err := s.SetFavorite(ctx, item.ID, true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}

	got, err := s.GetItemByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItemByID: %v", err)
	}
	if !got.IsFavorite {
		t.Error("favorite flag not set")
	}
}

func timePtr(t time.Time) *time.Time { return &t }
