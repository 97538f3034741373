// Package engine wires the indexing components together. One Engine owns
// one Store handle and one Cache instance and hands references to the
// Scanner and Timeline; nothing in the system holds ambient global state.
package engine

import (
	"context"
	"fmt"
	"time"

	"photovault/internal/cache"
	"photovault/internal/keystore"
	"photovault/internal/logging"
	"photovault/internal/mediasource"
	"photovault/internal/scanner"
	"photovault/internal/store"
	"photovault/internal/timeline"
)

// Config assembles an Engine.
type Config struct {
	// StorePath is the encrypted store file location.
	StorePath string
	// KeyDir is where the key provider persists key material.
	KeyDir string
	// Provider is the device media source.
	Provider mediasource.Provider

	Store   store.Options
	Cache   cache.Options
	Scanner scanner.Options

	// MaintenanceInterval drives the store retention purge and cache
	// sweep loops started by Run. Zero picks each component's default.
	MaintenanceInterval time.Duration
}

// Engine is the composition root for the indexing and timeline system.
type Engine struct {
	store    *store.Store
	cache    *cache.Cache
	scanner  *scanner.Scanner
	timeline *timeline.Timeline
	cfg      Config
}

// New builds and initializes an Engine: keys, store (running migrations),
// cache, scanner, and timeline. Scans left running by a previous process
// are marked failed.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("engine: media provider is required")
	}

	keys, err := keystore.NewFileProvider(cfg.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("engine: key provider: %w", err)
	}

	st, err := store.New(ctx, cfg.StorePath, keys, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("engine: store: %w", err)
	}

	if n, err := st.InterruptStaleScans(ctx); err != nil {
		logging.Warn("stale scan cleanup failed: %v", err)
	} else if n > 0 {
		logging.Info("Marked %d interrupted scans as failed", n)
	}

	c := cache.New(cfg.Cache)

	return &Engine{
		store:    st,
		cache:    c,
		scanner:  scanner.New(cfg.Provider, st, cfg.Scanner),
		timeline: timeline.New(st, c),
		cfg:      cfg,
	}, nil
}

// Run starts the background maintenance loops and blocks until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	go e.cache.StartMaintenance(ctx, e.cfg.MaintenanceInterval)
	e.store.StartMaintenance(ctx, e.cfg.MaintenanceInterval)
}

// Close releases the store handle.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Scan lifecycle.

// StartFullScan runs a full scan to completion.
func (e *Engine) StartFullScan(ctx context.Context) (*scanner.Result, error) {
	return e.scanner.StartFullScan(ctx)
}

// StartIncrementalScan runs an incremental scan to completion.
func (e *Engine) StartIncrementalScan(ctx context.Context) (*scanner.Result, error) {
	return e.scanner.StartIncrementalScan(ctx)
}

// CancelScan requests cancellation of the running scan.
func (e *Engine) CancelScan() {
	e.scanner.Cancel()
}

// ScanState returns the scanner lifecycle state.
func (e *Engine) ScanState() scanner.State {
	return e.scanner.State()
}

// LastScanResult returns the most recent finished scan, or nil.
func (e *Engine) LastScanResult() *scanner.Result {
	return e.scanner.LastResult()
}

// SubscribeProgress returns a scan progress channel and its unsubscribe
// function.
func (e *Engine) SubscribeProgress() (<-chan scanner.Progress, func()) {
	return e.scanner.Subscribe()
}

// RecentScans returns persisted scan history, newest first.
func (e *Engine) RecentScans(ctx context.Context, limit int) ([]store.ScanRecord, error) {
	return e.store.RecentScans(ctx, limit)
}

// Query surface.

// GetItems returns one page of items matching the filters.
func (e *Engine) GetItems(ctx context.Context, filters store.QueryFilters) (*store.Page, error) {
	return e.store.QueryItems(ctx, filters)
}

// GetItemByID returns one item with its location.
func (e *Engine) GetItemByID(ctx context.Context, id string) (*store.MediaItem, error) {
	return e.store.GetItemByID(ctx, id)
}

// GetItemMetadata returns an item's decrypted metadata entries.
func (e *Engine) GetItemMetadata(ctx context.Context, id string, namespace store.MetadataNamespace) ([]store.MetadataEntry, error) {
	return e.store.GetMetadata(ctx, id, namespace)
}

// GetPhotoCount returns the live item count.
func (e *Engine) GetPhotoCount(ctx context.Context) (int, error) {
	return e.store.GetPhotoCount(ctx)
}

// SetFavorite flips an item's favorite flag.
func (e *Engine) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return e.store.SetFavorite(ctx, id, favorite)
}

// SoftDelete soft-deletes items.
func (e *Engine) SoftDelete(ctx context.Context, ids ...string) (int64, error) {
	return e.store.SoftDelete(ctx, ids...)
}

// Timeline surface.

// GetSections returns date-bucketed timeline sections.
func (e *Engine) GetSections(ctx context.Context, grouping timeline.Grouping) ([]timeline.Section, error) {
	return e.timeline.GetSections(ctx, grouping)
}

// GetSlices returns virtualization slices for a grouping.
func (e *Engine) GetSlices(ctx context.Context, grouping timeline.Grouping, sliceSize int) ([]timeline.Slice, error) {
	return e.timeline.GetSlices(ctx, grouping, sliceSize)
}

// ScrollToDate resolves a date to a timeline position.
func (e *Engine) ScrollToDate(ctx context.Context, grouping timeline.Grouping, date time.Time) (timeline.Position, bool, error) {
	return e.timeline.ScrollToDate(ctx, grouping, date)
}

// TimelineMetrics returns summary statistics for a grouping.
func (e *Engine) TimelineMetrics(ctx context.Context, grouping timeline.Grouping) (timeline.Metrics, error) {
	return e.timeline.Metrics(ctx, grouping)
}

// PreloadSections warms the cache around a section index.
func (e *Engine) PreloadSections(aroundIndex, radius int) {
	e.timeline.PreloadSections(aroundIndex, radius)
}

// Maintenance surface.

// CreateBackup produces a verified, sealed point-in-time export.
func (e *Engine) CreateBackup(ctx context.Context) (*store.Backup, error) {
	return e.store.CreateBackup(ctx)
}

// RestoreFromBackup replaces the store with a verified backup.
func (e *Engine) RestoreFromBackup(ctx context.Context, path string) error {
	if err := e.store.RestoreFromBackup(ctx, path); err != nil {
		return err
	}
	// The restored content invalidates everything memoized.
	e.cache.Clear("")
	return nil
}

// ListBackups enumerates available backups, newest first.
func (e *Engine) ListBackups() ([]store.Backup, error) {
	return e.store.ListBackups()
}

// CacheStats returns a snapshot of cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.GetStats()
}

// ClearCache drops a cache namespace, or everything when empty.
func (e *Engine) ClearCache(namespace string) int {
	return e.cache.Clear(namespace)
}

// Albums surface.

// CreateAlbum creates a virtual grouping.
func (e *Engine) CreateAlbum(ctx context.Context, name string, albumType store.AlbumType) (*store.Album, error) {
	return e.store.CreateAlbum(ctx, name, albumType)
}

// ListAlbums returns all albums.
func (e *Engine) ListAlbums(ctx context.Context) ([]store.Album, error) {
	return e.store.ListAlbums(ctx)
}

// GetAlbum returns one album.
func (e *Engine) GetAlbum(ctx context.Context, id int64) (*store.Album, error) {
	return e.store.GetAlbum(ctx, id)
}

// AlbumItems returns the live items in an album.
func (e *Engine) AlbumItems(ctx context.Context, id int64) ([]store.MediaItem, error) {
	return e.store.AlbumItems(ctx, id)
}

// AddToAlbum adds items to an album.
func (e *Engine) AddToAlbum(ctx context.Context, albumID int64, ids ...string) error {
	return e.store.AddToAlbum(ctx, albumID, ids...)
}

// RemoveFromAlbum removes items from an album.
func (e *Engine) RemoveFromAlbum(ctx context.Context, albumID int64, ids ...string) error {
	return e.store.RemoveFromAlbum(ctx, albumID, ids...)
}

// DeleteAlbum removes an album.
func (e *Engine) DeleteAlbum(ctx context.Context, albumID int64) error {
	return e.store.DeleteAlbum(ctx, albumID)
}

// Store exposes the underlying store for wiring that needs it directly
// (connection metrics, vacuum). The Engine remains the owner.
func (e *Engine) Store() *store.Store {
	return e.store
}
