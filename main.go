package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photovault/internal/cache"
	"photovault/internal/engine"
	"photovault/internal/exifmeta"
	"photovault/internal/filesystem"
	"photovault/internal/handlers"
	"photovault/internal/logging"
	"photovault/internal/mediasource"
	"photovault/internal/memory"
	"photovault/internal/middleware"
	"photovault/internal/scanner"
	"photovault/internal/startup"
	"photovault/internal/store"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Container-aware GOMEMLIMIT, before any significant allocation
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Assemble the engine: keys, store, cache, scanner, timeline
	startup.LogEngineInit(config.ScanBatchSize, config.MaintenanceInterval)
	engineStart := time.Now()

	runCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()

	// Volume labels for filesystem retry metrics
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":   config.MediaDir,
		"data":    config.DataDir,
		"backups": config.BackupDir,
	}))

	provider, err := mediasource.NewFSProvider(config.MediaDir, filesystem.DefaultRetryConfig())
	if err != nil {
		startup.LogFatal("Failed to initialize media provider: %v", err)
	}

	eng, err := engine.New(runCtx, engine.Config{
		StorePath: config.DatabasePath,
		KeyDir:    config.KeyDir,
		Provider:  provider,
		Store: store.Options{
			DeviceID:        config.DeviceID,
			QueryTimeout:    config.QueryTimeout,
			TxTimeout:       config.TxTimeout,
			RetentionWindow: time.Duration(config.RetentionDays) * 24 * time.Hour,
			BackupDir:       config.BackupDir,
		},
		Cache: cache.Options{
			MaxBytes:   config.CacheMaxBytes,
			MaxEntries: config.CacheMaxEntries,
		},
		Scanner: scanner.Options{
			BatchSize:    config.ScanBatchSize,
			BatchDelay:   config.ScanBatchDelay,
			MaxFileSize:  config.MaxFileSize,
			PrivacyLevel: exifmeta.ParsePrivacyLevel(config.PrivacyLevel),
		},
		MaintenanceInterval: config.MaintenanceInterval,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize engine: %v", err)
	}
	defer eng.Close()
	startup.LogStoreInit(time.Since(engineStart))

	// Retention purge and cache sweep loops
	go eng.Run(runCtx)
	startup.LogEngineStarted()

	// Initialize handlers
	h := handlers.New(eng)

	// Setup router
	router := setupRouter(h, config.MetricsEnabled)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply metrics middleware
	meteredRouter := middleware.Metrics(middleware.DefaultMetricsConfig())(router)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(meteredRouter)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, eng, stopEngine)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Scan lifecycle
	api.HandleFunc("/scans/full", h.StartFullScan).Methods("POST")
	api.HandleFunc("/scans/incremental", h.StartIncrementalScan).Methods("POST")
	api.HandleFunc("/scans/cancel", h.CancelScan).Methods("POST")
	api.HandleFunc("/scans/status", h.ScanStatus).Methods("GET")
	api.HandleFunc("/scans/recent", h.RecentScans).Methods("GET")
	api.HandleFunc("/scans/progress", h.ScanProgress).Methods("GET")

	// Items
	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items", h.DeleteItems).Methods("DELETE")
	api.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id}", h.DeleteItem).Methods("DELETE")
	api.HandleFunc("/items/{id}/metadata", h.GetItemMetadata).Methods("GET")
	api.HandleFunc("/items/{id}/favorite", h.SetFavorite).Methods("PUT")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	// Timeline
	api.HandleFunc("/timeline/sections", h.GetTimelineSections).Methods("GET")
	api.HandleFunc("/timeline/slices", h.GetTimelineSlices).Methods("GET")
	api.HandleFunc("/timeline/scroll", h.ScrollToDate).Methods("GET")
	api.HandleFunc("/timeline/metrics", h.GetTimelineMetrics).Methods("GET")

	// Albums
	api.HandleFunc("/albums", h.ListAlbums).Methods("GET")
	api.HandleFunc("/albums", h.CreateAlbum).Methods("POST")
	api.HandleFunc("/albums/{id}", h.GetAlbum).Methods("GET")
	api.HandleFunc("/albums/{id}", h.DeleteAlbum).Methods("DELETE")
	api.HandleFunc("/albums/{id}/items", h.GetAlbumItems).Methods("GET")
	api.HandleFunc("/albums/{id}/items", h.AddAlbumItems).Methods("POST")
	api.HandleFunc("/albums/{id}/items", h.RemoveAlbumItems).Methods("DELETE")

	// Maintenance
	api.HandleFunc("/backups", h.CreateBackup).Methods("POST")
	api.HandleFunc("/backups", h.ListBackups).Methods("GET")
	api.HandleFunc("/backups/restore", h.RestoreBackup).Methods("POST")
	api.HandleFunc("/cache/stats", h.GetCacheStats).Methods("GET")
	api.HandleFunc("/cache", h.ClearCache).Methods("DELETE")
	api.HandleFunc("/maintenance/vacuum", h.Vacuum).Methods("POST")

	return r
}

func handleShutdown(srv *http.Server, eng *engine.Engine, stopEngine context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Cancelling active scan")
	eng.CancelScan()
	stopEngine()
	startup.LogShutdownStepComplete("Engine stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
