package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_store_queries_total",
			Help: "Total number of store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_store_query_duration_seconds",
			Help:    "Store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_store_transaction_duration_seconds",
			Help:    "Store write transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"result"}, // "commit", "rollback"
	)

	StoreRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_store_rows_affected",
			Help:    "Number of rows affected by store write operations",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	StoreConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_store_connections_open",
			Help: "Number of open store connections",
		},
	)

	StoreSchemaVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_store_schema_version",
			Help: "Current schema version of the store",
		},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_scanner_runs_total",
			Help: "Total number of scan runs by type and final status",
		},
		[]string{"type", "status"},
	)

	ScannerItemsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_scanner_items_processed_total",
			Help: "Total number of media items processed by the scanner",
		},
	)

	ScannerItemErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_scanner_item_errors_total",
			Help: "Total number of per-item scan errors",
		},
	)

	ScannerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_scanner_last_run_timestamp",
			Help: "Timestamp of the last completed scan",
		},
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_scanner_last_run_duration_seconds",
			Help: "Duration of the last scan in seconds",
		},
	)

	ScannerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_scanner_is_running",
			Help: "Whether a scan is currently in progress (1 = running)",
		},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_cache_hits_total",
			Help: "Total number of cache hits by namespace",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_cache_misses_total",
			Help: "Total number of cache misses by namespace",
		},
		[]string{"namespace"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_cache_evictions_total",
			Help: "Total number of cache evictions by namespace and reason",
		},
		[]string{"namespace", "reason"}, // "lru", "ttl", "clear"
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_cache_size_bytes",
			Help: "Total serialized size of cached entries",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_cache_entries",
			Help: "Total number of cached entries",
		},
	)
)

// Timeline metrics
var (
	TimelineRegenerations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photovault_timeline_regenerations_total",
			Help: "Total number of timeline section regenerations",
		},
	)

	TimelineGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photovault_timeline_generation_duration_seconds",
			Help:    "Duration of timeline section generation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	TimelineSections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_timeline_sections",
			Help: "Number of sections in the last generated timeline",
		},
	)
)

// Filesystem metrics track retry behavior for media reads on network mounts.
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that exhausted all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_filesystem_stale_errors_total",
			Help: "Total number of NFS stale file handle errors encountered",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Backup metrics
var (
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_backups_total",
			Help: "Total number of backup operations by status",
		},
		[]string{"operation", "status"}, // operation: "create", "restore"
	)

	BackupSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photovault_backup_size_bytes",
			Help: "Size of the most recent backup in bytes",
		},
	)
)
