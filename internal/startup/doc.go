// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - DATA_DIR: Path to the data directory holding the store, keys, and backups (default: /data)
//   - MEDIA_DIR: Path to the media library to index (default: /media)
//   - BACKUP_DIR: Path to the backup directory (default: DATA_DIR/backups)
//   - PORT: HTTP server port (default: 8080)
//   - DEVICE_ID: Identifier for this device in the item uniqueness invariant (default: local)
//   - METRICS_ENABLED: Expose the /metrics endpoint (default: true)
//   - SCAN_BATCH_SIZE: Items per scanner batch (default: 100)
//   - SCAN_BATCH_DELAY: Pause between scanner batches as Go duration (default: 0)
//   - MAX_FILE_SIZE: Skip media files larger than this many bytes, 0 for no limit (default: 0)
//   - PRIVACY_LEVEL: Metadata sanitization level - minimal, standard, high (default: standard)
//   - CACHE_MAX_BYTES: Cache memory budget in bytes (default: 64 MiB)
//   - CACHE_MAX_ENTRIES: Cache entry count budget (default: 10000)
//   - RETENTION_DAYS: Days soft-deleted items survive before purge (default: 30)
//   - TX_TIMEOUT: Write transaction timeout as Go duration (default: 30s)
//   - QUERY_TIMEOUT: Single statement timeout as Go duration (default: 5s)
//   - MAINTENANCE_INTERVAL: Store purge and cache sweep interval (default: 1h)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Data directory: Required, must be writable
//   - Backup directory: Required, created under the data directory by default
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogStoreInit]: Store initialization timing
//   - [LogEngineInit]: Engine configuration
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup
