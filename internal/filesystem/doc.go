/*
Package filesystem provides resilient filesystem operations with automatic retry
logic for NFS stale file handle errors.

# Purpose

This package wraps standard filesystem operations (os.Stat, os.Open, os.ReadDir)
with retry logic designed to handle transient NFS failures, particularly ESTALE
(stale file handle) errors that occur when a network-mounted media library is
accessed during network issues or server-side changes.

# Usage

Basic usage with default retry configuration:

	import "photovault/internal/filesystem"

	info, err := filesystem.StatWithRetry("/media/photos/IMG_0001.jpg", filesystem.DefaultRetryConfig())
	if err != nil {
	    log.Fatal(err)
	}

	file, err := filesystem.OpenWithRetry("/media/photos/IMG_0001.jpg", filesystem.DefaultRetryConfig())
	if err != nil {
	    log.Fatal(err)
	}
	defer file.Close()

Custom retry configuration:

	config := filesystem.RetryConfig{
	    MaxRetries:     5,
	    InitialBackoff: 100 * time.Millisecond,
	    MaxBackoff:     1 * time.Second,
	}
	info, err := filesystem.StatWithRetry(path, config)

# Retry Behavior

The retry logic implements exponential backoff with the following defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only NFS stale file handle errors (ESTALE) trigger retries. All other errors
fail immediately without retry attempts.

# Metric Labels

Operations are labeled with a volume name resolved by longest-prefix match on
the path. Configure the package-level resolver once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "media":   cfg.MediaDir,
	    "data":    cfg.DataDir,
	    "backups": cfg.BackupDir,
	}))

Per-operation resolvers can be supplied on RetryConfig for tests.
*/
package filesystem
