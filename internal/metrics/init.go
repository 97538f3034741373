package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"create", "restore"} {
		for _, status := range []string{"success", "error"} {
			BackupsTotal.WithLabelValues(op, status)
		}
	}

	for _, scanType := range []string{"full", "incremental"} {
		for _, status := range []string{"completed", "failed", "cancelled"} {
			ScannerRunsTotal.WithLabelValues(scanType, status)
		}
	}

	for _, result := range []string{"commit", "rollback"} {
		StoreTransactionDuration.WithLabelValues(result)
	}

	for _, ns := range []string{"thumbnails", "queries", "geocode", "sections"} {
		CacheHits.WithLabelValues(ns)
		CacheMisses.WithLabelValues(ns)
		for _, reason := range []string{"lru", "ttl", "clear"} {
			CacheEvictions.WithLabelValues(ns, reason)
		}
	}
}
