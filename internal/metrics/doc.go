// Package metrics provides Prometheus instrumentation for the photovault
// engine.
//
// All metrics are prefixed with "photovault_" to avoid naming collisions
// with other applications. Metrics are organized by subsystem: HTTP, store,
// scanner, cache, timeline, and backup. Registration happens at package
// init via promauto; InitializeMetrics pre-populates label combinations so
// every series is exported from the first scrape.
package metrics
