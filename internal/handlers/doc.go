// Package handlers provides HTTP request handlers for the indexing API.
//
// It includes handlers for:
//   - Scan lifecycle (start, cancel, status, progress streaming)
//   - Item queries, favorites, and soft deletion
//   - Timeline sections, slices, and date scrolling
//   - Albums
//   - Backup, restore, and cache maintenance
//   - Health checks and Prometheus metrics
package handlers
