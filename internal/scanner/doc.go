// Package scanner drives library indexing. It enumerates the device media
// source in bounded batches, extracts metadata per item, and writes
// through the store, reporting progress on a channel and honoring
// cooperative cancellation at batch boundaries.
package scanner
