// Package workers provides worker-count heuristics for sizing concurrent
// operations based on available CPU resources.
//
// The scanner uses ForIO to size the per-batch detail prefetch pool; cache
// maintenance and backup checksumming use ForCPU. Counts respect container
// CPU limits via GOMAXPROCS and can be overridden with the SCAN_WORKERS
// environment variable.
package workers
