// Package cache provides a namespaced in-memory LRU cache with per-entry
// TTLs and byte/entry budgets. It fronts expensive reads (query results,
// thumbnail handles, geocoding lookups) and is purely advisory: a cold
// cache changes latency, never results.
package cache
