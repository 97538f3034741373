// Package timeline shapes stored media items into date-bucketed sections
// and fixed-size virtualization slices for chronological scrolling.
// Section generation is pure; the Timeline type adds store access, a
// content-hash regeneration guard, and cache memoization on top.
package timeline
