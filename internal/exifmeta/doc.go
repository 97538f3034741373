// Package exifmeta turns a raw media descriptor into normalized metadata:
// EXIF camera and exposure fields, a canonical creation timestamp, a
// validated GPS position, and a coarse timezone estimate.
//
// Extraction is pure with respect to the descriptor: it performs no I/O
// beyond parsing the descriptor's embedded EXIF block, and it never fails
// an item outright. Parse problems degrade to best-effort partial results
// with non-blocking warnings so a scan can continue past corrupt files.
package exifmeta
