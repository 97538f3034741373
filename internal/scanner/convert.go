package scanner

import (
	"fmt"
	"strconv"

	"photovault/internal/exifmeta"
	"photovault/internal/mediasource"
	"photovault/internal/store"
)

// buildWrite assembles the single atomic store write for one item:
// the row itself, its metadata entries, and its location link.
func buildWrite(desc mediasource.ItemDescriptor, meta exifmeta.Extracted, deviceID string) store.ItemWrite {
	item := store.MediaItem{
		ID:               desc.ID,
		DeviceID:         deviceID,
		URI:              desc.URI,
		Filename:         desc.Filename,
		FileSize:         desc.FileSize,
		MimeType:         desc.MimeType,
		Width:            pickDimension(meta.Width, desc.Width),
		Height:           pickDimension(meta.Height, desc.Height),
		CreationTime:     meta.TakenAt,
		ModificationTime: desc.ModificationTime,
		DurationSeconds:  desc.DurationSeconds,
	}
	if item.MimeType == "" {
		item.MimeType = mediasource.MimeForFilename(desc.Filename)
	}

	write := store.ItemWrite{
		Item:     item,
		Metadata: metadataEntries(desc.ID, meta),
	}

	if meta.Location != nil {
		write.Location = &store.Location{
			Latitude:  meta.Location.Latitude,
			Longitude: meta.Location.Longitude,
			Altitude:  meta.Location.Altitude,
			Accuracy:  meta.Location.Accuracy,
		}
		write.Confidence = locationConfidence(meta)
	}
	return write
}

func pickDimension(fromEXIF, fromDevice int) int {
	if fromEXIF > 0 {
		return fromEXIF
	}
	return fromDevice
}

// locationConfidence weights EXIF-sourced positions above device fallbacks.
func locationConfidence(meta exifmeta.Extracted) float64 {
	if meta.TimestampSource == exifmeta.SourceEXIF {
		return 1.0
	}
	return 0.7
}

// metadataEntries flattens the extracted metadata into namespaced rows.
// Only present fields produce entries; the sanitizer has already removed
// whatever the privacy level forbids.
func metadataEntries(itemID string, meta exifmeta.Extracted) []store.MetadataEntry {
	var entries []store.MetadataEntry
	add := func(key, value string) {
		if value == "" {
			return
		}
		entries = append(entries, store.MetadataEntry{
			MediaItemID: itemID,
			Namespace:   store.NamespaceEXIF,
			Key:         key,
			Value:       value,
		})
	}

	add("timestamp.source", string(meta.TimestampSource))
	if meta.UTCOffsetHours != nil {
		add("timestamp.utc_offset_hours", strconv.Itoa(*meta.UTCOffsetHours))
	}

	add("camera.make", meta.Camera.Make)
	add("camera.model", meta.Camera.Model)
	add("camera.software", meta.Camera.Software)

	if meta.Exposure.Aperture != nil {
		add("exposure.aperture", fmt.Sprintf("f/%.1f", *meta.Exposure.Aperture))
	}
	if meta.Exposure.ShutterSpeed != nil {
		add("exposure.shutter_speed", *meta.Exposure.ShutterSpeed)
	}
	if meta.Exposure.ISO != nil {
		add("exposure.iso", strconv.Itoa(*meta.Exposure.ISO))
	}
	if meta.Exposure.FocalLength != nil {
		add("exposure.focal_length_mm", strconv.FormatFloat(*meta.Exposure.FocalLength, 'f', 1, 64))
	}
	if meta.Exposure.Flash != nil {
		add("exposure.flash", strconv.FormatBool(*meta.Exposure.Flash))
	}

	if meta.Orientation != nil {
		add("image.orientation", strconv.Itoa(*meta.Orientation))
	}

	add("note.user_comment", meta.UserComment)
	add("note.artist", meta.Artist)
	add("note.copyright", meta.Copyright)

	for tag, value := range meta.Extra {
		add("extra."+tag, value)
	}

	for i, warning := range meta.Warnings {
		entries = append(entries, store.MetadataEntry{
			MediaItemID: itemID,
			Namespace:   store.NamespaceSystem,
			Key:         fmt.Sprintf("extraction.warning.%d", i),
			Value:       warning,
		})
	}
	return entries
}
