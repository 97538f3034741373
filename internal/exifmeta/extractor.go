package exifmeta

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"photovault/internal/mediasource"
)

// exifTimeLayout is the timestamp format used by EXIF DateTimeOriginal.
const exifTimeLayout = "2006:01:02 15:04:05"

// TimestampSource records where the canonical timestamp came from.
type TimestampSource string

const (
	// SourceEXIF means the timestamp was parsed from EXIF DateTimeOriginal.
	SourceEXIF TimestampSource = "exif"
	// SourceDevice means the device-reported creation time was used.
	SourceDevice TimestampSource = "device"
)

// CameraInfo holds camera identification fields.
type CameraInfo struct {
	Make     string
	Model    string
	Software string
}

// ExposureInfo holds capture settings.
type ExposureInfo struct {
	Aperture     *float64
	ShutterSpeed *string
	ISO          *int
	FocalLength  *float64
	Flash        *bool
}

// Extracted is the normalized result of metadata extraction. Well-known
// fields are typed; unrecognized vendor tags land in Extra.
type Extracted struct {
	TakenAt         time.Time
	TimestampSource TimestampSource
	UTCOffsetHours  *int

	Camera      CameraInfo
	Exposure    ExposureInfo
	Width       int
	Height      int
	Orientation *int

	Location *mediasource.Coordinates

	UserComment string
	Artist      string
	Copyright   string

	// Extra holds vendor EXIF tags with no typed field, keyed by tag name.
	Extra map[string]string

	// Warnings lists non-blocking parse problems.
	Warnings []string
}

// typedFields is the set of EXIF tag names already represented by typed
// fields on Extracted; Walk skips these when filling Extra.
var typedFields = map[exif.FieldName]bool{
	exif.DateTimeOriginal: true,
	exif.Make:             true,
	exif.Model:            true,
	exif.Software:         true,
	exif.FNumber:          true,
	exif.ExposureTime:     true,
	exif.ISOSpeedRatings:  true,
	exif.FocalLength:      true,
	exif.Flash:            true,
	exif.PixelXDimension:  true,
	exif.PixelYDimension:  true,
	exif.Orientation:      true,
	exif.UserComment:      true,
	exif.Artist:           true,
	exif.Copyright:        true,
	exif.GPSLatitude:      true,
	exif.GPSLatitudeRef:   true,
	exif.GPSLongitude:     true,
	exif.GPSLongitudeRef:  true,
	exif.GPSAltitude:      true,
	exif.GPSAltitudeRef:   true,
}

// Extract derives normalized metadata from a device descriptor. It never
// returns an error: corrupt or absent EXIF degrades to device-reported
// fields plus warnings, so one bad item cannot abort a scan batch.
func Extract(desc mediasource.ItemDescriptor, level PrivacyLevel) Extracted {
	result := Extracted{
		TakenAt:         desc.CreationTime,
		TimestampSource: SourceDevice,
		Width:           desc.Width,
		Height:          desc.Height,
		Extra:           make(map[string]string),
	}

	if len(desc.RawEXIF) > 0 {
		parseEXIF(desc.RawEXIF, &result)
	}

	// Device location is the fallback when EXIF carried no GPS block.
	if result.Location == nil && desc.Location != nil {
		loc := *desc.Location
		result.Location = &loc
	}
	result.Location = validateLocation(result.Location, &result.Warnings)

	// Rough timezone estimate; only meaningful with both a position and a
	// usable timestamp.
	if result.Location != nil && !result.TakenAt.IsZero() {
		offset := EstimateUTCOffset(result.Location.Longitude)
		result.UTCOffsetHours = &offset
	}

	sanitize(&result, level)
	return result
}

// parseEXIF fills result from the raw EXIF block, accumulating warnings
// instead of failing.
func parseEXIF(raw []byte, result *Extracted) {
	exifData, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("exif decode failed: %v", err))
		return
	}

	if taken, ok := parseDateTimeOriginal(exifData, &result.Warnings); ok {
		result.TakenAt = taken
		result.TimestampSource = SourceEXIF
	}

	result.Camera.Make = getString(exifData, exif.Make)
	result.Camera.Model = getString(exifData, exif.Model)
	result.Camera.Software = getString(exifData, exif.Software)

	result.Exposure.Aperture = getRational(exifData, exif.FNumber)
	result.Exposure.ShutterSpeed = getShutterSpeed(exifData)
	result.Exposure.ISO = getInt(exifData, exif.ISOSpeedRatings)
	result.Exposure.FocalLength = getRational(exifData, exif.FocalLength)
	if flash := getInt(exifData, exif.Flash); flash != nil {
		fired := *flash&1 == 1
		result.Exposure.Flash = &fired
	}

	if w := getInt(exifData, exif.PixelXDimension); w != nil && *w > 0 {
		result.Width = *w
	}
	if h := getInt(exifData, exif.PixelYDimension); h != nil && *h > 0 {
		result.Height = *h
	}
	result.Orientation = getInt(exifData, exif.Orientation)

	result.UserComment = getString(exifData, exif.UserComment)
	result.Artist = getString(exifData, exif.Artist)
	result.Copyright = getString(exifData, exif.Copyright)

	if lat, lon, err := exifData.LatLong(); err == nil {
		loc := &mediasource.Coordinates{Latitude: lat, Longitude: lon}
		if alt := getRational(exifData, exif.GPSAltitude); alt != nil {
			loc.Altitude = alt
		}
		result.Location = loc
	}

	if err := exifData.Walk(extraWalker{result.Extra}); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("exif walk failed: %v", err))
	}
}

// extraWalker collects unrecognized tags into the escape-hatch map.
type extraWalker struct {
	extra map[string]string
}

func (w extraWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if typedFields[name] {
		return nil
	}
	value := strings.TrimRight(tag.String(), "\x00\"")
	value = strings.TrimLeft(value, "\"")
	if value != "" {
		w.extra[string(name)] = value
	}
	return nil
}

// parseDateTimeOriginal parses EXIF DateTimeOriginal in local time.
func parseDateTimeOriginal(exifData *exif.Exif, warnings *[]string) (time.Time, bool) {
	tag, err := exifData.Get(exif.DateTimeOriginal)
	if err != nil || tag == nil {
		return time.Time{}, false
	}

	raw, err := tag.StringVal()
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("DateTimeOriginal unreadable: %v", err))
		return time.Time{}, false
	}

	raw = strings.TrimRight(raw, "\x00")
	parsed, err := time.ParseInLocation(exifTimeLayout, raw, time.Local)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("DateTimeOriginal %q unparsable: %v", raw, err))
		return time.Time{}, false
	}
	return parsed, true
}

// validateLocation drops coordinates outside the valid range.
func validateLocation(loc *mediasource.Coordinates, warnings *[]string) *mediasource.Coordinates {
	if loc == nil {
		return nil
	}
	if math.Abs(loc.Latitude) > 90 || math.Abs(loc.Longitude) > 180 {
		*warnings = append(*warnings, fmt.Sprintf("coordinates out of range: %.5f, %.5f", loc.Latitude, loc.Longitude))
		return nil
	}
	return loc
}

// EstimateUTCOffset estimates a UTC offset in whole hours from longitude
// using the 15 degrees-per-hour rule. This is a rough heuristic with no
// DST or political-boundary handling and must not be treated as an
// authoritative timezone resolution.
func EstimateUTCOffset(longitude float64) int {
	return int(math.Round(longitude / 15))
}

// helper to safely get and convert a rational tag (like FNumber, FocalLength)
func getRational(exifData *exif.Exif, name exif.FieldName) *float64 {
	tag, err := exifData.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		// sometimes stored as Int instead
		if valInt, errInt := tag.Int(0); errInt == nil {
			fVal := float64(valInt)
			return &fVal
		}
		return nil
	}
	val := float64(num) / float64(den)
	return &val
}

// helper to safely get and convert an integer tag (like ISO)
func getInt(exifData *exif.Exif, name exif.FieldName) *int {
	tag, err := exifData.Get(name)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &val
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, name exif.FieldName) string {
	tag, err := exifData.Get(name)
	if err != nil || tag == nil {
		return ""
	}
	val, err := tag.StringVal()
	if err != nil {
		val = tag.String()
		val = strings.Trim(val, "\"")
	}
	return strings.TrimRight(val, "\x00")
}

// getShutterSpeed formats ExposureTime as a conventional fraction.
func getShutterSpeed(exifData *exif.Exif) *string {
	tag, err := exifData.Get(exif.ExposureTime)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}

	if num == 1 && den > 1 {
		s := fmt.Sprintf("1/%d", den)
		return &s
	}

	val := float64(num) / float64(den)
	if val >= 1.0 {
		s := fmt.Sprintf("%.1fs", val)
		return &s
	}
	s := fmt.Sprintf("%.4fs", val)
	return &s
}
