package exifmeta

import (
	"testing"
	"time"

	"photovault/internal/mediasource"
)

func TestExtractDeviceFallback(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	desc := mediasource.ItemDescriptor{
		ID:           "item-1",
		Filename:     "IMG_0001.jpg",
		Width:        4032,
		Height:       3024,
		CreationTime: created,
	}

	result := Extract(desc, PrivacyMinimal)

	if !result.TakenAt.Equal(created) {
		t.Errorf("TakenAt = %v, want device time %v", result.TakenAt, created)
	}
	if result.TimestampSource != SourceDevice {
		t.Errorf("TimestampSource = %v, want %v", result.TimestampSource, SourceDevice)
	}
	if result.Width != 4032 || result.Height != 3024 {
		t.Errorf("dimensions = %dx%d, want 4032x3024", result.Width, result.Height)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestExtractDeviceLocationFallback(t *testing.T) {
	t.Parallel()

	desc := mediasource.ItemDescriptor{
		ID:           "item-1",
		CreationTime: time.Now(),
		Location:     &mediasource.Coordinates{Latitude: 37.7749, Longitude: -122.4194},
	}

	result := Extract(desc, PrivacyMinimal)

	if result.Location == nil {
		t.Fatal("Location = nil, want device coordinates")
	}
	if result.Location.Latitude != 37.7749 || result.Location.Longitude != -122.4194 {
		t.Errorf("Location = %+v, want device coordinates", result.Location)
	}
	if result.UTCOffsetHours == nil {
		t.Fatal("UTCOffsetHours = nil, want estimate")
	}
	if *result.UTCOffsetHours != -8 {
		t.Errorf("UTCOffsetHours = %d, want -8", *result.UTCOffsetHours)
	}
}

func TestExtractRejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		loc  mediasource.Coordinates
	}{
		{name: "latitude too large", loc: mediasource.Coordinates{Latitude: 95, Longitude: 10}},
		{name: "latitude too small", loc: mediasource.Coordinates{Latitude: -90.5, Longitude: 10}},
		{name: "longitude too large", loc: mediasource.Coordinates{Latitude: 10, Longitude: 181}},
		{name: "longitude too small", loc: mediasource.Coordinates{Latitude: 10, Longitude: -200}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			loc := tt.loc
			desc := mediasource.ItemDescriptor{CreationTime: time.Now(), Location: &loc}
			result := Extract(desc, PrivacyMinimal)

			if result.Location != nil {
				t.Errorf("Location = %+v, want nil for out-of-range coordinates", result.Location)
			}
			if len(result.Warnings) == 0 {
				t.Error("expected a warning for dropped coordinates")
			}
		})
	}
}

func TestExtractCorruptEXIFIsNonFatal(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	desc := mediasource.ItemDescriptor{
		ID:           "item-1",
		CreationTime: created,
		RawEXIF:      []byte("this is not an exif block"),
	}

	result := Extract(desc, PrivacyMinimal)

	if !result.TakenAt.Equal(created) {
		t.Errorf("TakenAt = %v, want device fallback %v", result.TakenAt, created)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a decode warning for corrupt EXIF")
	}
}

func TestEstimateUTCOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		longitude float64
		expected  int
	}{
		{name: "greenwich", longitude: 0, expected: 0},
		{name: "san francisco", longitude: -122.4194, expected: -8},
		{name: "tokyo", longitude: 139.6917, expected: 9},
		{name: "sydney", longitude: 151.2093, expected: 10},
		{name: "rounds to nearest hour", longitude: 7.6, expected: 1},
		{name: "date line east", longitude: 180, expected: 12},
		{name: "date line west", longitude: -180, expected: -12},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := EstimateUTCOffset(tt.longitude); got != tt.expected {
				t.Errorf("EstimateUTCOffset(%v) = %d, want %d", tt.longitude, got, tt.expected)
			}
		})
	}
}
