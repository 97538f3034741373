package mediasource

import (
	"context"
	"time"
)

// PermissionStatus reports whether the host has granted access to the
// device media library.
type PermissionStatus string

const (
	// PermissionGranted means media access is allowed.
	PermissionGranted PermissionStatus = "granted"
	// PermissionDenied means media access was refused.
	PermissionDenied PermissionStatus = "denied"
	// PermissionUndetermined means the user has not been asked yet.
	PermissionUndetermined PermissionStatus = "undetermined"
)

// MediaKind categorizes a library item.
type MediaKind string

const (
	// KindPhoto is a still image.
	KindPhoto MediaKind = "photo"
	// KindVideo is a video clip.
	KindVideo MediaKind = "video"
	// KindOther is an unsupported item kind.
	KindOther MediaKind = "other"
)

// ItemRef is a lightweight reference returned by enumeration. Detail and
// EXIF bytes are fetched separately via GetItemDetail.
type ItemRef struct {
	ID           string
	URI          string
	Filename     string
	MimeType     string
	CreationTime time.Time
}

// Coordinates is a device-reported GPS position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
	Accuracy  *float64
}

// ItemDescriptor is the full device-side description of one media item,
// including the raw EXIF block when the platform exposes it.
type ItemDescriptor struct {
	ID               string
	URI              string
	Filename         string
	FileSize         int64
	MimeType         string
	Width            int
	Height           int
	CreationTime     time.Time
	ModificationTime time.Time
	DurationSeconds  *float64 // videos only
	Location         *Coordinates
	RawEXIF          []byte // undecoded EXIF/TIFF block, may be nil
}

// ListFilters narrows an enumeration request.
type ListFilters struct {
	// Kinds restricts results to the given media kinds. Empty means all.
	Kinds []MediaKind
	// Since restricts results to items created after the given time.
	// Zero means no restriction; used by incremental scans.
	Since time.Time
}

// ListPage is one page of an enumeration, ordered by creation time
// ascending so that resumable cursors advance chronologically.
type ListPage struct {
	Items      []ItemRef
	NextCursor string
	HasMore    bool
}

// Provider is the host-supplied gateway to the device media library.
type Provider interface {
	// ListItems returns one page of item references starting at cursor.
	// An empty cursor starts from the beginning.
	ListItems(ctx context.Context, cursor string, pageSize int, filters ListFilters) (ListPage, error)

	// GetItemDetail returns the full descriptor for one item.
	GetItemDetail(ctx context.Context, id string) (ItemDescriptor, error)

	// PermissionStatus reports the current media-library permission.
	PermissionStatus() PermissionStatus

	// EstimateCount returns a best-effort total for progress reporting.
	// Implementations may return 0 when no cheap estimate exists.
	EstimateCount(ctx context.Context, filters ListFilters) (int, error)
}

// KindForMime maps a MIME type to a MediaKind.
func KindForMime(mimeType string) MediaKind {
	switch {
	case len(mimeType) >= 6 && mimeType[:6] == "image/":
		return KindPhoto
	case len(mimeType) >= 6 && mimeType[:6] == "video/":
		return KindVideo
	default:
		return KindOther
	}
}
