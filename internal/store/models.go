package store

import "time"

// MediaItem is one indexed photo or video.
type MediaItem struct {
	ID               string     `json:"id"`
	DeviceID         string     `json:"deviceId"`
	URI              string     `json:"uri"`
	Filename         string     `json:"filename"`
	FileSize         int64      `json:"fileSize"`
	MimeType         string     `json:"mimeType"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	CreationTime     time.Time  `json:"creationTime"`
	ModificationTime time.Time  `json:"modificationTime"`
	DurationSeconds  *float64   `json:"durationSeconds,omitempty"`
	IsFavorite       bool       `json:"isFavorite"`
	IsDeleted        bool       `json:"isDeleted"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Location         *Location  `json:"location,omitempty"`
}

// Location is a deduplicated GPS position shared by many items.
type Location struct {
	ID         int64      `json:"id"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Altitude   *float64   `json:"altitude,omitempty"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	City       string     `json:"city,omitempty"`
	State      string     `json:"state,omitempty"`
	Country    string     `json:"country,omitempty"`
	GeocodedAt *time.Time `json:"geocodedAt,omitempty"`
}

// MetadataNamespace partitions metadata keys by origin.
type MetadataNamespace string

const (
	// NamespaceEXIF holds fields parsed from the EXIF block.
	NamespaceEXIF MetadataNamespace = "exif"
	// NamespaceCustom holds user-supplied fields.
	NamespaceCustom MetadataNamespace = "custom"
	// NamespaceAI holds machine-derived fields.
	NamespaceAI MetadataNamespace = "ai"
	// NamespaceSystem holds engine-internal fields.
	NamespaceSystem MetadataNamespace = "system"
)

// ValidNamespace reports whether ns is one of the known namespaces.
func ValidNamespace(ns MetadataNamespace) bool {
	switch ns {
	case NamespaceEXIF, NamespaceCustom, NamespaceAI, NamespaceSystem:
		return true
	}
	return false
}

// MetadataEntry is one (item, namespace, key) value.
type MetadataEntry struct {
	MediaItemID string            `json:"mediaItemId"`
	Namespace   MetadataNamespace `json:"namespace"`
	Key         string            `json:"key"`
	Value       string            `json:"value"`
}

// AlbumType distinguishes how an album's membership is maintained.
type AlbumType string

const (
	// AlbumAuto is populated by the engine.
	AlbumAuto AlbumType = "auto"
	// AlbumCustom is user curated.
	AlbumCustom AlbumType = "custom"
	// AlbumLocation groups items by place.
	AlbumLocation AlbumType = "location"
	// AlbumDate groups items by date range.
	AlbumDate AlbumType = "date"
)

// Album is a virtual grouping of items. PhotoCount is derived state kept
// consistent with membership inside the same transaction.
type Album struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Type       AlbumType `json:"type"`
	PhotoCount int       `json:"photoCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ScanType distinguishes full from incremental runs.
type ScanType string

const (
	// ScanFull enumerates the entire library.
	ScanFull ScanType = "full"
	// ScanIncremental enumerates items newer than the last success.
	ScanIncremental ScanType = "incremental"
)

// ScanStatus is the lifecycle state of one scan run.
type ScanStatus string

const (
	// ScanRunning means the scan is in progress.
	ScanRunning ScanStatus = "running"
	// ScanCompleted means the scan finished normally.
	ScanCompleted ScanStatus = "completed"
	// ScanFailed means the scan aborted or exceeded the error budget.
	ScanFailed ScanStatus = "failed"
	// ScanCancelled means the scan was stopped cooperatively.
	ScanCancelled ScanStatus = "cancelled"
)

// ScanRecord is the persisted history of one scan run.
type ScanRecord struct {
	ID           string     `json:"id"`
	ScanType     ScanType   `json:"scanType"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Processed    int        `json:"processed"`
	Added        int        `json:"added"`
	Updated      int        `json:"updated"`
	ItemErrors   int        `json:"itemErrors"`
	Status       ScanStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// BoundingBox is a geographic query window.
type BoundingBox struct {
	MinLatitude  float64 `json:"minLatitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
	MinLongitude float64 `json:"minLongitude"`
	MaxLongitude float64 `json:"maxLongitude"`
}

// QueryFilters narrows QueryItems. Date-range and bounding-box filters are
// applied in SQL, not as post-filters.
type QueryFilters struct {
	StartDate      *time.Time   `json:"startDate,omitempty"`
	EndDate        *time.Time   `json:"endDate,omitempty"`
	Bounds         *BoundingBox `json:"bounds,omitempty"`
	MimeType       string       `json:"mimeType,omitempty"`
	FavoritesOnly  bool         `json:"favoritesOnly,omitempty"`
	IncludeDeleted bool         `json:"includeDeleted,omitempty"`
	Limit          int          `json:"limit,omitempty"`
	Offset         int          `json:"offset,omitempty"`
}

// Page is one page of query results ordered by creation time descending.
type Page struct {
	Items      []MediaItem `json:"items"`
	TotalItems int         `json:"totalItems"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// WriteResult reports what SaveItem did with an item.
type WriteResult int

const (
	// WriteSkipped means the stored row was already current.
	WriteSkipped WriteResult = iota
	// WriteInserted means a new row was created.
	WriteInserted
	// WriteUpdated means an existing row was refreshed.
	WriteUpdated
)

func (w WriteResult) String() string {
	switch w {
	case WriteInserted:
		return "inserted"
	case WriteUpdated:
		return "updated"
	default:
		return "skipped"
	}
}
