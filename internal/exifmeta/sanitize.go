package exifmeta

// PrivacyLevel controls how much identifying metadata survives extraction.
type PrivacyLevel string

const (
	// PrivacyMinimal keeps all extracted fields.
	PrivacyMinimal PrivacyLevel = "minimal"
	// PrivacyStandard strips authorship fields: user comments, artist,
	// copyright, and the software identifier.
	PrivacyStandard PrivacyLevel = "standard"
	// PrivacyHigh additionally strips the GPS position and derived
	// timezone estimate.
	PrivacyHigh PrivacyLevel = "high"
)

// ParsePrivacyLevel maps a config string to a PrivacyLevel, defaulting to
// standard for unrecognized values.
func ParsePrivacyLevel(s string) PrivacyLevel {
	switch PrivacyLevel(s) {
	case PrivacyMinimal, PrivacyStandard, PrivacyHigh:
		return PrivacyLevel(s)
	default:
		return PrivacyStandard
	}
}

// sanitize strips fields from result according to the privacy level.
func sanitize(result *Extracted, level PrivacyLevel) {
	if level == PrivacyMinimal {
		return
	}

	// standard and above
	result.UserComment = ""
	result.Artist = ""
	result.Copyright = ""
	result.Camera.Software = ""
	delete(result.Extra, "XPComment")
	delete(result.Extra, "XPAuthor")

	if level != PrivacyHigh {
		return
	}

	result.Location = nil
	result.UTCOffsetHours = nil
	for key := range result.Extra {
		if len(key) >= 3 && key[:3] == "GPS" {
			delete(result.Extra, key)
		}
	}
}
