package domain

// Bucket is the low/mid/high classification of a 1–100 severity level.
type Bucket string

const (
	BucketLow  Bucket = "low"
	BucketMid  Bucket = "mid"
	BucketHigh Bucket = "high"
)

// Bucket thresholds. A level at or above midThreshold is mid, at or above
// highThreshold is high.
const (
	midThreshold  = 34
	highThreshold = 67
)

// BucketOf classifies a level or a mean level. Fractional means between
// thresholds (e.g. 33.5) fall into the lower bucket.
func BucketOf(level float64) Bucket {
	switch {
	case level >= highThreshold:
		return BucketHigh
	case level >= midThreshold:
		return BucketMid
	default:
		return BucketLow
	}
}

// ParseBucket converts a bucket name into a Bucket.
func ParseBucket(s string) (Bucket, bool) {
	switch Bucket(s) {
	case BucketLow, BucketMid, BucketHigh:
		return Bucket(s), true
	default:
		return "", false
	}
}

// LevelClass is the display class attached to a row's level cell.
func (b Bucket) LevelClass() string {
	return "lvl-" + string(b)
}

// TierClass is the display class attached to the mean level in the summary.
func (b Bucket) TierClass() string {
	switch b {
	case BucketHigh:
		return "bad"
	case BucketMid:
		return "warn"
	default:
		return "ok"
	}
}

// Recommendation returns the fixed guidance text for a tier.
func (b Bucket) Recommendation() string {
	switch b {
	case BucketHigh:
		return "Very high pollution level. Pollution reduction measures are recommended."
	case BucketMid:
		return "Moderate pollution level. Monitoring is recommended."
	default:
		return "Low pollution level."
	}
}
