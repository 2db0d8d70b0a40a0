// Package scanner implements spec.md §4.1: grouping hot pixels into
// per-frame features under density and size constraints, with an
// expanding/shrinking flood in Comb mode, or heat aggregation over
// externally supplied boxes in Yolo mode.
package scanner

// Config holds the scanner's tunables (spec.md §6 "Scanner" keys).
type Config struct {
	// FeatureMinPixels is the hot-pixel-count gate for significance.
	FeatureMinPixels int
	// FeatureMaxSize is the maximum pixel-box width or height before a
	// feature is considered over-sized.
	FeatureMaxSize int
	// FeatureMinDensityPct is the hot_pixels/area gate for significance
	// and the under-dense stop condition, in [0,1].
	FeatureMinDensityPct float64
}

// DefaultConfig returns reasonable defaults for an 8mm-class thermal
// sensor at typical survey altitude.
func DefaultConfig() Config {
	return Config{
		FeatureMinPixels:     8,
		FeatureMaxSize:       60,
		FeatureMinDensityPct: 0.35,
	}
}
