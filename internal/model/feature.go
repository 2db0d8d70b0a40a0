package model

// FeatureType distinguishes a Real detection from a synthesized placeholder
// or an absorbed fragment (spec.md §3).
type FeatureType string

const (
	// FeatureReal is a genuine detection with hot pixels.
	FeatureReal FeatureType = "real"
	// FeatureUnreal is a placeholder emitted for a tracked object that saw
	// no detection this block; it carries no pixels and inherits its
	// height from the claiming object.
	FeatureUnreal FeatureType = "unreal"
	// FeatureConsumed is a Real feature whose pixels were absorbed into
	// another Real feature of the same block and object (fragmentation).
	// It keeps its id for audit but owns no pixels and no object.
	FeatureConsumed FeatureType = "consumed"
)

// HeightAlgorithm records which method produced a feature's above-ground
// height, or which recoverable failure left it unset (spec.md §4.3, §4.6,
// §7).
type HeightAlgorithm string

const (
	HeightNone           HeightAlgorithm = ""
	HeightLOS            HeightAlgorithm = "LOS"
	HeightBaseline       HeightAlgorithm = "Baseline"
	HeightCopy           HeightAlgorithm = "Copy"
	HeightTriangulated   HeightAlgorithm = "Triangulated"
	HeightErrBaselineLen HeightAlgorithm = "BL_TooShort"
	HeightErrGeometry    HeightAlgorithm = "GeometryOutOfRange"
	HeightErrGround      HeightAlgorithm = "GroundLookupOutOfGrid"
)

// PixelHeat is a single hot pixel sampled by the scanner: its row/column in
// the frame and the mean-BGR heat value observed there.
type PixelHeat struct {
	Y, X int
	Heat float64
}

// Feature is one detection within a block (spec.md §3).
type Feature struct {
	ID      int64
	BlockID int64
	Type    FeatureType

	Box PixelBox

	// Pixels holds the hot-pixel set for Real features only.
	Pixels []PixelHeat

	HeatMin  float64
	HeatMax  float64
	HotCount int

	// Significant mirrors the owning object's significance once back-filled
	// (spec.md §4.2 "back-marked significant"); for an un-owned feature it
	// reflects only the feature's own count/density gate.
	Significant bool
	// Attributes is a short human-readable string encoding which
	// significance criteria did/did not pass, e.g. "Yes" or "No: pd".
	Attributes string

	// Tracking is true while the feature is owned by a being_tracked
	// object; it goes false once the owning object stops tracking, letting
	// a feature audit trail distinguish "never claimed" from "claimed then
	// track died".
	Tracking bool

	// ObjectID is the owning object, or 0 if unclaimed (Real, fresh this
	// block) or cleared (Consumed).
	ObjectID int64

	Location       WorldPoint
	HeightM        float64
	HeightAlgo     HeightAlgorithm

	// Label/Confidence are populated only in Yolo mode.
	Label      string
	Confidence float64
}

// Density returns hot_pixels / pixel_box_area, the spec's density metric.
// Returns 0 for a zero-area box.
func (f *Feature) Density() float64 {
	area := f.Box.Area()
	if area <= 0 {
		return 0
	}
	return float64(f.HotCount) / float64(area)
}

// IsViable reports the "not over-sized and not under-dense" gate spec.md
// §4.2 requires of both a candidate feature and an object's last feature
// before a claim may proceed.
func (f *Feature) IsViable(maxSize int, minDensityPct float64) bool {
	if f.Box.W > maxSize || f.Box.H > maxSize {
		return false
	}
	return f.Density() >= minDensityPct
}
