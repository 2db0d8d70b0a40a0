// Package optimizer implements spec.md §4.4: the span optimizer, which
// post-processes a contiguous range of blocks either by grid-searching
// scalar pose-offset corrections that minimize summed object location
// scatter, or by multi-view-triangulating each object against its own
// ray bundle.
package optimizer

// Mode selects which span-optimizer protocol runs over a span.
type Mode string

const (
	// ModeAttitude runs the coordinate-descent grid search over
	// (altitude, yaw, pitch, hfov) offsets (spec.md §4.4 "attitude-search
	// mode").
	ModeAttitude Mode = "attitude"
	// ModeTriangulation runs the per-object ray-bundle bounded
	// nonlinear least-squares triangulation (spec.md §4.4 "triangulation
	// mode, finer"); this is the newer default.
	ModeTriangulation Mode = "triangulation"
)

// Config holds the span optimizer's tunables (spec.md §6 "Span" keys).
type Config struct {
	Mode Mode

	AltRangeM     float64
	YawRangeDeg   float64
	PitchRangeDeg float64
	// HFOVCandidatesDeg is the known discrete set the grid search tries,
	// spec.md §4.4 step 2.
	HFOVCandidatesDeg []float64

	// MinImprovementM gates acceptance of a trial correction; spec.md §4.4
	// step 4 and §8's optimizer contract.
	MinImprovementM float64

	// CompareIntervalFrames carries the Span section's
	// compare_interval_frames (spec.md §6). The run controller does not
	// read it: without legs it checks the zero-crossing close policy on
	// every block.
	CompareIntervalFrames int

	// FineStepM/FineStepDeg are the joint fine-tune box step sizes (spec.md
	// §4.4 step 3, "±1.25 box with 0.25 step").
	FineRangeM    float64
	FineRangeDeg  float64
	FineStepM     float64
	FineStepDeg   float64

	// PixelScaleDivisor is the DJI sensor-specific pixel-coordinate halving
	// adjustment (spec.md §9 Open Question 3), exposed as config rather
	// than hardcoded; default 1 (no adjustment).
	PixelScaleDivisor float64

	// TriangulationWorkers bounds the per-object triangulation worker pool
	// size (spec.md §5 "could be parallelized per-object"); 0 means
	// TriangulateSpan uses runtime.NumCPU().
	TriangulationWorkers int

	// MinDepthBelowPlatformM bounds a feature ray's λ parameter from below,
	// preventing the triangulation solver from placing an object above the
	// platform.
	MinDepthBelowPlatformM float64
}

// DefaultConfig returns reasonable span optimizer defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                   ModeTriangulation,
		AltRangeM:              10,
		YawRangeDeg:            5,
		PitchRangeDeg:          5,
		HFOVCandidatesDeg:      []float64{36, 38, 40, 42, 44, 57},
		MinImprovementM:        0.10,
		CompareIntervalFrames:  30,
		FineRangeM:             1.25,
		FineRangeDeg:           1.25,
		FineStepM:              0.25,
		FineStepDeg:            0.25,
		PixelScaleDivisor:      1,
		MinDepthBelowPlatformM: 5,
	}
}
