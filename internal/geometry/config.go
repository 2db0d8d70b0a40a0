package geometry

// Config holds the geometry layer's tunables (spec.md §4.3, §6).
type Config struct {
	ImageWidthPx  int
	ImageHeightPx int

	// HFOVDeg/VFOVDeg are used when a block does not carry its own
	// corrected value (span optimizer output overrides HFOVDeg per-span).
	HFOVDeg float64
	VFOVDeg float64

	// DSMStepM is the horizontal step size Δ_horiz used while walking the
	// sight-line toward the DSM during refinement.
	DSMStepM float64
	// DSMToleranceM is how close the stepped sight-altitude must come to
	// the queried DSM elevation before the refinement fixes a location.
	DSMToleranceM float64
	// ForwardMinDeg/ForwardMaxDeg bound the camera_to_vertical_forward_deg
	// range over which DSM refinement is attempted.
	ForwardMinDeg float64
	ForwardMaxDeg float64

	// BaselineMinM is the minimum object baseline for triangulation to be
	// attempted at all; BaselineAccurateM is the threshold above which the
	// result is not flagged as marginal.
	BaselineMinM      float64
	BaselineAccurateM float64
	// MinDeltaTan is the minimum |Δtan| of forward-down angle between the
	// first and last Real feature for baseline triangulation.
	MinDeltaTan float64
	// MinDistanceDownM is the minimum drone_distance_down required for
	// baseline triangulation.
	MinDistanceDownM float64
}

// DefaultConfig returns reasonable defaults for a typical gimbal-mounted
// thermal camera.
func DefaultConfig() Config {
	return Config{
		ImageWidthPx:      640,
		ImageHeightPx:     512,
		HFOVDeg:           42,
		VFOVDeg:           34,
		DSMStepM:          1.0,
		DSMToleranceM:     0.20,
		ForwardMinDeg:     10,
		ForwardMaxDeg:     80,
		BaselineMinM:      1.0,
		BaselineAccurateM: 2.0,
		MinDeltaTan:       0.1,
		MinDistanceDownM:  5.0,
	}
}
