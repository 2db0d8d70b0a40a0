package model

// Block is the record of one processed frame, stamped with interpolated
// platform pose. Blocks are never mutated after construction; the run
// controller is the only writer.
type Block struct {
	ID int64

	InputFrameID int64
	InputFrameMS int64

	// Interpolated platform state at this frame's capture time.
	NorthingM float64
	EastingM  float64
	AltitudeM float64
	YawDeg    float64
	PitchDeg  float64
	RollDeg   float64

	// CameraToVerticalForwardDeg is the gimbal forward-down angle supplied
	// for this block (spec.md §4.3).
	CameraToVerticalForwardDeg float64

	// Nearest FlightStep this block interpolates from, and the pair of
	// interpolation weights (they sum to 1).
	StepID     int64
	StepWeight float64 // weight on the step at or before this block
	NextWeight float64 // weight on the following step

	// SumLinealM is the cumulative linear distance flown as of this block;
	// monotonic non-decreasing across a run.
	SumLinealM float64

	// InputImageDemM is the DEM value reported by the input frame metadata,
	// used as a geometry fallback (spec.md §4.3) when DSM/DEM lookups miss.
	InputImageDemM float64

	// LegID is the flight leg this block belongs to, or 0 if legs are not
	// supplied by the pose source.
	LegID int64

	// IsReset marks an intentional input_frame_ms discontinuity (e.g. a new
	// video file spliced into the same run), which would otherwise look
	// like a monotonicity violation.
	IsReset bool

	// MinFeatureID/MaxFeatureID materialize the block→feature relation as an
	// id range; zero when the block produced no features.
	MinFeatureID int64
	MaxFeatureID int64
}

// FeatureCount returns how many features this block owns, using the
// materialized id range.
func (b *Block) FeatureCount() int64 {
	if b.MaxFeatureID == 0 || b.MinFeatureID == 0 {
		return 0
	}
	return b.MaxFeatureID - b.MinFeatureID + 1
}

// FlightStep is an external telemetry sample the run controller borrows
// pose from. Blocks never mutate a FlightStep; the span optimizer is the
// only writer, attaching a correction once per span.
type FlightStep struct {
	ID int64

	TimestampMS int64

	NorthingM float64
	EastingM  float64
	AltitudeM float64
	YawDeg    float64
	PitchDeg  float64
	RollDeg   float64

	// DemM is the step's own ground-reference elevation, used as geometry's
	// last-resort DEM fallback.
	DemM float64

	// LegID ties the step to a contiguous flight leg, or 0 if none.
	LegID int64

	// Correction applied by the span optimizer; zero value means
	// uncorrected.
	Correction Correction
}

// Correction holds the scalar pose-offset the span optimizer may attach to
// a FlightStep (spec.md §4.4).
type Correction struct {
	FixAltM   float64
	FixYawDeg float64
	FixPitchDeg float64
}

// Applied reports whether a non-zero correction has been attached.
func (c Correction) Applied() bool {
	return c.FixAltM != 0 || c.FixYawDeg != 0 || c.FixPitchDeg != 0
}
