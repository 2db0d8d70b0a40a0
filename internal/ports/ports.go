// Package ports defines the external collaborators the core pipeline
// consumes but never implements for real: frame/telemetry/ground sources
// and the detector abstraction (spec.md §1, §6, §9). Production
// implementations (video demuxing, DEM/DSM grid files, neural-network
// inference) are out of scope; this package exists so internal/runctl can
// be wired against any implementation, including the in-memory ones here
// used by tests.
package ports

import (
	"context"
	"image"
)

// Frame is one decoded video frame handed to the scanner: the original
// color image and its pre-thresholded single-channel counterpart, at a
// known capture time.
type Frame struct {
	Original  image.Image
	Threshold image.Image
	CaptureMS int64

	// CameraToVerticalForwardDeg is the gimbal's angle off vertical at
	// capture time (0 = straight down, 90 = level with the horizon). It
	// is independent of platform attitude and carried per-frame because
	// the gimbal can slew between flight steps.
	CameraToVerticalForwardDeg float64
}

// FrameSource produces frames in ascending order by index. Image dimensions
// are constant for the lifetime of a run.
type FrameSource interface {
	// Frame returns the frame at index, or ok=false past the end.
	Frame(ctx context.Context, index int) (frame Frame, ok bool, err error)
	// Len returns the total number of frames, if known in advance.
	Len() int
}

// StepPose is the attitude/altitude/ground-reference a FlightStep carries.
type StepPose struct {
	StepID    int64
	TimestampMS int64
	NorthingM float64
	EastingM  float64
	AltitudeM float64
	YawDeg    float64
	PitchDeg  float64
	RollDeg   float64
	DemM      float64
	LegID     int64
}

// Leg is a contiguous range of steps sharing a leg id.
type Leg struct {
	ID          int64
	FirstStepID int64
	LastStepID  int64
}

// PoseSource resolves a capture time to the enclosing pair of FlightSteps
// and exposes the run's legs (spec.md §6).
type PoseSource interface {
	// Interpolate returns the steps immediately before and at/after
	// timeMS, plus the weight on the earlier step (the weight on the later
	// step is 1-weight). At or outside the first/last step, before==after
	// with weight 1; exactly on an interior step, after is that step and
	// weight is 0.
	Interpolate(timeMS int64) (before, after StepPose, weight float64, err error)
	// Legs returns every leg in capture order.
	Legs() []Leg
}

// GroundSource exposes DEM and optional DSM elevation lookups. A query
// outside the grid returns ok=false; callers fall back per spec.md §4.3
// and §4.6.
type GroundSource interface {
	ElevationDEM(northingM, eastingM float64) (metersMSL float64, ok bool)
	ElevationDSM(northingM, eastingM float64) (metersMSL float64, ok bool)
}

// DetectedBox is one Yolo-mode detection: a pixel-space bounding box with a
// label and confidence.
type DetectedBox struct {
	X, Y, W, H float64 // pixel-space, not normalized: matches scanner's PixelBox convention
	Label      string
	Confidence float64
}

// Detector is the alternative to the Comb-mode scanner: an external
// object-detection backend (spec.md §2 step 1, §9).
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]DetectedBox, error)
}
