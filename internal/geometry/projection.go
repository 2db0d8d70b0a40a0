package geometry

import (
	"math"

	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/ports"
)

// Pose is the subset of a Block's interpolated platform state the
// projection math needs, kept separate from model.Block so callers (e.g.
// the span optimizer trying a candidate correction) can pass a perturbed
// copy without mutating the catalog.
type Pose struct {
	NorthingM                  float64
	EastingM                   float64
	AltitudeM                  float64
	YawDeg                     float64
	PitchDeg                   float64
	RollDeg                    float64
	CameraToVerticalForwardDeg float64
}

// PoseFromBlock extracts a Pose from a block.
func PoseFromBlock(b *model.Block) Pose {
	return Pose{
		NorthingM:                  b.NorthingM,
		EastingM:                   b.EastingM,
		AltitudeM:                  b.AltitudeM,
		YawDeg:                     b.YawDeg,
		PitchDeg:                   b.PitchDeg,
		RollDeg:                    b.RollDeg,
		CameraToVerticalForwardDeg: b.CameraToVerticalForwardDeg,
	}
}

// FlatGroundLocation computes the first-approximation world location for a
// feature's pixel box under the flat-ground assumption (spec.md §4.3
// "Flat-ground location"): the line-of-sight from the feature's image
// fraction, intersected with the plane at altitude_of_drone - distance_down,
// where distance_down is read from the step's DEM.
func FlatGroundLocation(box model.PixelBox, pose Pose, groundDemM float64, cfg Config) model.WorldPoint {
	xFrac, yFrac := FeatureFraction(box, cfg.ImageWidthPx, cfg.ImageHeightPx)
	ray := lineOfSight(xFrac, yFrac, cfg, pose.CameraToVerticalForwardDeg, pose.YawDeg, pose.PitchDeg, pose.RollDeg)

	distanceDown := pose.AltitudeM - groundDemM
	if ray.U >= 0 || distanceDown <= 0 {
		// Ray points up or the platform is at/below ground: degenerate,
		// return directly beneath the platform rather than divide by zero.
		return model.WorldPoint{NorthingM: pose.NorthingM, EastingM: pose.EastingM, AltitudeM: groundDemM}
	}

	lambda := distanceDown / -ray.U
	return model.WorldPoint{
		NorthingM: pose.NorthingM + ray.N*lambda,
		EastingM:  pose.EastingM + ray.E*lambda,
		AltitudeM: groundDemM,
	}
}

// RayDirection returns the unit line-of-sight vector for a feature's pixel
// box under pose, expressed as a north/east/up triple (reusing WorldPoint
// as a convenient 3-vector rather than a world-space position). Exposed so
// the span optimizer's triangulation mode can build a Ray without reaching
// into this package's unexported vector math.
func RayDirection(box model.PixelBox, pose Pose, cfg Config) model.WorldPoint {
	xFrac, yFrac := FeatureFraction(box, cfg.ImageWidthPx, cfg.ImageHeightPx)
	ray := lineOfSight(xFrac, yFrac, cfg, pose.CameraToVerticalForwardDeg, pose.YawDeg, pose.PitchDeg, pose.RollDeg)
	return model.WorldPoint{NorthingM: ray.N, EastingM: ray.E, AltitudeM: ray.U}
}

// RefineWithDSM walks the sight-line from the mid-point between the
// platform and the flat-ground estimate toward the ground, stepping
// Δ_horiz meters at a time and lowering the sight altitude by
// Δ_horiz / tan(camera_to_vertical_forward_deg) per step, until the
// sight-altitude comes within cfg.DSMToleranceM of the DSM (spec.md §4.3
// "Line-of-sight to DSM"). Only attempted when camera_to_vertical is in
// [ForwardMinDeg, ForwardMaxDeg]; otherwise ok is false and the
// flat-ground estimate should be kept.
func RefineWithDSM(flat model.WorldPoint, pose Pose, ground ports.GroundSource, cfg Config) (loc model.WorldPoint, heightM float64, ok bool) {
	fwd := pose.CameraToVerticalForwardDeg
	if fwd < cfg.ForwardMinDeg || fwd > cfg.ForwardMaxDeg {
		return model.WorldPoint{}, 0, false
	}

	tanFwd := math.Tan(degToRad(fwd))
	if tanFwd == 0 {
		return model.WorldPoint{}, 0, false
	}

	midN := (pose.NorthingM + flat.NorthingM) / 2
	midE := (pose.EastingM + flat.EastingM) / 2
	dn := flat.NorthingM - pose.NorthingM
	de := flat.EastingM - pose.EastingM
	groundDist := math.Hypot(dn, de)
	if groundDist == 0 {
		return model.WorldPoint{}, 0, false
	}
	dirN, dirE := dn/groundDist, de/groundDist

	sightAlt := pose.AltitudeM - (pose.AltitudeM-flat.AltitudeM)/2

	n, e := midN, midE
	maxSteps := int(groundDist/cfg.DSMStepM) + 200
	for i := 0; i < maxSteps; i++ {
		dsm, dsmOK := ground.ElevationDSM(n, e)
		if !dsmOK {
			return model.WorldPoint{}, 0, false
		}
		if math.Abs(sightAlt-dsm) <= cfg.DSMToleranceM {
			result := model.WorldPoint{NorthingM: n, EastingM: e, AltitudeM: dsm}
			if dem, demOK := ground.ElevationDEM(n, e); demOK {
				return result, sightAlt - dem, true
			}
			return result, 0, true
		}
		n += dirN * cfg.DSMStepM
		e += dirE * cfg.DSMStepM
		sightAlt -= cfg.DSMStepM / tanFwd
	}
	return model.WorldPoint{}, 0, false
}
