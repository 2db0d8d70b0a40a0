package geometry

import (
	"math"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// BaselineResult carries the outcome of a baseline-triangulation attempt
// (spec.md §4.3 "Baseline triangulation").
type BaselineResult struct {
	HeightM float64
	OK      bool
	// ErrKind is set when OK is false: the recoverable error tag to attach
	// to the feature/object (spec.md §4.6, §7).
	ErrKind model.ErrKind
}

// BaselineTriangulate recovers an object's height-above-ground from the
// change in forward-down tangent between its first and last Real feature,
// using the object's ground baseline distance (spec.md §4.3). first and
// last must be the object's first and last Real features; firstFwdDownDeg
// and lastFwdDownDeg are the camera_to_vertical_forward_deg recorded for
// those two blocks; droneDistanceDownM is the platform's altitude above
// the object's DEM at the last observation; durationMS is how long the
// object has been observed.
func BaselineTriangulate(
	firstLoc, lastLoc model.WorldPoint,
	firstFwdDownDeg, lastFwdDownDeg float64,
	droneDistanceDownM float64,
	durationMS int64,
	droneHeightAboveObjectDemM float64,
	cfg Config,
	objectMinDurationMS int64,
) BaselineResult {
	baseline := firstLoc.Distance2D(lastLoc)
	if baseline < cfg.BaselineMinM {
		return BaselineResult{ErrKind: model.ErrBaselineInsufficient}
	}

	deltaTan := math.Tan(degToRad(lastFwdDownDeg)) - math.Tan(degToRad(firstFwdDownDeg))
	if math.Abs(deltaTan) < cfg.MinDeltaTan {
		return BaselineResult{ErrKind: model.ErrBaselineInsufficient}
	}

	if droneDistanceDownM < cfg.MinDistanceDownM {
		return BaselineResult{ErrKind: model.ErrBaselineInsufficient}
	}

	if durationMS < objectMinDurationMS {
		return BaselineResult{ErrKind: model.ErrBaselineInsufficient}
	}

	depthDown := baseline / deltaTan
	height := droneHeightAboveObjectDemM - depthDown
	return BaselineResult{HeightM: height, OK: true}
}

// IsAccurate reports whether the object's baseline exceeds the "accurate"
// threshold rather than merely the minimum to attempt triangulation at
// all (spec.md §4.3 "≥ 2 m for accurate").
func IsAccurate(firstLoc, lastLoc model.WorldPoint, cfg Config) bool {
	return firstLoc.Distance2D(lastLoc) >= cfg.BaselineAccurateM
}
