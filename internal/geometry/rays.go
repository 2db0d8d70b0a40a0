package geometry

import (
	"math"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// FeatureFraction converts a pixel box's center into image fractions
// (spec.md §4.3): x_frac runs left-to-right, y_frac = 1 at the top of the
// image (nearest the platform when looking forward and down).
func FeatureFraction(box model.PixelBox, imgW, imgH int) (xFrac, yFrac float64) {
	cx, cy := box.CenterX(), box.CenterY()
	return cx / float64(imgW), (float64(imgH) - cy) / float64(imgH)
}

// lineOfSight computes the unit line-of-sight vector in a north/east/up
// world frame for a feature at (xFrac, yFrac), given the camera's angle
// off vertical (camera_to_vertical_forward_deg) and the block's platform
// attitude.
//
// verticalDeg = 0 means the camera boresight points straight down;
// verticalDeg = 90 means it points level with the horizon. Pixel offsets
// within the field of view perturb the boresight before the platform's
// yaw/pitch/roll are applied.
func lineOfSight(xFrac, yFrac float64, cfg Config, cameraToVerticalForwardDeg, yawDeg, pitchDeg, rollDeg float64) vec3 {
	hOffsetDeg := (xFrac - 0.5) * cfg.HFOVDeg
	vOffsetDeg := (yFrac - 0.5) * cfg.VFOVDeg

	verticalDeg := cameraToVerticalForwardDeg + pitchDeg - vOffsetDeg
	down := math.Cos(degToRad(verticalDeg))
	forward := math.Sin(degToRad(verticalDeg))

	// rollDeg tilts the horizontal offset into the lateral axis; for small
	// roll this is a negligible correction, included because the block
	// carries the value.
	lateralDeg := hOffsetDeg + rollDeg*0.01*hOffsetDeg

	ray := vec3{N: forward, E: math.Tan(degToRad(lateralDeg)) * forward, U: -down}
	ray = rotateAboutUp(ray, yawDeg)
	return ray.normalize()
}
