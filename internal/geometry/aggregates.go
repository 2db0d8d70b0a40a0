package geometry

import (
	"math"

	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/ports"
)

// GroundAt resolves the DEM elevation at a world point, following the
// fallback chain spec.md §4.3 specifies: DSM first, then DEM, then the
// first block's own input_image_dem_m, then the first step's DEM.
func GroundAt(loc model.WorldPoint, ground ports.GroundSource, firstBlockDemM, firstStepDemM float64) float64 {
	if dsm, ok := ground.ElevationDSM(loc.NorthingM, loc.EastingM); ok {
		return dsm
	}
	if dem, ok := ground.ElevationDEM(loc.NorthingM, loc.EastingM); ok {
		return dem
	}
	if firstBlockDemM != 0 {
		return firstBlockDemM
	}
	return firstStepDemM
}

// ObjectAggregates is the recomputed set of object-level aggregates
// (spec.md §4.3 "Per-object aggregates").
type ObjectAggregates struct {
	LocationM    model.WorldPoint
	LocationErrM float64
	HeightM      float64
	HeightErrM   float64
	MinHeightM   float64
	MaxHeightM   float64
	SizeCm2      float64
	AvgRangeM    float64
}

// RealObservation is the per-Real-feature input to object aggregation: its
// world location, height (if known), hot-pixel count, and the platform
// location at the block it was observed in (for range).
type RealObservation struct {
	Location    model.WorldPoint
	HeightM     float64
	HasHeight   bool
	HotPixels   int
	PlatformLoc model.WorldPoint
	IsFirst     bool
	IsLast      bool
}

// RecomputeObjectAggregates derives the object-level aggregates from its
// Real-feature observations (spec.md §4.3). maxHotPixels and
// footprintAreaCm2PerPixel come from the caller's size model: size_cm2 is
// the maximum Real hot-pixel count scaled by the drone's physical image
// footprint area at that block, per pixel.
func RecomputeObjectAggregates(obs []RealObservation, footprintCm2PerPixel float64) ObjectAggregates {
	if len(obs) == 0 {
		return ObjectAggregates{}
	}

	locs := make([]model.WorldPoint, len(obs))
	for i, o := range obs {
		locs[i] = o.Location
	}
	mean := model.MeanWorldPoint(locs)

	var sumDist float64
	for _, l := range locs {
		sumDist += l.Distance2D(mean)
	}
	locErr := sumDist / float64(len(locs))

	var sumHeight float64
	var numHeight int
	minH, maxH := math.Inf(1), math.Inf(-1)
	maxHotPixels := 0
	var rangeSum float64
	var rangeCount int
	for _, o := range obs {
		if o.HasHeight {
			sumHeight += o.HeightM
			numHeight++
			if o.HeightM < minH {
				minH = o.HeightM
			}
			if o.HeightM > maxH {
				maxH = o.HeightM
			}
		}
		if o.HotPixels > maxHotPixels {
			maxHotPixels = o.HotPixels
		}
		if o.IsFirst || o.IsLast {
			rangeSum += o.PlatformLoc.Distance2D(o.Location)
			rangeCount++
		}
	}

	var heightMean, heightErr float64
	if numHeight > 0 {
		heightMean = sumHeight / float64(numHeight)
		upper := math.Abs(maxH - heightMean)
		lower := math.Abs(minH - heightMean)
		heightErr = math.Max(upper, lower)
	} else {
		minH, maxH = 0, 0
	}

	var avgRange float64
	if rangeCount > 0 {
		avgRange = rangeSum / float64(rangeCount)
	}

	return ObjectAggregates{
		LocationM:    mean,
		LocationErrM: locErr,
		HeightM:      heightMean,
		HeightErrM:   heightErr,
		MinHeightM:   minH,
		MaxHeightM:   maxH,
		SizeCm2:      float64(maxHotPixels) * footprintCm2PerPixel,
		AvgRangeM:    avgRange,
	}
}

// FootprintCm2PerPixel computes the physical ground area, in square
// centimeters, a single camera pixel covers at the given platform altitude
// above ground (spec.md §4.3 "size_cm2 ... scaled by the drone's physical
// image footprint area at that block").
func FootprintCm2PerPixel(altitudeAboveGroundM float64, cfg Config) float64 {
	if altitudeAboveGroundM <= 0 {
		return 0
	}
	hfovRad := degToRad(cfg.HFOVDeg)
	vfovRad := degToRad(cfg.VFOVDeg)
	widthM := 2 * altitudeAboveGroundM * math.Tan(hfovRad/2)
	heightM := 2 * altitudeAboveGroundM * math.Tan(vfovRad/2)
	areaM2 := widthM * heightM
	pixelCount := float64(cfg.ImageWidthPx * cfg.ImageHeightPx)
	if pixelCount == 0 {
		return 0
	}
	areaCm2 := areaM2 * 10000
	return areaCm2 / pixelCount
}
