package runctl

import (
	"context"

	"github.com/skycomb-go/thermaltrack/internal/config"
	"github.com/skycomb-go/thermaltrack/internal/geometry"
	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/ports"
	"github.com/skycomb-go/thermaltrack/internal/scanner"
)

// processBlock runs one frame's detect/scan/track/geometry/significance
// pipeline and persists the outcome into the catalog (spec.md §4.1-§4.3).
func (c *Controller) processBlock(block *model.Block, frame ports.Frame) error {
	fresh, err := c.detectAndScan(block, frame)
	if err != nil {
		return err
	}

	if err := c.tracker.ProcessBlock(block, fresh, c.newObjectID, c.newFeatureID); err != nil {
		return err
	}

	if len(fresh) > 0 {
		block.MinFeatureID = fresh[0].ID
		block.MaxFeatureID = fresh[len(fresh)-1].ID
	}
	c.catalog.Blocks.Put(block.ID, block)

	c.refineGeometry(block)
	c.evaluateSignificanceAndName(block)

	if c.store == nil {
		return nil
	}
	ctx := context.Background()
	if err := c.store.SaveBlock(ctx, block); err != nil {
		return err
	}
	for _, f := range fresh {
		if err := c.store.SaveFeature(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// detectAndScan dispatches to the configured detector (spec.md §9): Comb
// and Threshold modes flood-fill hot pixels directly; Yolo mode runs an
// external detector first and aggregates heat within its boxes. Either way
// the scanner is handed the controller's running feature-id counter and
// advances it past every feature it mints.
func (c *Controller) detectAndScan(block *model.Block, frame ports.Frame) ([]*model.Feature, error) {
	var (
		features []*model.Feature
		nextID   int64
		err      error
	)

	switch c.layers.Detector.Kind {
	case config.DetectorYolo:
		if c.detector == nil {
			return nil, model.NewError(model.ErrDetectorFailure, "yolo detector not configured").WithBlock(block.ID)
		}
		boxes, detErr := c.detector.Detect(context.Background(), frame)
		if detErr != nil {
			return nil, model.NewError(model.ErrDetectorFailure, "detector failed").WithBlock(block.ID).WithCause(detErr)
		}
		features, nextID, err = scanner.ScanYolo(frame.Original, frame.Threshold, boxes, block.ID, c.nextFeatureID+1, c.layers.Scanner, true)
	default:
		features, nextID, err = scanner.ScanComb(frame.Original, frame.Threshold, block.ID, c.nextFeatureID+1, c.layers.Scanner)
	}
	if err != nil {
		return nil, err
	}
	if nextID > c.nextFeatureID+1 {
		c.nextFeatureID = nextID - 1
	}
	return features, nil
}

// refineGeometry resolves a world location and above-ground height for
// every fresh Real feature this block produced, then recomputes the
// aggregates of every object that claimed or extended one (spec.md §4.3).
func (c *Controller) refineGeometry(block *model.Block) {
	pose := blockPose(block)
	geomCfg := c.layers.Geometry

	touched := map[int64]bool{}
	if block.MinFeatureID != 0 {
		for id := block.MinFeatureID; id <= block.MaxFeatureID; id++ {
			f, ok := c.catalog.Features.Get(id)
			if !ok || f.Type != model.FeatureReal {
				continue
			}
			c.locateFeature(f, block, pose, geomCfg)
			if f.ObjectID != 0 {
				touched[f.ObjectID] = true
			}
		}
	}

	c.catalog.Objects.All(func(id int64, o *model.Object) bool {
		if o.LastBlockID == block.ID {
			touched[id] = true
		}
		return true
	})

	for objectID := range touched {
		o, ok := c.catalog.Objects.Get(objectID)
		if !ok {
			continue
		}
		c.recomputeObjectFromOwnedFeatures(o, geomCfg)
	}
}

// locateFeature resolves a Real feature's world location and height,
// preferring line-of-sight refinement against the DSM, falling back to
// baseline triangulation against the owning object's track, and finally to
// copying the object's last known height (spec.md §4.3).
func (c *Controller) locateFeature(f *model.Feature, block *model.Block, pose geometry.Pose, geomCfg geometry.Config) {
	nadirDemM := geometry.GroundAt(
		model.WorldPoint{NorthingM: pose.NorthingM, EastingM: pose.EastingM},
		c.ground, block.InputImageDemM, c.firstStepDemM,
	)
	flat := geometry.FlatGroundLocation(f.Box, pose, nadirDemM, geomCfg)

	if loc, heightM, ok := geometry.RefineWithDSM(flat, pose, c.ground, geomCfg); ok {
		f.Location = loc
		f.HeightM = heightM
		f.HeightAlgo = model.HeightLOS
		return
	}

	f.Location = flat

	if f.ObjectID == 0 {
		return
	}
	o, ok := c.catalog.Objects.Get(f.ObjectID)
	if !ok {
		return
	}
	if o.FirstFwdDownDeg == 0 {
		o.FirstFwdDownDeg = block.CameraToVerticalForwardDeg
	}
	o.LastFwdDownDeg = block.CameraToVerticalForwardDeg

	first := c.firstLocation(o)
	durationMS := block.InputFrameMS - c.blockMS(o.FirstBlockID)
	result := geometry.BaselineTriangulate(
		first, flat,
		o.FirstFwdDownDeg, o.LastFwdDownDeg,
		pose.AltitudeM-nadirDemM,
		durationMS,
		pose.AltitudeM-nadirDemM,
		geomCfg,
		c.layers.Tracker.ObjectMinDurationMS,
	)
	if result.OK {
		f.HeightM = result.HeightM
		f.HeightAlgo = model.HeightBaseline
		return
	}

	if o.HeightM != 0 {
		f.HeightM = o.HeightM
		f.HeightAlgo = model.HeightCopy
		return
	}
	if result.ErrKind == model.ErrBaselineInsufficient {
		f.HeightAlgo = model.HeightErrBaselineLen
	} else {
		f.HeightAlgo = model.HeightErrGeometry
	}
}

// firstLocation returns the object's first-ever Real feature location, or
// the zero value if it has none recorded yet.
func (c *Controller) firstLocation(o *model.Object) model.WorldPoint {
	for _, id := range o.FeatureIDs {
		f, ok := c.catalog.Features.Get(id)
		if ok && f.Type == model.FeatureReal {
			return f.Location
		}
	}
	return model.WorldPoint{}
}

// blockMS returns the capture time of a block, or 0 if unknown.
func (c *Controller) blockMS(blockID int64) int64 {
	if b, ok := c.catalog.Blocks.Get(blockID); ok {
		return b.InputFrameMS
	}
	return 0
}

// recomputeObjectFromOwnedFeatures rebuilds an object's location/height
// aggregates from every Real feature it owns.
func (c *Controller) recomputeObjectFromOwnedFeatures(o *model.Object, geomCfg geometry.Config) {
	var realFeatures []*model.Feature
	for _, id := range o.FeatureIDs {
		f, ok := c.catalog.Features.Get(id)
		if ok && f.Type == model.FeatureReal {
			realFeatures = append(realFeatures, f)
		}
	}

	var obs []geometry.RealObservation
	var lastAltAboveGroundM float64
	for i, f := range realFeatures {
		b, ok := c.catalog.Blocks.Get(f.BlockID)
		if !ok {
			continue
		}
		lastAltAboveGroundM = b.AltitudeM - b.InputImageDemM
		obs = append(obs, geometry.RealObservation{
			Location:    f.Location,
			HeightM:     f.HeightM,
			HasHeight:   f.HeightAlgo != model.HeightNone,
			HotPixels:   f.HotCount,
			PlatformLoc: model.WorldPoint{NorthingM: b.NorthingM, EastingM: b.EastingM, AltitudeM: b.AltitudeM},
			IsFirst:     i == 0,
			IsLast:      i == len(realFeatures)-1,
		})
	}
	agg := geometry.RecomputeObjectAggregates(obs, geometry.FootprintCm2PerPixel(lastAltAboveGroundM, geomCfg))
	applyAggregates(o, agg)
}

// evaluateSignificanceAndName runs the significance gate for every object
// touched this block, assigning a name the first time one passes (spec.md
// §4.2, §9).
func (c *Controller) evaluateSignificanceAndName(block *model.Block) {
	c.catalog.Objects.All(func(_ int64, o *model.Object) bool {
		if o.LastBlockID != block.ID || !o.BeingTracked {
			return true
		}
		if c.tracker.EvaluateSignificance(o, c.run.FrameMS) {
			c.nameObject(o)
		}
		return true
	})
}
