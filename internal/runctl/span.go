package runctl

import (
	"context"
	"math"
	"strconv"

	"github.com/skycomb-go/thermaltrack/internal/core"
	"github.com/skycomb-go/thermaltrack/internal/geometry"
	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/optimizer"
)

// spanState tracks the in-progress span the controller is accumulating
// blocks into, plus the bookkeeping the close policies need.
type spanState struct {
	span *model.Span

	// nameSeq assigns "A1", "A2", ... to objects as they first become
	// significant within this span (spec.md §9 Open Question: naming is
	// scoped per-span here, reset at every span boundary, rather than
	// per-run, since a span is the unit the optimizer refines together and
	// restarting the sequence makes a span's object names independent of
	// how much of the run preceded it).
	nameSeq int

	// lastSigCount is the significant, still-tracked object count as of the
	// previous block, used by the zero-crossing close policy when legs are
	// not supplied by the pose source.
	lastSigCount int
}

// fireHook publishes a hook event stamped with block, leg and span
// identifiers. Publish failures are logged, never fatal: a hook subscriber
// being offline must not abort a run.
func (c *Controller) fireHook(subject string, block *model.Block) {
	evt := core.HookEvent{}
	if block != nil {
		evt.BlockID = block.ID
		evt.FrameID = block.InputFrameID
		evt.LegID = int(block.LegID)
	}
	if c.span != nil {
		evt.SpanID = c.span.span.ID
	}
	if err := c.hooks.PublishHook(subject, evt); err != nil {
		c.logger.Warn("hook publish failed", "subject", subject, "error", err)
	}
}

// openSpan starts accumulating a new span at block, assigning it the next
// span id and resetting the per-span object-naming sequence.
func (c *Controller) openSpan(block *model.Block) {
	sp := &model.Span{
		ID:         c.newSpanID(),
		MinStepID:  block.StepID,
		MaxStepID:  block.StepID,
		MinBlockID: block.ID,
		MaxBlockID: block.ID,
	}
	c.catalog.Spans.Put(sp.ID, sp)
	c.span = &spanState{span: sp}
}

// handleLegTransition implements the leg-boundary span-close policy: a span
// closes the block before its leg id changes, and a new one opens on the
// block after (spec.md §4.5 "LegEnd_Before/After, LegStart_Before/After").
func (c *Controller) handleLegTransition(block *model.Block) error {
	if block.LegID != 0 && c.lastLegID != 0 && block.LegID != c.lastLegID {
		c.fireHook(core.SubjectLegEndBefore, block)
		closing := block
		if prev, ok := c.catalog.Blocks.Get(block.ID - 1); ok {
			closing = prev
		}
		if err := c.closeSpan(closing); err != nil {
			return err
		}
		c.fireHook(core.SubjectLegEndAfter, block)

		c.fireHook(core.SubjectLegStartBefore, block)
		c.openSpan(block)
		c.fireHook(core.SubjectLegStartAfter, block)
	}
	c.lastLegID = block.LegID
	return nil
}

// checkZeroCrossing implements the fallback span-close policy used when the
// pose source carries no leg information: a span closes (and a new one
// immediately opens) the block the live significant-object count returns to
// zero after having been positive (spec.md §3, §4.5).
func (c *Controller) checkZeroCrossing(block *model.Block) {
	sigCount := 0
	c.catalog.Objects.All(func(_ int64, o *model.Object) bool {
		if o.BeingTracked && o.Significant {
			sigCount++
		}
		return true
	})

	if c.span.lastSigCount > 0 && sigCount == 0 {
		if err := c.closeSpan(block); err != nil {
			c.logger.Warn("span close failed", "block_id", block.ID, "error", err)
		}
		c.openSpan(block)
	}
	c.span.lastSigCount = sigCount
}

// closeSpan finalizes the in-progress span: runs the configured optimizer
// mode over every significant object whose track overlaps the span, commits
// the winning correction (attitude mode) or triangulated locations
// (triangulation mode), and persists the result (spec.md §4.4, §4.5).
func (c *Controller) closeSpan(block *model.Block) error {
	sp := c.span.span
	sp.MaxBlockID = block.ID
	sp.MaxStepID = block.StepID

	objectIDs := c.objectsInSpanScope(sp)
	sp.NumSignificantObjects = len(objectIDs)

	if len(objectIDs) > 0 {
		switch c.layers.Optimizer.Mode {
		case optimizer.ModeTriangulation:
			c.closeSpanTriangulation(sp, objectIDs)
		default:
			c.closeSpanAttitude(sp, objectIDs)
		}
	}

	c.catalog.Spans.Put(sp.ID, sp)
	if c.store != nil {
		if err := c.store.SaveSpan(context.Background(), sp); err != nil {
			return err
		}
	}
	c.span = nil
	return nil
}

// objectsInSpanScope returns every object whose track overlaps the span's
// block range and which reached significance.
func (c *Controller) objectsInSpanScope(sp *model.Span) []int64 {
	var ids []int64
	c.catalog.Objects.All(func(id int64, o *model.Object) bool {
		if !o.Significant {
			return true
		}
		if o.FirstBlockID > sp.MaxBlockID || o.LastBlockID < sp.MinBlockID {
			return true
		}
		ids = append(ids, id)
		return true
	})
	return ids
}

// closeSpanAttitude runs the coordinate-descent grid search over scalar
// pose offsets, committing the winning correction onto every FlightStep the
// span's blocks reference (spec.md §4.4 "attitude-search mode").
func (c *Controller) closeSpanAttitude(sp *model.Span, objectIDs []int64) {
	blocks := c.blocksInSpan(sp)

	evaluate := func(correction model.Correction, hfovDeg float64) optimizer.Residuals {
		geomCfg := c.layers.Geometry
		geomCfg.HFOVDeg = hfovDeg
		return c.evaluateCorrection(blocks, objectIDs, correction, geomCfg)
	}

	result := optimizer.SearchAttitude(c.layers.Optimizer, c.layers.Geometry.HFOVDeg, evaluate)

	sp.OrgSumLocnErrM = result.OrgResid.SumLocationErrM
	sp.OrgSumHeightErrM = result.OrgResid.SumHeightErrM
	sp.BestSumLocnErrM = result.BestResid.SumLocationErrM
	sp.BestSumHeightErrM = result.BestResid.SumHeightErrM
	sp.BestFixAltM = result.Best.FixAltM
	sp.BestFixYawDeg = result.Best.FixYawDeg
	sp.BestFixPitchDeg = result.Best.FixPitchDeg
	sp.BestHFOVDeg = result.BestHFOV

	if !result.Improved {
		return
	}

	stepIDs := map[int64]bool{}
	for _, b := range blocks {
		stepIDs[b.StepID] = true
	}
	for stepID := range stepIDs {
		if step, ok := c.catalog.FlightSteps.Get(stepID); ok {
			step.Correction = result.Best
			if c.store != nil {
				_ = c.store.SaveFlightStep(context.Background(), step)
			}
		}
	}

	geomCfg := c.layers.Geometry
	geomCfg.HFOVDeg = result.BestHFOV
	for _, objectID := range objectIDs {
		c.recomputeObjectGeometry(objectID, blocks, result.Best, geomCfg)
	}
}

// evaluateCorrection recomputes every object's location/height aggregates
// under a trial correction and geometry config, without mutating the
// catalog, and returns the summed residuals the grid search scores trials
// by.
func (c *Controller) evaluateCorrection(blocks []*model.Block, objectIDs []int64, correction model.Correction, geomCfg geometry.Config) optimizer.Residuals {
	var resid optimizer.Residuals
	blockByID := make(map[int64]*model.Block, len(blocks))
	for _, b := range blocks {
		blockByID[b.ID] = b
	}

	for _, objectID := range objectIDs {
		o, ok := c.catalog.Objects.Get(objectID)
		if !ok {
			continue
		}
		var obs []geometry.RealObservation
		var lastAltAboveGroundM float64
		for i, fid := range o.FeatureIDs {
			f, ok := c.catalog.Features.Get(fid)
			if !ok || f.Type != model.FeatureReal {
				continue
			}
			b, ok := blockByID[f.BlockID]
			if !ok {
				continue
			}
			pose := geometry.PoseFromBlock(b)
			pose.AltitudeM += correction.FixAltM
			pose.YawDeg += correction.FixYawDeg
			pose.PitchDeg += correction.FixPitchDeg

			groundDemM := b.InputImageDemM
			flat := geometry.FlatGroundLocation(f.Box, pose, groundDemM, geomCfg)
			lastAltAboveGroundM = pose.AltitudeM - groundDemM
			obs = append(obs, geometry.RealObservation{
				Location:    flat,
				HeightM:     f.HeightM,
				HasHeight:   f.HeightAlgo != model.HeightNone,
				HotPixels:   f.HotCount,
				PlatformLoc: model.WorldPoint{NorthingM: pose.NorthingM, EastingM: pose.EastingM, AltitudeM: pose.AltitudeM},
				IsFirst:     i == 0,
				IsLast:      i == len(o.FeatureIDs)-1,
			})
		}
		agg := geometry.RecomputeObjectAggregates(obs, geometry.FootprintCm2PerPixel(lastAltAboveGroundM, geomCfg))
		resid.SumLocationErrM += agg.LocationErrM
		resid.SumHeightErrM += agg.HeightErrM
	}
	return resid
}

// recomputeObjectGeometry commits a winning correction's geometry back onto
// an object and its owned Real features.
func (c *Controller) recomputeObjectGeometry(objectID int64, blocks []*model.Block, correction model.Correction, geomCfg geometry.Config) {
	o, ok := c.catalog.Objects.Get(objectID)
	if !ok {
		return
	}
	blockByID := make(map[int64]*model.Block, len(blocks))
	for _, b := range blocks {
		blockByID[b.ID] = b
	}

	var obs []geometry.RealObservation
	var lastAltAboveGroundM float64
	for i, fid := range o.FeatureIDs {
		f, ok := c.catalog.Features.Get(fid)
		if !ok || f.Type != model.FeatureReal {
			continue
		}
		b, ok := blockByID[f.BlockID]
		if !ok {
			continue
		}
		pose := geometry.PoseFromBlock(b)
		pose.AltitudeM += correction.FixAltM
		pose.YawDeg += correction.FixYawDeg
		pose.PitchDeg += correction.FixPitchDeg

		flat := geometry.FlatGroundLocation(f.Box, pose, b.InputImageDemM, geomCfg)
		f.Location = flat
		lastAltAboveGroundM = pose.AltitudeM - b.InputImageDemM
		obs = append(obs, geometry.RealObservation{
			Location:    flat,
			HeightM:     f.HeightM,
			HasHeight:   f.HeightAlgo != model.HeightNone,
			HotPixels:   f.HotCount,
			PlatformLoc: model.WorldPoint{NorthingM: pose.NorthingM, EastingM: pose.EastingM, AltitudeM: pose.AltitudeM},
			IsFirst:     i == 0,
			IsLast:      i == len(o.FeatureIDs)-1,
		})
		if c.store != nil {
			_ = c.store.SaveFeature(context.Background(), f)
		}
	}

	agg := geometry.RecomputeObjectAggregates(obs, geometry.FootprintCm2PerPixel(lastAltAboveGroundM, geomCfg))
	applyAggregates(o, agg)
	if c.store != nil {
		_ = c.store.SaveObject(context.Background(), o)
	}
}

// closeSpanTriangulation runs per-object ray-bundle triangulation
// concurrently across the span's significant objects (spec.md §4.4
// "triangulation mode, finer").
func (c *Controller) closeSpanTriangulation(sp *model.Span, objectIDs []int64) {
	geomCfg := c.layers.Geometry
	optCfg := c.layers.Optimizer

	raysFor := func(objectID int64) ([]optimizer.Ray, model.WorldPoint) {
		o, ok := c.catalog.Objects.Get(objectID)
		if !ok {
			return nil, model.WorldPoint{}
		}
		var rays []optimizer.Ray
		for _, fid := range o.FeatureIDs {
			f, ok := c.catalog.Features.Get(fid)
			if !ok || f.Type != model.FeatureReal {
				continue
			}
			b, ok := c.catalog.Blocks.Get(f.BlockID)
			if !ok {
				continue
			}
			pose := geometry.PoseFromBlock(b)
			direction := geometry.RayDirection(f.Box, pose, geomCfg)
			rays = append(rays, optimizer.Ray{
				FeatureID:  f.ID,
				PlatformM:  model.WorldPoint{NorthingM: pose.NorthingM, EastingM: pose.EastingM, AltitudeM: pose.AltitudeM},
				Direction:  direction,
				MinLambdaM: optCfg.MinDepthBelowPlatformM,
				MaxLambdaM: pose.AltitudeM * 4,
			})
		}
		return rays, o.LocationM
	}

	results := optimizer.TriangulateSpan(optCfg, objectIDs, raysFor)

	lastBlockDemM := 0.0
	if b, ok := c.catalog.Blocks.Get(sp.MaxBlockID); ok {
		lastBlockDemM = b.InputImageDemM
	}

	var sumLocErr, sumHeightErr float64
	for _, objectID := range objectIDs {
		res, ok := results[objectID]
		if !ok || !res.Converged {
			continue
		}
		o, ok := c.catalog.Objects.Get(objectID)
		if !ok {
			continue
		}
		groundM := geometry.GroundAt(res.Location, c.ground, lastBlockDemM, c.firstStepDemM)
		locErr, heightErr := applyTriangulationResult(o, c.catalog.Features, res, groundM)
		sumLocErr += locErr
		sumHeightErr += heightErr

		if c.store != nil {
			_ = c.store.SaveObject(context.Background(), o)
			for _, fid := range o.FeatureIDs {
				if f, ok := c.catalog.Features.Get(fid); ok && f.Type == model.FeatureReal {
					_ = c.store.SaveFeature(context.Background(), f)
				}
			}
		}
	}
	sp.BestSumLocnErrM = sumLocErr
	sp.BestSumHeightErrM = sumHeightErr
	sp.OrgSumLocnErrM = sumLocErr
	sp.OrgSumHeightErrM = sumHeightErr
}

// applyTriangulationResult commits a converged per-object triangulation onto
// the object and every owned Real feature (spec.md §4.4: "write the
// optimized location to the feature/object, recompute object height_m from
// the DEM at the optimized location"), returning the location and height
// error this object contributes to the span's summed residuals.
func applyTriangulationResult(o *model.Object, features *model.Arena[model.Feature], res optimizer.TriangulationResult, groundM float64) (locErr, heightErr float64) {
	locErr = o.LocationM.Distance2D(res.Location)
	o.LocationM = res.Location
	o.LocationErrM = locErr

	heightM := res.Location.AltitudeM - groundM
	heightErr = math.Abs(heightM - o.HeightM)
	o.HeightM = heightM
	o.MinHeightM = heightM
	o.MaxHeightM = heightM
	o.HeightErrM = heightErr

	for _, fid := range o.FeatureIDs {
		f, ok := features.Get(fid)
		if !ok || f.Type != model.FeatureReal {
			continue
		}
		f.Location = res.Location
		f.HeightM = heightM
		f.HeightAlgo = model.HeightTriangulated
	}
	return locErr, heightErr
}

// blocksInSpan returns every block within [sp.MinBlockID, sp.MaxBlockID].
func (c *Controller) blocksInSpan(sp *model.Span) []*model.Block {
	var out []*model.Block
	c.catalog.Blocks.All(func(id int64, b *model.Block) bool {
		if id >= sp.MinBlockID && id <= sp.MaxBlockID {
			out = append(out, b)
		}
		return true
	})
	return out
}

// applyAggregates writes a recomputed ObjectAggregates onto o.
func applyAggregates(o *model.Object, agg geometry.ObjectAggregates) {
	o.LocationM = agg.LocationM
	o.LocationErrM = agg.LocationErrM
	o.HeightM = agg.HeightM
	o.HeightErrM = agg.HeightErrM
	o.MinHeightM = agg.MinHeightM
	o.MaxHeightM = agg.MaxHeightM
	o.SizeCm2 = agg.SizeCm2
	o.AvgRangeM = agg.AvgRangeM
}

// nameObject assigns the next "A<n>" name in this span's sequence.
func (c *Controller) nameObject(o *model.Object) {
	c.span.nameSeq++
	o.Name = formatObjectName(c.span.nameSeq)
}

func formatObjectName(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	letter := letters[(n-1)%len(letters)]
	group := (n-1)/len(letters) + 1
	return string(letter) + strconv.Itoa(group)
}
