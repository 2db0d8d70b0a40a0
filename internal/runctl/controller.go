package runctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skycomb-go/thermaltrack/internal/core"
	"github.com/skycomb-go/thermaltrack/internal/database"
	"github.com/skycomb-go/thermaltrack/internal/geometry"
	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/ports"
	"github.com/skycomb-go/thermaltrack/internal/tracker"
)

// HookPublisher is the run controller's view of an event bus: decoupled so
// tests can run without a live NATS server while *core.EventBus satisfies it
// in production.
type HookPublisher interface {
	PublishHook(subject string, evt core.HookEvent) error
}

// noopHooks discards every hook; used when a caller doesn't wire a bus.
type noopHooks struct{}

func (noopHooks) PublishHook(string, core.HookEvent) error { return nil }

// checkpointEveryBlocks bounds how often the controller flushes the catalog
// to storage mid-run, independent of span boundaries (which always flush).
const checkpointEveryBlocks = 200

// Controller drives the frame loop: interpolate pose, detect/scan, track,
// refine geometry, evaluate significance, and close optimization spans at
// flight-leg boundaries (spec.md §4.5, §5, §9). It owns the run's monotonic
// id counters, which spec.md §9 calls out as "global mutable counters become
// fields on the run controller" rather than package-level state.
type Controller struct {
	run    RunConfig
	layers LayerConfigs

	frames   ports.FrameSource
	poses    ports.PoseSource
	ground   ports.GroundSource
	detector ports.Detector

	catalog *model.Catalog
	store   *database.Store
	tracker *tracker.Tracker
	hooks   HookPublisher
	logger  *slog.Logger

	nextBlockID   int64
	nextFeatureID int64
	nextObjectID  int64
	nextSpanID    int64

	firstStepDemM float64
	legsAvailable bool
	lastLegID     int64
	lastBlock     *model.Block

	span *spanState
}

// Deps bundles the Controller's external collaborators.
type Deps struct {
	Frames   ports.FrameSource
	Poses    ports.PoseSource
	Ground   ports.GroundSource
	Detector ports.Detector // only required when layers.Detector.Kind == config.DetectorYolo
	Store    *database.Store
	Hooks    HookPublisher // optional; defaults to a no-op publisher
	Logger   *slog.Logger
}

// New builds a Controller over an empty catalog, ready to run from frame 0.
// Use Resume to continue a previously checkpointed catalog instead.
func New(run RunConfig, layers LayerConfigs, deps Deps) *Controller {
	return newController(run, layers, deps, model.NewCatalog(), 0, 0, 0, 0)
}

// Resume rebuilds a Controller from a catalog previously loaded from
// storage (e.g. via Store.LoadCatalog), picking the id counters up from the
// catalog's own arenas so freshly-minted ids never collide with persisted
// ones.
func Resume(run RunConfig, layers LayerConfigs, deps Deps, catalog *model.Catalog) *Controller {
	var maxBlock, maxFeature, maxObject, maxSpan int64
	catalog.Blocks.All(func(id int64, _ *model.Block) bool { maxBlock = max(maxBlock, id); return true })
	catalog.Features.All(func(id int64, _ *model.Feature) bool { maxFeature = max(maxFeature, id); return true })
	catalog.Objects.All(func(id int64, _ *model.Object) bool { maxObject = max(maxObject, id); return true })
	catalog.Spans.All(func(id int64, _ *model.Span) bool { maxSpan = max(maxSpan, id); return true })
	return newController(run, layers, deps, catalog, maxBlock, maxFeature, maxObject, maxSpan)
}

func newController(run RunConfig, layers LayerConfigs, deps Deps, catalog *model.Catalog, nextBlock, nextFeature, nextObject, nextSpan int64) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "runctl")

	hooks := deps.Hooks
	if hooks == nil {
		hooks = noopHooks{}
	}

	return &Controller{
		run:           run,
		layers:        layers,
		frames:        deps.Frames,
		poses:         deps.Poses,
		ground:        deps.Ground,
		detector:      deps.Detector,
		catalog:       catalog,
		store:         deps.Store,
		tracker:       tracker.New(layers.Tracker, catalog, logger),
		hooks:         hooks,
		logger:        logger,
		nextBlockID:   nextBlock,
		nextFeatureID: nextFeature,
		nextObjectID:  nextObject,
		nextSpanID:    nextSpan,
	}
}

func (c *Controller) newBlockID() int64   { c.nextBlockID++; return c.nextBlockID }
func (c *Controller) newFeatureID() int64 { c.nextFeatureID++; return c.nextFeatureID }
func (c *Controller) newObjectID() int64  { c.nextObjectID++; return c.nextObjectID }
func (c *Controller) newSpanID() int64    { c.nextSpanID++; return c.nextSpanID }

// Catalog exposes the run's in-memory catalog, e.g. for a caller that wants
// to checkpoint it on its own schedule.
func (c *Controller) Catalog() *model.Catalog { return c.catalog }

// Run drives the frame loop across the configured window, closing spans at
// leg boundaries (or significance zero-crossings when legs aren't
// supplied), and publishing run hooks as scope transitions occur. Frames
// are processed one at a time; cancellation is polled between frames, never
// mid-frame (spec.md §5).
func (c *Controller) Run(ctx context.Context) error {
	fromIdx, toIdx := c.run.frameWindow(c.frames.Len())
	if fromIdx >= toIdx {
		return nil
	}
	c.legsAvailable = len(c.poses.Legs()) > 0

	if err := c.hooks.PublishHook(core.SubjectRunStart, core.HookEvent{}); err != nil {
		c.logger.Warn("hook publish failed", "subject", core.SubjectRunStart, "error", err)
	}
	if err := c.hooks.PublishHook(core.SubjectIntervalStart, core.HookEvent{}); err != nil {
		c.logger.Warn("hook publish failed", "subject", core.SubjectIntervalStart, "error", err)
	}

	var runErr error
	blocksSinceCheckpoint := 0

loop:
	for idx := fromIdx; idx < toIdx; idx++ {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		default:
		}

		frame, ok, err := c.frames.Frame(ctx, idx)
		if err != nil {
			runErr = fmt.Errorf("runctl: frame %d: %w", idx, err)
			break loop
		}
		if !ok {
			break loop
		}

		block, err := c.buildBlock(idx, frame)
		if err != nil {
			var domainErr *model.Error
			if errors.As(err, &domainErr) && domainErr.Kind.Recoverable() {
				c.logger.Warn("recoverable frame error", "frame", idx, "error", err)
				continue
			}
			runErr = err
			break loop
		}

		c.lastBlock = block
		if c.span == nil {
			c.fireHook(core.SubjectLegStartBefore, block)
			c.openSpan(block)
			c.fireHook(core.SubjectLegStartAfter, block)
		}

		if err := c.processBlock(block, frame); err != nil {
			var domainErr *model.Error
			if errors.As(err, &domainErr) && domainErr.Kind.Recoverable() {
				c.logger.Warn("recoverable block error", "block_id", block.ID, "error", err)
			} else {
				runErr = err
				break loop
			}
		}

		if c.legsAvailable {
			if err := c.handleLegTransition(block); err != nil {
				runErr = err
				break loop
			}
		} else {
			c.checkZeroCrossing(block)
		}

		blocksSinceCheckpoint++
		if c.store != nil && blocksSinceCheckpoint >= checkpointEveryBlocks {
			if err := c.store.SaveCatalog(ctx, c.catalog); err != nil {
				c.logger.Warn("checkpoint failed", "block_id", block.ID, "error", err)
			}
			blocksSinceCheckpoint = 0
		}
	}

	if c.span != nil && c.lastBlock != nil {
		if err := c.closeSpan(c.lastBlock); err != nil {
			c.logger.Warn("final span close failed", "error", err)
		}
	}
	if c.store != nil {
		if err := c.store.SaveCatalog(context.Background(), c.catalog); err != nil {
			c.logger.Warn("final checkpoint failed", "error", err)
		}
	}

	if err := c.hooks.PublishHook(core.SubjectIntervalEnd, core.HookEvent{}); err != nil {
		c.logger.Warn("hook publish failed", "subject", core.SubjectIntervalEnd, "error", err)
	}
	if err := c.hooks.PublishHook(core.SubjectRunEnd, core.HookEvent{}); err != nil {
		c.logger.Warn("hook publish failed", "subject", core.SubjectRunEnd, "error", err)
	}

	return runErr
}

// buildBlock interpolates the frame's pose and materializes a Block,
// blending the bracketing FlightSteps by weight and folding in any
// correction a prior span close already attached to them (spec.md §4.5
// step 1, §9).
func (c *Controller) buildBlock(frameIdx int, frame ports.Frame) (*model.Block, error) {
	before, after, weight, err := c.poses.Interpolate(frame.CaptureMS)
	if err != nil {
		return nil, model.NewError(model.ErrInvalidFrame, "pose interpolation failed").WithCause(err)
	}

	beforeStep := c.ensureFlightStep(before)
	afterStep := c.ensureFlightStep(after)
	if c.firstStepDemM == 0 {
		c.firstStepDemM = beforeStep.DemM
	}

	corrBefore, corrAfter := beforeStep.Correction, afterStep.Correction

	blend := func(b, a float64) float64 { return b*weight + a*(1-weight) }

	block := &model.Block{
		ID:                         c.newBlockID(),
		InputFrameID:               int64(frameIdx),
		InputFrameMS:               frame.CaptureMS,
		NorthingM:                  blend(beforeStep.NorthingM, afterStep.NorthingM),
		EastingM:                   blend(beforeStep.EastingM, afterStep.EastingM),
		AltitudeM:                  blend(beforeStep.AltitudeM+corrBefore.FixAltM, afterStep.AltitudeM+corrAfter.FixAltM),
		YawDeg:                     blend(beforeStep.YawDeg+corrBefore.FixYawDeg, afterStep.YawDeg+corrAfter.FixYawDeg),
		PitchDeg:                   blend(beforeStep.PitchDeg+corrBefore.FixPitchDeg, afterStep.PitchDeg+corrAfter.FixPitchDeg),
		RollDeg:                    blend(beforeStep.RollDeg, afterStep.RollDeg),
		CameraToVerticalForwardDeg: frame.CameraToVerticalForwardDeg,
		StepID:                     beforeStep.ID,
		StepWeight:                 weight,
		NextWeight:                 1 - weight,
		InputImageDemM:             blend(beforeStep.DemM, afterStep.DemM),
		LegID:                      beforeStep.LegID,
	}
	if c.lastBlock != nil {
		prev := model.WorldPoint{NorthingM: c.lastBlock.NorthingM, EastingM: c.lastBlock.EastingM}
		here := model.WorldPoint{NorthingM: block.NorthingM, EastingM: block.EastingM}
		block.SumLinealM = c.lastBlock.SumLinealM + prev.Distance2D(here)
	}
	return block, nil
}

// ensureFlightStep materializes step into the catalog the first time it's
// seen, and returns the catalog's own copy thereafter so a previously
// attached span correction is visible to every later block referencing it.
func (c *Controller) ensureFlightStep(step ports.StepPose) *model.FlightStep {
	if existing, ok := c.catalog.FlightSteps.Get(step.StepID); ok {
		return existing
	}
	fs := &model.FlightStep{
		ID:          step.StepID,
		TimestampMS: step.TimestampMS,
		NorthingM:   step.NorthingM,
		EastingM:    step.EastingM,
		AltitudeM:   step.AltitudeM,
		YawDeg:      step.YawDeg,
		PitchDeg:    step.PitchDeg,
		RollDeg:     step.RollDeg,
		DemM:        step.DemM,
		LegID:       step.LegID,
	}
	c.catalog.FlightSteps.Put(fs.ID, fs)
	return fs
}

// blockPose returns the block's platform pose in the shape the geometry package
// consumes.
func blockPose(b *model.Block) geometry.Pose {
	return geometry.PoseFromBlock(b)
}
