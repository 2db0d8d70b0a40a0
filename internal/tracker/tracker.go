package tracker

import (
	"log/slog"

	"github.com/samber/lo"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// Tracker holds the config and catalog a run tracks objects against. It is
// not safe for concurrent use; the run controller drives it single-threaded
// (spec.md §5).
type Tracker struct {
	cfg     Config
	catalog *model.Catalog
	logger  *slog.Logger
}

// New creates a Tracker bound to catalog.
func New(cfg Config, catalog *model.Catalog, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{cfg: cfg, catalog: catalog, logger: logger.With("component", "tracker")}
}

// trackedObjects returns every object still being_tracked, in creation
// order (object_id ascending), the order spec.md §4.2 requires claims to be
// attempted in.
func (t *Tracker) trackedObjects() []*model.Object {
	var out []*model.Object
	t.catalog.Objects.All(func(_ int64, o *model.Object) bool {
		if o.BeingTracked {
			out = append(out, o)
		}
		return true
	})
	return out
}

// ProcessBlock runs the per-block claim/consume/seed/persist protocol
// (spec.md §4.2 steps 1-6) for a fresh feature set, storing every feature
// (claimed, consumed, newly seeded or synthesized-Unreal) into the catalog.
// newObjectID and newFeatureID are the run controller's monotonic id
// counters (spec.md §9 "global mutable counters become fields on the run
// controller").
func (t *Tracker) ProcessBlock(block *model.Block, fresh []*model.Feature, newObjectID, newFeatureID func() int64) error {
	tracked := t.trackedObjects()
	expected := make(map[int64]model.PixelBox, len(tracked))
	for _, o := range tracked {
		expected[o.ID] = t.expectedBox(o)
	}

	claimedThisBlock := make(map[int64]int64) // objectID -> feature id claimed as Real this block

	for _, f := range fresh {
		t.catalog.Features.Put(f.ID, f)

		claimed := false
		for _, o := range tracked {
			if !t.eligible(o, f, expected[o.ID]) {
				continue
			}
			if err := t.claim(block, o, f, claimedThisBlock); err != nil {
				return err
			}
			claimed = true
			break
		}
		if !claimed {
			t.seed(block, f, newObjectID)
		}
	}

	for _, o := range tracked {
		if _, ok := claimedThisBlock[o.ID]; ok {
			continue
		}
		t.extendWithUnreal(block, o, newFeatureID)
	}

	return nil
}

// eligible implements spec.md §4.2 step 2-3: ownership, significance gate,
// overlap gate, and the viability gate on both the candidate feature and
// the object's last feature.
func (t *Tracker) eligible(o *model.Object, f *model.Feature, expectedBox model.PixelBox) bool {
	if f.ObjectID != 0 {
		return false
	}
	if !(f.Significant || o.Significant) {
		return false
	}
	if expectedBox.OverlapFraction(f.Box) < t.cfg.FeatureMinOverlapPct {
		return false
	}
	if !f.IsViable(t.cfg.FeatureMaxSize, t.cfg.ObjectMinDensityPct) {
		return false
	}
	if last := t.lastFeature(o); last != nil && last.Type == model.FeatureReal {
		if !last.IsViable(t.cfg.FeatureMaxSize, t.cfg.ObjectMinDensityPct) {
			return false
		}
	}
	return true
}

// claim assigns f to o, consuming f into the block's already-claimed Real
// feature when one exists (spec.md §4.2 step 4).
func (t *Tracker) claim(block *model.Block, o *model.Object, f *model.Feature, claimedThisBlock map[int64]int64) error {
	if ownerFeatureID, already := claimedThisBlock[o.ID]; already {
		owner, ok := t.catalog.Features.Get(ownerFeatureID)
		if !ok {
			return model.NewError(model.ErrOwnershipViolation, "claimed feature missing from catalog").WithObject(o.ID).WithFeature(ownerFeatureID, 0, 0, 0, 0)
		}
		consume(owner, f)
		return nil
	}

	if f.ObjectID != 0 {
		return model.NewError(model.ErrOwnershipViolation, "feature already owned").WithFeature(f.ID, 0, 0, 0, 0).WithObject(o.ID)
	}

	f.ObjectID = o.ID
	f.Tracking = true
	o.FeatureIDs = append(o.FeatureIDs, f.ID)
	o.LastRealIdx = len(o.FeatureIDs) - 1
	o.NumReal++
	o.LastBlockID = block.ID
	o.LastRealBlockID = block.ID
	o.UnrealBlocksRemaining = t.cfg.ObjectMaxUnrealBlocks
	switch o.State {
	case model.StateSeeded:
		o.State = model.StateTentative
	case model.StateFading:
		o.State = model.StateSignificant
	}
	if o.Significant {
		o.NumSigBlocks++
	}
	updateRealMaxima(o, f)
	claimedThisBlock[o.ID] = f.ID
	return nil
}

// consume absorbs other's pixels into owner (already-claimed Real feature
// of this block), per spec.md §4.2 step 4. Deliberately skips viability
// checks on the consumed fragment (spec.md §9 Open Question 1): a tiny
// fragment can grow owner's pixel-box past feature_max_size and that is
// the observed, replicated behavior.
func consume(owner, other *model.Feature) {
	owner.Pixels = append(owner.Pixels, other.Pixels...)
	owner.HotCount += other.HotCount
	owner.Box = owner.Box.Union(other.Box)
	if other.HeatMin < owner.HeatMin {
		owner.HeatMin = other.HeatMin
	}
	if other.HeatMax > owner.HeatMax {
		owner.HeatMax = other.HeatMax
	}
	other.Type = model.FeatureConsumed
	other.Pixels = nil
	other.ObjectID = 0
	other.Tracking = false
}

// seed creates a new object with f as its first Real feature (spec.md
// §4.2 step 5).
func (t *Tracker) seed(block *model.Block, f *model.Feature, newObjectID func() int64) {
	o := model.NewObject(newObjectID(), t.cfg.ObjectMaxUnrealBlocks)
	f.ObjectID = o.ID
	f.Tracking = true
	o.FeatureIDs = []int64{f.ID}
	o.LastRealIdx = 0
	o.NumReal = 1
	o.FirstBlockID = block.ID
	o.LastBlockID = block.ID
	o.LastRealBlockID = block.ID
	o.State = model.StateTentative
	updateRealMaxima(o, f)
	t.catalog.Objects.Put(o.ID, o)
}

// extendWithUnreal synthesizes a placeholder feature for an object that did
// not claim this block, persisting it across brief occlusion (spec.md
// §4.2 step 6). It kills the object once the gap exceeds
// object_max_unreal_blocks.
func (t *Tracker) extendWithUnreal(block *model.Block, o *model.Object, newFeatureID func() int64) {
	if o.UnrealBlocksRemaining <= 0 {
		o.Kill()
		t.logger.Debug("object died", "object_id", o.ID, "block_id", block.ID)
		return
	}

	last := t.lastFeature(o)
	u := &model.Feature{
		ID:         newFeatureID(),
		BlockID:    block.ID,
		Type:       model.FeatureUnreal,
		ObjectID:   o.ID,
		Tracking:   true,
		HeightM:    o.HeightM,
		HeightAlgo: model.HeightCopy,
		Location:   o.LocationM,
	}
	if last != nil {
		u.Box = last.Box
	}
	t.logger.Debug("synthesized unreal feature", "object_id", o.ID, "feature_id", u.ID, "block_id", block.ID)
	t.catalog.Features.Put(u.ID, u)
	o.FeatureIDs = append(o.FeatureIDs, u.ID)
	o.LastBlockID = block.ID
	o.UnrealBlocksRemaining--

	if o.State == model.StateSignificant {
		o.State = model.StateFading
	}
}

// lastFeature returns the most recently owned feature (Real or Unreal), or
// nil if the object owns none yet.
func (t *Tracker) lastFeature(o *model.Object) *model.Feature {
	if len(o.FeatureIDs) == 0 {
		return nil
	}
	id := o.FeatureIDs[len(o.FeatureIDs)-1]
	f, _ := t.catalog.Features.Get(id)
	return f
}

// lastRealFeature returns the object's most recent Real feature.
func (t *Tracker) lastRealFeature(o *model.Object) *model.Feature {
	if o.LastRealIdx < 0 || o.LastRealIdx >= len(o.FeatureIDs) {
		return nil
	}
	f, _ := t.catalog.Features.Get(o.FeatureIDs[o.LastRealIdx])
	return f
}

// firstRealFeature returns the object's first-ever Real feature.
func (t *Tracker) firstRealFeature(o *model.Object) *model.Feature {
	id, found := lo.Find(o.FeatureIDs, func(id int64) bool {
		f, ok := t.catalog.Features.Get(id)
		return ok && f.Type == model.FeatureReal
	})
	if !found {
		return nil
	}
	f, _ := t.catalog.Features.Get(id)
	return f
}

// expectedBox computes the object's expected pixel-box for the upcoming
// block (spec.md §4.2 "Expected-box computation").
func (t *Tracker) expectedBox(o *model.Object) model.PixelBox {
	last := t.lastRealFeature(o)
	if last == nil {
		return model.PixelBox{}
	}
	if o.NumRealFeatures() < 2 {
		return last.Box.InflatedBy(5)
	}

	first := t.firstRealFeature(o)
	blocksSpanned := last.BlockID - first.BlockID
	if blocksSpanned <= 0 {
		return last.Box.InflatedBy(5)
	}

	vx := (last.Box.CenterX() - first.Box.CenterX()) / float64(blocksSpanned)
	vy := (last.Box.CenterY() - first.Box.CenterY()) / float64(blocksSpanned)

	cx := last.Box.CenterX() + vx
	cy := last.Box.CenterY() + vy

	w := max(last.Box.W, o.MaxRealWidth)
	h := max(last.Box.H, o.MaxRealHeight)

	box := model.PixelBox{
		X: int(cx) - w/2,
		Y: int(cy) - h/2,
		W: w,
		H: h,
	}
	return box.InflatedBy(5)
}

// updateRealMaxima refreshes the object's aggregate maxima over owned Real
// features (spec.md §3 Object attributes).
func updateRealMaxima(o *model.Object, f *model.Feature) {
	if f.HotCount > o.MaxRealHotPixels {
		o.MaxRealHotPixels = f.HotCount
	}
	if f.Box.W > o.MaxRealWidth {
		o.MaxRealWidth = f.Box.W
	}
	if f.Box.H > o.MaxRealHeight {
		o.MaxRealHeight = f.Box.H
	}
	if d := f.Density(); d > o.MaxRealDensity {
		o.MaxRealDensity = d
	}
	if f.HeatMax > o.MaxHeat {
		o.MaxHeat = f.HeatMax
	}
}
