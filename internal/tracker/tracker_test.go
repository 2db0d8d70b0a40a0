package tracker

import (
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

func newCounter(start int64) func() int64 {
	next := start
	return func() int64 {
		id := next
		next++
		return id
	}
}

// TestProcessBlockTracksIdenticalFramesToSignificance covers spec.md §8
// boundary scenario 2: two consecutive identical frames of a single hot
// blob at (100,100,10,10) yield one object, claiming both features, which
// becomes significant once num_real_features*frame_ms >= object_min_duration_ms.
func TestProcessBlockTracksIdenticalFramesToSignificance(t *testing.T) {
	catalog := model.NewCatalog()
	cfg := Config{
		ObjectMinDurationMS:     100,
		ObjectMinPixelsPerBlock: 9,
		ObjectMinDensityPct:     0.3,
		ObjectMaxUnrealBlocks:   3,
		FeatureMinOverlapPct:    0.2,
		FeatureMaxSize:          60,
	}
	tr := New(cfg, catalog, nil)
	nextObjID := newCounter(1)
	nextFeatID := newCounter(1)
	box := model.PixelBox{X: 100, Y: 100, W: 10, H: 10}

	block1 := &model.Block{ID: 1}
	f1 := &model.Feature{ID: nextFeatID(), BlockID: 1, Type: model.FeatureReal, Box: box, HotCount: 40, Significant: true}
	if err := tr.ProcessBlock(block1, []*model.Feature{f1}, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block1) error = %v", err)
	}
	if catalog.Objects.Len() != 1 {
		t.Fatalf("Objects.Len() = %d, want 1", catalog.Objects.Len())
	}
	obj, _ := catalog.Objects.Get(1)
	if obj.NumReal != 1 || obj.State != model.StateTentative {
		t.Fatalf("after block1: NumReal=%d State=%s, want 1/tentative", obj.NumReal, obj.State)
	}
	if tr.EvaluateSignificance(obj, 60) {
		t.Fatalf("object became significant after a single block")
	}

	block2 := &model.Block{ID: 2}
	f2 := &model.Feature{ID: nextFeatID(), BlockID: 2, Type: model.FeatureReal, Box: box, HotCount: 40, Significant: true}
	if err := tr.ProcessBlock(block2, []*model.Feature{f2}, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block2) error = %v", err)
	}
	if catalog.Objects.Len() != 1 {
		t.Fatalf("Objects.Len() = %d, want 1 (no second object seeded)", catalog.Objects.Len())
	}
	if obj.NumReal != 2 {
		t.Fatalf("NumReal = %d, want 2", obj.NumReal)
	}
	if f2.ObjectID != obj.ID {
		t.Fatalf("second frame's feature not claimed by the same object")
	}

	if !tr.EvaluateSignificance(obj, 60) {
		t.Fatalf("object should be significant once 2*frame_ms >= object_min_duration_ms")
	}
	if obj.State != model.StateSignificant {
		t.Errorf("State = %s, want significant", obj.State)
	}
	if !f1.Significant || !f2.Significant {
		t.Errorf("back-fill rule violated: both owned features must carry significant=true")
	}
}

// TestProcessBlockPersistsThroughOcclusionThenDies covers spec.md §8
// boundary scenario 3: an object survives a short gap in detections via
// synthesized Unreal features, then dies once the gap exceeds
// object_max_unreal_blocks.
func TestProcessBlockPersistsThroughOcclusionThenDies(t *testing.T) {
	catalog := model.NewCatalog()
	cfg := Config{
		ObjectMinDurationMS:     1,
		ObjectMinPixelsPerBlock: 1,
		ObjectMinDensityPct:     0.1,
		ObjectMaxUnrealBlocks:   2,
		FeatureMinOverlapPct:    0.2,
		FeatureMaxSize:          60,
	}
	tr := New(cfg, catalog, nil)
	nextObjID := newCounter(1)
	nextFeatID := newCounter(1)
	box := model.PixelBox{X: 50, Y: 50, W: 10, H: 10}

	block1 := &model.Block{ID: 1}
	f1 := &model.Feature{ID: nextFeatID(), BlockID: 1, Type: model.FeatureReal, Box: box, HotCount: 20, Significant: true}
	if err := tr.ProcessBlock(block1, []*model.Feature{f1}, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block1) error = %v", err)
	}
	obj, _ := catalog.Objects.Get(1)
	if obj.UnrealBlocksRemaining != cfg.ObjectMaxUnrealBlocks {
		t.Fatalf("UnrealBlocksRemaining = %d, want %d after the claiming block", obj.UnrealBlocksRemaining, cfg.ObjectMaxUnrealBlocks)
	}

	block2 := &model.Block{ID: 2}
	if err := tr.ProcessBlock(block2, nil, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block2) error = %v", err)
	}
	if !obj.BeingTracked || obj.UnrealBlocksRemaining != 1 {
		t.Fatalf("after one missed block: BeingTracked=%v UnrealBlocksRemaining=%d, want true/1", obj.BeingTracked, obj.UnrealBlocksRemaining)
	}
	if len(obj.FeatureIDs) != 2 {
		t.Fatalf("len(FeatureIDs) = %d, want 2 (real + synthesized unreal)", len(obj.FeatureIDs))
	}

	block3 := &model.Block{ID: 3}
	if err := tr.ProcessBlock(block3, nil, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block3) error = %v", err)
	}
	if !obj.BeingTracked || obj.UnrealBlocksRemaining != 0 {
		t.Fatalf("after two missed blocks: BeingTracked=%v UnrealBlocksRemaining=%d, want true/0", obj.BeingTracked, obj.UnrealBlocksRemaining)
	}

	block4 := &model.Block{ID: 4}
	if err := tr.ProcessBlock(block4, nil, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block4) error = %v", err)
	}
	if obj.BeingTracked {
		t.Fatalf("object should die once the unreal gap exceeds object_max_unreal_blocks")
	}
	if obj.State != model.StateDead {
		t.Errorf("State = %s, want dead", obj.State)
	}
}

// TestProcessBlockConsumesFragmentInSameBlock covers spec.md §8 boundary
// scenario 4: when a tracked object's blob splits into two fragments
// within one block, the second fragment is consumed into the first rather
// than becoming a second Real feature.
func TestProcessBlockConsumesFragmentInSameBlock(t *testing.T) {
	catalog := model.NewCatalog()
	cfg := Config{
		ObjectMinDurationMS:     1,
		ObjectMinPixelsPerBlock: 1,
		ObjectMinDensityPct:     0.1,
		ObjectMaxUnrealBlocks:   3,
		FeatureMinOverlapPct:    0.1,
		FeatureMaxSize:          60,
	}
	tr := New(cfg, catalog, nil)
	nextObjID := newCounter(1)
	nextFeatID := newCounter(1)

	block1 := &model.Block{ID: 1}
	f1 := &model.Feature{ID: nextFeatID(), BlockID: 1, Type: model.FeatureReal, Box: model.PixelBox{X: 100, Y: 100, W: 20, H: 10}, HotCount: 100, Significant: true}
	if err := tr.ProcessBlock(block1, []*model.Feature{f1}, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block1) error = %v", err)
	}
	obj, _ := catalog.Objects.Get(1)

	block2 := &model.Block{ID: 2}
	fragA := &model.Feature{ID: nextFeatID(), BlockID: 2, Type: model.FeatureReal, Box: model.PixelBox{X: 100, Y: 100, W: 8, H: 10}, HotCount: 40, Significant: true}
	fragB := &model.Feature{ID: nextFeatID(), BlockID: 2, Type: model.FeatureReal, Box: model.PixelBox{X: 112, Y: 100, W: 8, H: 10}, HotCount: 35, Significant: true}
	if err := tr.ProcessBlock(block2, []*model.Feature{fragA, fragB}, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block2) error = %v", err)
	}

	if catalog.Objects.Len() != 1 {
		t.Fatalf("Objects.Len() = %d, want 1 (no second object seeded from the fragment)", catalog.Objects.Len())
	}
	if obj.NumReal != 2 {
		t.Fatalf("NumReal = %d, want 2 (one from block1, one merged from block2's two fragments)", obj.NumReal)
	}
	if fragB.Type != model.FeatureConsumed {
		t.Fatalf("second fragment Type = %s, want consumed", fragB.Type)
	}
	if fragB.ObjectID != 0 {
		t.Errorf("consumed feature must not retain an owning object id")
	}
	if fragA.HotCount != 75 {
		t.Errorf("owner HotCount = %d, want 75 (40+35 merged)", fragA.HotCount)
	}
	wantBox := model.PixelBox{X: 100, Y: 100, W: 20, H: 10}
	if fragA.Box != wantBox {
		t.Errorf("owner Box = %+v, want %+v (union of the two fragments)", fragA.Box, wantBox)
	}
}

// TestProcessBlockRejectsOversizedCandidateAgainstConfiguredMaxSize covers
// the feature_max_size viability gate (spec.md §4.1, §4.2): it must reuse
// the same bound the scanner applies at scan time, not a bound derived from
// the object's own tracked history.
func TestProcessBlockRejectsOversizedCandidateAgainstConfiguredMaxSize(t *testing.T) {
	catalog := model.NewCatalog()
	cfg := Config{
		ObjectMinDurationMS:     1,
		ObjectMinPixelsPerBlock: 1,
		ObjectMinDensityPct:     0.1,
		ObjectMaxUnrealBlocks:   3,
		FeatureMinOverlapPct:    0.1,
		FeatureMaxSize:          30,
	}
	tr := New(cfg, catalog, nil)
	nextObjID := newCounter(1)
	nextFeatID := newCounter(1)

	block1 := &model.Block{ID: 1}
	small := &model.Feature{ID: nextFeatID(), BlockID: 1, Type: model.FeatureReal, Box: model.PixelBox{X: 100, Y: 100, W: 10, H: 10}, HotCount: 100, Significant: true}
	if err := tr.ProcessBlock(block1, []*model.Feature{small}, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block1) error = %v", err)
	}
	obj, _ := catalog.Objects.Get(1)
	if obj.MaxRealWidth != 10 || obj.MaxRealHeight != 10 {
		t.Fatalf("object historical maxima = %d/%d, want 10/10", obj.MaxRealWidth, obj.MaxRealHeight)
	}

	block2 := &model.Block{ID: 2}
	oversized := &model.Feature{ID: nextFeatID(), BlockID: 2, Type: model.FeatureReal, Box: model.PixelBox{X: 100, Y: 100, W: 35, H: 35}, HotCount: 1000, Significant: true}
	if err := tr.ProcessBlock(block2, []*model.Feature{oversized}, nextObjID, nextFeatID); err != nil {
		t.Fatalf("ProcessBlock(block2) error = %v", err)
	}
	if oversized.ObjectID != 0 {
		t.Fatalf("oversized candidate (35x35) was claimed despite exceeding feature_max_size=30")
	}
	if catalog.Objects.Len() != 2 {
		t.Fatalf("Objects.Len() = %d, want 2 (oversized candidate seeds its own object instead of being claimed)", catalog.Objects.Len())
	}
}
