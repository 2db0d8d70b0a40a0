package runctl

import (
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/optimizer"
)

// TestApplyTriangulationResultWritesFeaturesAndRecomputesHeight covers
// spec.md §4.4: a converged triangulation must write the optimized location
// onto every owned Real feature, not just the object aggregate, and must
// recompute height_m from the DEM at the new location rather than carry the
// pre-optimization value forward.
func TestApplyTriangulationResultWritesFeaturesAndRecomputesHeight(t *testing.T) {
	features := model.NewArena[model.Feature]()
	real1 := &model.Feature{ID: 1, Type: model.FeatureReal, Location: model.WorldPoint{NorthingM: 10, EastingM: 10}, HeightM: 3}
	real2 := &model.Feature{ID: 2, Type: model.FeatureReal, Location: model.WorldPoint{NorthingM: 11, EastingM: 11}, HeightM: 3}
	unreal := &model.Feature{ID: 3, Type: model.FeatureUnreal, Location: model.WorldPoint{NorthingM: 12, EastingM: 12}, HeightM: 3}
	features.Put(1, real1)
	features.Put(2, real2)
	features.Put(3, unreal)

	o := &model.Object{
		ID:         1,
		FeatureIDs: []int64{1, 2, 3},
		LocationM:  model.WorldPoint{NorthingM: 10, EastingM: 10, AltitudeM: 20},
		HeightM:    3,
	}

	res := optimizer.TriangulationResult{
		Location:  model.WorldPoint{NorthingM: 100, EastingM: 200, AltitudeM: 150},
		Converged: true,
	}
	const groundM = 100.0

	locErr, heightErr := applyTriangulationResult(o, features, res, groundM)

	if o.LocationM != res.Location {
		t.Fatalf("object LocationM = %+v, want %+v", o.LocationM, res.Location)
	}
	wantHeight := 150.0 - groundM
	if o.HeightM != wantHeight {
		t.Fatalf("object HeightM = %v, want %v (altitude - ground, not the stale pre-optimization value)", o.HeightM, wantHeight)
	}
	if o.MinHeightM != wantHeight || o.MaxHeightM != wantHeight {
		t.Errorf("object Min/MaxHeightM = %v/%v, want both %v", o.MinHeightM, o.MaxHeightM, wantHeight)
	}
	if heightErr != 47 { // |50 - 3|
		t.Errorf("heightErr = %v, want 47", heightErr)
	}
	if locErr <= 0 {
		t.Errorf("locErr = %v, want > 0 (object moved)", locErr)
	}

	for _, f := range []*model.Feature{real1, real2} {
		if f.Location != res.Location {
			t.Errorf("feature %d Location = %+v, want %+v", f.ID, f.Location, res.Location)
		}
		if f.HeightM != wantHeight {
			t.Errorf("feature %d HeightM = %v, want %v", f.ID, f.HeightM, wantHeight)
		}
		if f.HeightAlgo != model.HeightTriangulated {
			t.Errorf("feature %d HeightAlgo = %v, want %v", f.ID, f.HeightAlgo, model.HeightTriangulated)
		}
	}

	if unreal.Location == res.Location {
		t.Error("an Unreal feature must not be mutated by the span optimizer")
	}
}
