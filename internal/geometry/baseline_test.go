package geometry

import (
	"math"
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

func TestBaselineTriangulateHappyPath(t *testing.T) {
	cfg := DefaultConfig()
	first := model.WorldPoint{NorthingM: 0, EastingM: 0}
	last := model.WorldPoint{NorthingM: 40, EastingM: 0} // 40m ground speed over the run

	// depthDown = baseline/deltaTan must reproduce trueHeight given
	// droneAboveGround; pick deltaTan backward from that relationship with
	// firstFwdDeg fixed at 0 (nadir).
	const trueHeight = 5.0
	const droneAboveGround = 100.0
	depthDown := droneAboveGround - trueHeight

	baseline := first.Distance2D(last)
	deltaTan := baseline / depthDown
	lastFwdDeg := radToDeg(math.Atan(deltaTan))

	result := BaselineTriangulate(first, last, 0, lastFwdDeg, droneAboveGround, 1000, droneAboveGround, cfg, 600)
	if !result.OK {
		t.Fatalf("expected triangulation to succeed, got error kind %v", result.ErrKind)
	}
	if math.Abs(result.HeightM-trueHeight) > 0.5 {
		t.Fatalf("expected height ~%v, got %v", trueHeight, result.HeightM)
	}
}

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }

func TestBaselineTriangulateTooShort(t *testing.T) {
	cfg := DefaultConfig()
	first := model.WorldPoint{NorthingM: 0, EastingM: 0}
	last := model.WorldPoint{NorthingM: 0.1, EastingM: 0}

	result := BaselineTriangulate(first, last, 0, 30, 100, 1000, 100, cfg, 600)
	if result.OK {
		t.Fatal("expected short baseline to fail")
	}
	if result.ErrKind != model.ErrBaselineInsufficient {
		t.Fatalf("expected ErrBaselineInsufficient, got %v", result.ErrKind)
	}
}

func TestBaselineTriangulateSmallDeltaTan(t *testing.T) {
	cfg := DefaultConfig()
	first := model.WorldPoint{NorthingM: 0, EastingM: 0}
	last := model.WorldPoint{NorthingM: 40, EastingM: 0}

	result := BaselineTriangulate(first, last, 20, 20.01, 100, 1000, 100, cfg, 600)
	if result.OK {
		t.Fatal("expected negligible delta-tan to fail")
	}
}

func TestIsAccurate(t *testing.T) {
	cfg := DefaultConfig()
	near := model.WorldPoint{NorthingM: 0, EastingM: 0}
	far := model.WorldPoint{NorthingM: 3, EastingM: 0}
	if !IsAccurate(near, far, cfg) {
		t.Fatal("expected 3m baseline to be accurate")
	}
	close_ := model.WorldPoint{NorthingM: 1, EastingM: 0}
	if IsAccurate(near, close_, cfg) {
		t.Fatal("expected 1m baseline to not be accurate")
	}
}
