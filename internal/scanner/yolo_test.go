package scanner

import (
	"image"
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/ports"
)

func TestScanYoloAggregatesHeatInsideBox(t *testing.T) {
	orig, thresh := hotSquareFrames(100, 100, 20, 20, 4)
	boxes := []ports.DetectedBox{{X: 15, Y: 15, W: 20, H: 20, Label: "hotspot", Confidence: 0.9}}

	features, nextID, err := ScanYolo(orig, thresh, boxes, 1, 1, DefaultConfig(), false)
	if err != nil {
		t.Fatalf("ScanYolo() error = %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("len(features) = %d, want 1", len(features))
	}
	f := features[0]
	if f.HotCount != 16 {
		t.Errorf("HotCount = %d, want 16", f.HotCount)
	}
	if f.Box != (model.PixelBox{X: 15, Y: 15, W: 20, H: 20}) {
		t.Errorf("Box should remain the supplied box without shrink: got %+v", f.Box)
	}
	if f.Label != "hotspot" || f.Confidence != 0.9 {
		t.Errorf("label/confidence not carried: %q %v", f.Label, f.Confidence)
	}
	if nextID != 2 {
		t.Errorf("nextID = %d, want 2", nextID)
	}
}

func TestScanYoloShrinksToHullWhenRequested(t *testing.T) {
	orig, thresh := hotSquareFrames(100, 100, 20, 20, 4)
	boxes := []ports.DetectedBox{{X: 10, Y: 10, W: 30, H: 30}}

	features, _, err := ScanYolo(orig, thresh, boxes, 1, 1, DefaultConfig(), true)
	if err != nil {
		t.Fatalf("ScanYolo() error = %v", err)
	}
	want := model.PixelBox{X: 20, Y: 20, W: 4, H: 4}
	if features[0].Box != want {
		t.Errorf("Box = %+v, want %+v", features[0].Box, want)
	}
}

func TestScanYoloEmptyBoxHasNoPixels(t *testing.T) {
	orig := image.NewRGBA(image.Rect(0, 0, 50, 50))
	thresh := image.NewGray(image.Rect(0, 0, 50, 50))
	boxes := []ports.DetectedBox{{X: 5, Y: 5, W: 10, H: 10}}

	features, _, err := ScanYolo(orig, thresh, boxes, 1, 1, DefaultConfig(), true)
	if err != nil {
		t.Fatalf("ScanYolo() error = %v", err)
	}
	if features[0].HotCount != 0 {
		t.Errorf("HotCount = %d, want 0", features[0].HotCount)
	}
	if features[0].Box.W != 10 {
		t.Errorf("Box should be unchanged when no hot pixels found, got %+v", features[0].Box)
	}
}
