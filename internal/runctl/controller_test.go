package runctl

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/config"
	"github.com/skycomb-go/thermaltrack/internal/geometry"
	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/optimizer"
	"github.com/skycomb-go/thermaltrack/internal/ports"
	"github.com/skycomb-go/thermaltrack/internal/scanner"
	"github.com/skycomb-go/thermaltrack/internal/tracker"
)

// hotSquareFrame builds a w x h original/threshold pair with a single
// size x size hot square at (x0,y0), the same fixture shape the scanner's
// own tests use.
func hotSquareFrame(w, h, x0, y0, size int) (*image.RGBA, *image.Gray) {
	orig := image.NewRGBA(image.Rect(0, 0, w, h))
	thresh := image.NewGray(image.Rect(0, 0, w, h))
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			orig.Set(x, y, color.RGBA{R: 200, G: 150, B: 100, A: 255})
			thresh.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return orig, thresh
}

func testLayers() LayerConfigs {
	return LayerConfigs{
		Scanner:   scanner.DefaultConfig(),
		Tracker:   tracker.DefaultConfig(),
		Geometry:  geometry.DefaultConfig(),
		Optimizer: optimizer.DefaultConfig(),
		Detector:  config.DetectorConfig{Kind: config.DetectorComb},
	}
}

func TestController_Run_TracksAndNamesSignificantObject(t *testing.T) {
	const frameCount = 8
	const frameMS = int64(100)

	frames := make([]ports.Frame, frameCount)
	for i := range frames {
		orig, thresh := hotSquareFrame(200, 200, 100, 100, 5)
		frames[i] = ports.Frame{
			Original:                   orig,
			Threshold:                  thresh,
			CaptureMS:                  int64(i) * frameMS,
			CameraToVerticalForwardDeg: 45,
		}
	}

	poses := &ports.FakePoseSource{
		Steps: []ports.StepPose{
			{StepID: 1, TimestampMS: 0, NorthingM: 100, EastingM: 200, AltitudeM: 120, DemM: 20},
			{StepID: 2, TimestampMS: int64(frameCount) * frameMS, NorthingM: 100, EastingM: 200, AltitudeM: 120, DemM: 20},
		},
	}
	ground := &ports.FakeGroundSource{DemM: 20}

	c := New(
		RunConfig{FrameMS: frameMS},
		testLayers(),
		Deps{
			Frames: &ports.FakeFrameSource{Frames: frames},
			Poses:  poses,
			Ground: ground,
		},
	)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := c.catalog.Blocks.Len(); got != frameCount {
		t.Fatalf("blocks processed = %d, want %d", got, frameCount)
	}

	var found *model.Object
	c.catalog.Objects.All(func(_ int64, o *model.Object) bool {
		if o.Significant {
			found = o
			return false
		}
		return true
	})
	if found == nil {
		t.Fatal("expected one significant object, got none")
	}
	if found.Name == "" {
		t.Error("significant object was never named")
	}
	if found.NumReal < 6 {
		t.Errorf("NumReal = %d, want >= 6 real claims", found.NumReal)
	}

	if c.catalog.Spans.Len() == 0 {
		t.Error("expected the run to have closed at least one span")
	}
}

func TestController_Run_EmptyWindowIsANoop(t *testing.T) {
	c := New(
		RunConfig{FrameMS: 100, FromS: 10, ToS: 5},
		testLayers(),
		Deps{
			Frames: &ports.FakeFrameSource{},
			Poses:  &ports.FakePoseSource{},
			Ground: &ports.FakeGroundSource{DemM: 20},
		},
	)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if c.catalog.Blocks.Len() != 0 {
		t.Errorf("expected no blocks processed, got %d", c.catalog.Blocks.Len())
	}
}

func TestController_Run_RespectsCancellation(t *testing.T) {
	frames := make([]ports.Frame, 20)
	for i := range frames {
		orig, thresh := hotSquareFrame(50, 50, 10, 10, 3)
		frames[i] = ports.Frame{Original: orig, Threshold: thresh, CaptureMS: int64(i) * 100}
	}

	c := New(
		RunConfig{FrameMS: 100},
		testLayers(),
		Deps{
			Frames: &ports.FakeFrameSource{Frames: frames},
			Poses: &ports.FakePoseSource{Steps: []ports.StepPose{
				{StepID: 1, TimestampMS: 0, AltitudeM: 120, DemM: 20},
				{StepID: 2, TimestampMS: 2000, AltitudeM: 120, DemM: 20},
			}},
			Ground: &ports.FakeGroundSource{DemM: 20},
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); err == nil {
		t.Error("expected Run() to report the cancellation error")
	}
}
