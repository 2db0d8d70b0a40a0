package ports

import (
	"context"
	"image"
)

// FakeFrameSource is a deterministic in-memory FrameSource for tests.
type FakeFrameSource struct {
	Frames []Frame
}

func (f *FakeFrameSource) Frame(_ context.Context, index int) (Frame, bool, error) {
	if index < 0 || index >= len(f.Frames) {
		return Frame{}, false, nil
	}
	return f.Frames[index], true, nil
}

func (f *FakeFrameSource) Len() int { return len(f.Frames) }

// FakePoseSource is a deterministic in-memory PoseSource for tests. Steps
// must be sorted ascending by TimestampMS.
type FakePoseSource struct {
	Steps    []StepPose
	LegList  []Leg
}

func (p *FakePoseSource) Interpolate(timeMS int64) (StepPose, StepPose, float64, error) {
	if len(p.Steps) == 0 {
		return StepPose{}, StepPose{}, 0, nil
	}
	if timeMS <= p.Steps[0].TimestampMS {
		return p.Steps[0], p.Steps[0], 1, nil
	}
	last := p.Steps[len(p.Steps)-1]
	if timeMS >= last.TimestampMS {
		return last, last, 1, nil
	}
	for i := 1; i < len(p.Steps); i++ {
		if p.Steps[i].TimestampMS >= timeMS {
			before, after := p.Steps[i-1], p.Steps[i]
			span := float64(after.TimestampMS - before.TimestampMS)
			if span == 0 {
				return before, after, 1, nil
			}
			weight := float64(after.TimestampMS-timeMS) / span
			return before, after, weight, nil
		}
	}
	return last, last, 1, nil
}

func (p *FakePoseSource) Legs() []Leg { return p.LegList }

// FakeGroundSource is a flat-elevation GroundSource for tests.
type FakeGroundSource struct {
	DemM      float64
	DsmM      float64
	HasDSM    bool
	OutOfGrid bool
}

func (g *FakeGroundSource) ElevationDEM(_, _ float64) (float64, bool) {
	if g.OutOfGrid {
		return 0, false
	}
	return g.DemM, true
}

func (g *FakeGroundSource) ElevationDSM(_, _ float64) (float64, bool) {
	if g.OutOfGrid || !g.HasDSM {
		return 0, false
	}
	return g.DsmM, true
}

// FakeDetector returns a fixed set of boxes for every frame, for Yolo-mode
// tests.
type FakeDetector struct {
	Boxes []DetectedBox
}

func (d *FakeDetector) Detect(_ context.Context, _ Frame) ([]DetectedBox, error) {
	return d.Boxes, nil
}

// SolidImage returns a uniform image.Gray of the given size and value, a
// convenient Threshold frame for scanner tests.
func SolidImage(w, h int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}
