package model

import "testing"

func TestPixelBoxOverlapFraction(t *testing.T) {
	a := PixelBox{X: 0, Y: 0, W: 10, H: 10}
	b := PixelBox{X: 5, Y: 5, W: 10, H: 10}

	got := a.OverlapFraction(b)
	want := 25.0 / 100.0 // 5x5 intersection over the smaller (equal) area
	if got != want {
		t.Fatalf("OverlapFraction() = %v, want %v", got, want)
	}

	if got := a.OverlapFraction(PixelBox{X: 100, Y: 100, W: 5, H: 5}); got != 0 {
		t.Fatalf("disjoint boxes should have 0 overlap, got %v", got)
	}
}

func TestPixelBoxUnion(t *testing.T) {
	a := PixelBox{X: 0, Y: 0, W: 3, H: 3}
	b := PixelBox{X: 2, Y: 2, W: 3, H: 3}

	u := a.Union(b)
	want := PixelBox{X: 0, Y: 0, W: 5, H: 5}
	if u != want {
		t.Fatalf("Union() = %+v, want %+v", u, want)
	}
}

func TestPixelBoxInflatedBy(t *testing.T) {
	b := PixelBox{X: 10, Y: 10, W: 4, H: 4}
	inf := b.InflatedBy(5)
	want := PixelBox{X: 5, Y: 5, W: 14, H: 14}
	if inf != want {
		t.Fatalf("InflatedBy() = %+v, want %+v", inf, want)
	}
}

func TestMeanWorldPoint(t *testing.T) {
	pts := []WorldPoint{
		{NorthingM: 0, EastingM: 0, AltitudeM: 10},
		{NorthingM: 10, EastingM: 10, AltitudeM: 20},
	}
	mean := MeanWorldPoint(pts)
	want := WorldPoint{NorthingM: 5, EastingM: 5, AltitudeM: 15}
	if mean != want {
		t.Fatalf("MeanWorldPoint() = %+v, want %+v", mean, want)
	}
}

func TestMeanWorldPointEmpty(t *testing.T) {
	if got := MeanWorldPoint(nil); got != (WorldPoint{}) {
		t.Fatalf("MeanWorldPoint(nil) = %+v, want zero value", got)
	}
}
