package model

import "math"

// WorldPoint is a geo-referenced location in the run's local northing/
// easting/altitude frame, all in meters.
type WorldPoint struct {
	NorthingM float64
	EastingM  float64
	AltitudeM float64
}

// Distance2D returns the horizontal Euclidean distance to other, ignoring
// altitude. Used for location scatter and ground-range calculations.
func (p WorldPoint) Distance2D(other WorldPoint) float64 {
	dn := p.NorthingM - other.NorthingM
	de := p.EastingM - other.EastingM
	return math.Hypot(dn, de)
}

// Distance3D returns the Euclidean distance including altitude.
func (p WorldPoint) Distance3D(other WorldPoint) float64 {
	dn := p.NorthingM - other.NorthingM
	de := p.EastingM - other.EastingM
	da := p.AltitudeM - other.AltitudeM
	return math.Sqrt(dn*dn + de*de + da*da)
}

// MeanWorldPoint returns the arithmetic mean of a set of points. Returns the
// zero value for an empty set.
func MeanWorldPoint(pts []WorldPoint) WorldPoint {
	if len(pts) == 0 {
		return WorldPoint{}
	}
	var mean WorldPoint
	for _, p := range pts {
		mean.NorthingM += p.NorthingM
		mean.EastingM += p.EastingM
		mean.AltitudeM += p.AltitudeM
	}
	n := float64(len(pts))
	mean.NorthingM /= n
	mean.EastingM /= n
	mean.AltitudeM /= n
	return mean
}

// PixelBox is an axis-aligned pixel-space bounding box, top-left origin.
type PixelBox struct {
	X, Y, W, H int
}

// Area returns the pixel area of the box.
func (b PixelBox) Area() int {
	return b.W * b.H
}

// Right returns the exclusive right edge (X + W).
func (b PixelBox) Right() int { return b.X + b.W }

// Bottom returns the exclusive bottom edge (Y + H).
func (b PixelBox) Bottom() int { return b.Y + b.H }

// CenterX returns the horizontal pixel center.
func (b PixelBox) CenterX() float64 { return float64(b.X) + float64(b.W)/2 }

// CenterY returns the vertical pixel center.
func (b PixelBox) CenterY() float64 { return float64(b.Y) + float64(b.H)/2 }

// Union returns the smallest box containing both b and other.
func (b PixelBox) Union(other PixelBox) PixelBox {
	x0 := min(b.X, other.X)
	y0 := min(b.Y, other.Y)
	x1 := max(b.Right(), other.Right())
	y1 := max(b.Bottom(), other.Bottom())
	return PixelBox{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// IntersectionArea returns the pixel area shared by b and other.
func (b PixelBox) IntersectionArea(other PixelBox) int {
	x0 := max(b.X, other.X)
	y0 := max(b.Y, other.Y)
	x1 := min(b.Right(), other.Right())
	y1 := min(b.Bottom(), other.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	return (x1 - x0) * (y1 - y0)
}

// OverlapFraction returns intersection_area / area_of_either, the metric
// spec.md §4.2 uses for claim eligibility: the overlap relative to the
// SMALLER of the two areas, so a small fresh feature fully inside a large
// expected box still counts as a strong match.
func (b PixelBox) OverlapFraction(other PixelBox) float64 {
	areaB, areaO := b.Area(), other.Area()
	if areaB == 0 || areaO == 0 {
		return 0
	}
	smaller := min(areaB, areaO)
	return float64(b.IntersectionArea(other)) / float64(smaller)
}

// InflatedBy returns a copy of b grown by n pixels on every side.
func (b PixelBox) InflatedBy(n int) PixelBox {
	return PixelBox{X: b.X - n, Y: b.Y - n, W: b.W + 2*n, H: b.H + 2*n}
}

// Contains reports whether (x,y) lies within the box.
func (b PixelBox) Contains(x, y int) bool {
	return x >= b.X && x < b.Right() && y >= b.Y && y < b.Bottom()
}
