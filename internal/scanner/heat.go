package scanner

import "image"

// isHot reports whether the thresholded frame has a non-zero sample at
// (x,y). Out-of-bounds coordinates are never hot.
func isHot(thresh image.Image, x, y int) bool {
	b := thresh.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return false
	}
	r, g, bl, _ := thresh.At(x, y).RGBA()
	return r != 0 || g != 0 || bl != 0
}

// heatAt returns the mean of the BGR (equivalently RGB: mean is
// order-independent) channels of the original color frame at (x,y),
// scaled to the 0-255 range spec.md §4.1 specifies.
func heatAt(original image.Image, x, y int) float64 {
	r, g, b, _ := original.At(x, y).RGBA()
	// image.Color.RGBA() returns 16-bit-scaled channels; rescale to 8-bit
	// before averaging so heat values stay in a familiar 0-255 range.
	r8 := float64(r) / 257
	g8 := float64(g) / 257
	b8 := float64(b) / 257
	return (r8 + g8 + b8) / 3
}

// sameDimensions reports whether two images share identical bounds.
func sameDimensions(a, b image.Image) bool {
	return a.Bounds().Dx() == b.Bounds().Dx() && a.Bounds().Dy() == b.Bounds().Dy()
}
