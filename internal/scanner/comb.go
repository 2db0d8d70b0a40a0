package scanner

import (
	"image"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// ScanComb groups hot pixels in threshold into Real features, using original
// to sample heat, per spec.md §4.1. nextFeatureID is the id to assign to
// the first feature produced; the returned value is the next free id after
// all features in this block.
func ScanComb(original, threshold image.Image, blockID, nextFeatureID int64, cfg Config) ([]*model.Feature, int64, error) {
	if !sameDimensions(original, threshold) {
		return nil, nextFeatureID, model.NewError(model.ErrInvalidFrame, "original/threshold dimension mismatch").WithBlock(blockID)
	}

	bounds := threshold.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	ox, oy := bounds.Min.X, bounds.Min.Y

	visited := make([][]bool, h)
	for i := range visited {
		visited[i] = make([]bool, w)
	}

	var features []*model.Feature
	id := nextFeatureID

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y][x] {
				continue
			}
			visited[y][x] = true
			if !isHot(threshold, x+ox, y+oy) {
				continue
			}

			f := floodFeature(original, threshold, visited, x, y, ox, oy, w, h, cfg)
			f.ID = id
			f.BlockID = blockID
			id++
			evaluateSignificance(f, cfg)
			features = append(features, f)
		}
	}

	return features, id, nil
}

// floodFeature runs the expanding/shrinking row-window flood described in
// spec.md §4.1, starting at image-local (startX, startY). ox/oy are the
// image bounds' origin offset, so thresh/original pixel lookups use
// absolute coordinates while visited/window bookkeeping stays
// zero-based.
func floodFeature(original, threshold image.Image, visited [][]bool, startX, startY, ox, oy, w, h int, cfg Config) *model.Feature {
	f := &model.Feature{Type: model.FeatureReal}

	from, to := 0, 3
	minC, maxC := startX, startX
	bottom := startY - 1

	hot := func(y, c int) bool { return isHot(threshold, c+ox, y+oy) }

	for y := startY; y < h; y++ {
		// Expand-left: grow the window while the current left edge is hot.
		for startX+from > 0 && hot(y, startX+from) {
			from--
		}

		left := startX + from
		right := startX + to
		if right > w {
			right = w
		}
		right--

		rowHotCount := 0
		for c := left; c <= right; c++ {
			visited[y][c] = true

			if isHot(threshold, c+ox, y+oy) {
				rowHotCount++
				heat := heatAt(original, c+ox, y+oy)
				if len(f.Pixels) == 0 {
					f.HeatMin, f.HeatMax = heat, heat
				} else {
					if heat < f.HeatMin {
						f.HeatMin = heat
					}
					if heat > f.HeatMax {
						f.HeatMax = heat
					}
				}
				f.Pixels = append(f.Pixels, model.PixelHeat{Y: y + oy, X: c + ox, Heat: heat})
				f.HotCount++
				if c < minC {
					minC = c
				}
				if c > maxC {
					maxC = c
				}
			}

			if c == left && !isHot(threshold, c+ox, y+oy) {
				from++
			}
			if c == right {
				if isHot(threshold, c+ox, y+oy) {
					to++
					if startX+to <= w {
						right++
					}
				} else {
					to--
				}
			}
		}

		if rowHotCount == 0 {
			break
		}
		bottom = y

		f.Box = model.PixelBox{X: minC + ox, Y: startY + oy, W: maxC - minC + 1, H: bottom - startY + 1}
		if f.Box.W > cfg.FeatureMaxSize || f.Box.H > cfg.FeatureMaxSize {
			break
		}
		if f.Density() < cfg.FeatureMinDensityPct {
			break
		}
	}

	if f.Box.W == 0 {
		// Seed pixel was isolated with no further hot pixels below it even
		// on the seed row's own scan; box still needs to cover the seed.
		f.Box = model.PixelBox{X: startX + ox, Y: startY + oy, W: 1, H: 1}
	}

	return f
}

// evaluateSignificance sets Significant/Attributes per spec.md §4.1.
func evaluateSignificance(f *model.Feature, cfg Config) {
	failed := ""
	if f.HotCount < cfg.FeatureMinPixels {
		failed += "p"
	}
	if f.Density() < cfg.FeatureMinDensityPct {
		failed += "d"
	}
	if failed == "" {
		f.Significant = true
		f.Attributes = "Yes"
	} else {
		f.Significant = false
		f.Attributes = "No: " + failed
	}
}
