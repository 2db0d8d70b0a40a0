package scanner

import (
	"image"

	"github.com/skycomb-go/thermaltrack/internal/model"
	"github.com/skycomb-go/thermaltrack/internal/ports"
)

// ScanYolo computes heat aggregates inside each externally supplied box,
// optionally shrinking the box to the tight axis-aligned hull of its hot
// pixels, per spec.md §4.1 "Yolo mode replaces the scanner with an external
// detector".
func ScanYolo(original, threshold image.Image, boxes []ports.DetectedBox, blockID, nextFeatureID int64, cfg Config, shrinkToHull bool) ([]*model.Feature, int64, error) {
	if !sameDimensions(original, threshold) {
		return nil, nextFeatureID, model.NewError(model.ErrInvalidFrame, "original/threshold dimension mismatch").WithBlock(blockID)
	}

	id := nextFeatureID
	features := make([]*model.Feature, 0, len(boxes))

	for _, db := range boxes {
		box := model.PixelBox{X: int(db.X), Y: int(db.Y), W: int(db.W), H: int(db.H)}
		f := aggregateBox(original, threshold, box, shrinkToHull)
		f.ID = id
		f.BlockID = blockID
		f.Type = model.FeatureReal
		f.Label = db.Label
		f.Confidence = db.Confidence
		id++
		evaluateSignificance(f, cfg)
		features = append(features, f)
	}

	return features, id, nil
}

// aggregateBox scans the hot pixels within box, recording heat stats and
// (optionally) shrinking box to their tight hull.
func aggregateBox(original, threshold image.Image, box model.PixelBox, shrinkToHull bool) *model.Feature {
	f := &model.Feature{Box: box}

	minC, minY := box.Right(), box.Bottom()
	maxC, maxY := box.X, box.Y
	any := false

	for y := box.Y; y < box.Bottom(); y++ {
		for x := box.X; x < box.Right(); x++ {
			if !isHot(threshold, x, y) {
				continue
			}
			heat := heatAt(original, x, y)
			if !any {
				f.HeatMin, f.HeatMax = heat, heat
			} else {
				if heat < f.HeatMin {
					f.HeatMin = heat
				}
				if heat > f.HeatMax {
					f.HeatMax = heat
				}
			}
			any = true
			f.HotCount++
			f.Pixels = append(f.Pixels, model.PixelHeat{Y: y, X: x, Heat: heat})
			if x < minC {
				minC = x
			}
			if x > maxC {
				maxC = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if shrinkToHull && any {
		f.Box = model.PixelBox{X: minC, Y: minY, W: maxC - minC + 1, H: maxY - minY + 1}
	}

	return f
}
