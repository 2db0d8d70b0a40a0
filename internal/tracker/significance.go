package tracker

import "github.com/skycomb-go/thermaltrack/internal/model"

// EvaluateSignificance applies the four-criteria composite gate (spec.md
// §4.2) to o for the block just processed. It must run after geometry has
// refreshed o.HeightM for that block, since the Composite criterion
// depends on elevation. It returns true the first time o passes, at which
// point every feature o has ever owned is back-marked significant (spec.md
// §8 invariant "every one of O's features carries significant = true").
//
// frameMS is the run's fixed inter-frame interval, used by the Time
// criterion.
func (t *Tracker) EvaluateSignificance(o *model.Object, frameMS int64) bool {
	if o.Significant {
		return false
	}

	count := o.MaxRealHotPixels > t.cfg.ObjectMinPixelsPerBlock
	density := o.MaxRealDensity > t.cfg.ObjectMinDensityPct
	duration := float64(o.NumReal)*float64(frameMS) >= float64(t.cfg.ObjectMinDurationMS)

	composite := o.HeightM > 4 ||
		float64(o.MaxRealHotPixels) > 4*float64(t.cfg.ObjectMinPixelsPerBlock) ||
		o.MaxRealDensity > 2*t.cfg.ObjectMinDensityPct ||
		(float64(o.MaxRealHotPixels) > 2*float64(t.cfg.ObjectMinPixelsPerBlock) && o.MaxRealDensity > 1.5*t.cfg.ObjectMinDensityPct)

	if !(count && density && duration && composite) {
		return false
	}

	o.Significant = true
	o.State = model.StateSignificant
	o.NumSigBlocks++

	for _, id := range o.FeatureIDs {
		if f, ok := t.catalog.Features.Get(id); ok {
			f.Significant = true
		}
	}
	return true
}
