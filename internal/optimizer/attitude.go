package optimizer

import (
	"github.com/skycomb-go/thermaltrack/internal/model"
)

// Residuals is what a correction trial is scored by: the span optimizer
// accepts a trial only when SumLocationErrM improves over the recorded
// best (spec.md §4.4 step 4, §8).
type Residuals struct {
	SumLocationErrM float64
	SumHeightErrM   float64
}

// Evaluate recomputes every object's geometry in the span scope under a
// trial correction and returns the summed residuals. The caller (the run
// controller, which owns the catalog) supplies this; the optimizer itself
// never touches blocks/features/objects directly, keeping the grid search
// pure pose-offset bookkeeping (spec.md §9's separation of tracker/
// geometry concerns).
type Evaluate func(correction model.Correction, hfovDeg float64) Residuals

// AttitudeSearchResult is the winning trial from the coordinate-descent
// grid search (spec.md §4.4 "attitude-search mode").
type AttitudeSearchResult struct {
	Best       model.Correction
	BestHFOV   float64
	BestResid  Residuals
	OrgResid   Residuals
	Improved   bool
}

// SearchAttitude runs spec.md §4.4's attitude-search protocol: independent
// per-dimension grid search at 1-unit steps, then a joint fine-tune box
// around the best single-dimension values, accepting a trial only when it
// improves summed location error by at least cfg.MinImprovementM over the
// running best.
func SearchAttitude(cfg Config, baseHFOVDeg float64, evaluate Evaluate) AttitudeSearchResult {
	org := evaluate(model.Correction{}, baseHFOVDeg)

	best := model.Correction{}
	bestHFOV := baseHFOVDeg
	bestResid := org

	accept := func(trial model.Correction, hfov float64) {
		r := evaluate(trial, hfov)
		improvesOnOrg := org.SumLocationErrM-r.SumLocationErrM >= cfg.MinImprovementM
		improvesOnBest := bestResid.SumLocationErrM-r.SumLocationErrM >= cfg.MinImprovementM
		if improvesOnOrg && improvesOnBest {
			best, bestHFOV, bestResid = trial, hfov, r
		}
	}

	// Step 2: independent per-dimension grid search, 1-unit steps.
	for alt := -cfg.AltRangeM; alt <= cfg.AltRangeM; alt++ {
		accept(model.Correction{FixAltM: alt}, bestHFOV)
	}
	for yaw := -cfg.YawRangeDeg; yaw <= cfg.YawRangeDeg; yaw++ {
		accept(model.Correction{FixAltM: best.FixAltM, FixYawDeg: yaw}, bestHFOV)
	}
	for pitch := -cfg.PitchRangeDeg; pitch <= cfg.PitchRangeDeg; pitch++ {
		accept(model.Correction{FixAltM: best.FixAltM, FixYawDeg: best.FixYawDeg, FixPitchDeg: pitch}, bestHFOV)
	}
	for _, hfov := range cfg.HFOVCandidatesDeg {
		accept(best, hfov)
	}

	// Step 3: joint fine-tune box around the best single-dimension values.
	for dAlt := -cfg.FineRangeM; dAlt <= cfg.FineRangeM; dAlt += cfg.FineStepM {
		for dYaw := -cfg.FineRangeDeg; dYaw <= cfg.FineRangeDeg; dYaw += cfg.FineStepDeg {
			for dPitch := -cfg.FineRangeDeg; dPitch <= cfg.FineRangeDeg; dPitch += cfg.FineStepDeg {
				trial := model.Correction{
					FixAltM:     best.FixAltM + dAlt,
					FixYawDeg:   best.FixYawDeg + dYaw,
					FixPitchDeg: best.FixPitchDeg + dPitch,
				}
				accept(trial, bestHFOV)
			}
		}
	}

	return AttitudeSearchResult{
		Best:      best,
		BestHFOV:  bestHFOV,
		BestResid: bestResid,
		OrgResid:  org,
		Improved:  org.SumLocationErrM-bestResid.SumLocationErrM >= cfg.MinImprovementM,
	}
}
