package optimizer

import (
	"math"
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// TestSearchAttitudeRecoversConstantAltitudeBias reproduces spec.md §8
// boundary scenario 5: a constant +2m altitude bias should be recovered as
// best_fix_alt_m ~= -2 with summed location_err_m improving by at least
// min_improvement_m.
func TestSearchAttitudeRecoversConstantAltitudeBias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AltRangeM = 5
	cfg.YawRangeDeg = 2
	cfg.PitchRangeDeg = 2

	const trueBias = 2.0

	evaluate := func(correction model.Correction, _ float64) Residuals {
		// Residual model: error grows with the squared distance from
		// correcting out the true bias, scaled so a zero correction
		// starts well above the min-improvement threshold.
		residual := correction.FixAltM + trueBias
		return Residuals{SumLocationErrM: residual * residual, SumHeightErrM: 0}
	}

	result := SearchAttitude(cfg, 42, evaluate)

	if !result.Improved {
		t.Fatalf("expected the search to find an improving correction")
	}
	if math.Abs(result.Best.FixAltM-(-trueBias)) > 0.5 {
		t.Fatalf("expected best_fix_alt_m ~= %v, got %v", -trueBias, result.Best.FixAltM)
	}
	if result.OrgResid.SumLocationErrM-result.BestResid.SumLocationErrM < cfg.MinImprovementM {
		t.Fatalf("expected improvement >= %v, got %v", cfg.MinImprovementM, result.OrgResid.SumLocationErrM-result.BestResid.SumLocationErrM)
	}
}

func TestSearchAttitudeNoImprovementPossible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AltRangeM = 2
	cfg.YawRangeDeg = 2
	cfg.PitchRangeDeg = 2

	evaluate := func(_ model.Correction, _ float64) Residuals {
		return Residuals{SumLocationErrM: 1.0}
	}

	result := SearchAttitude(cfg, 42, evaluate)
	if result.Improved {
		t.Fatal("expected no improvement when every trial scores identically")
	}
	if result.Best != (model.Correction{}) {
		t.Fatalf("expected zero correction when nothing improves, got %+v", result.Best)
	}
}
