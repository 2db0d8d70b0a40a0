package model

// Span is a contiguous range of blocks sharing a pose correction, closed
// either at a flight-leg boundary or when the live significant-object count
// drops to zero (spec.md §3, §4.5).
type Span struct {
	ID int64

	MinStepID  int64
	MaxStepID  int64
	MinBlockID int64
	MaxBlockID int64

	BestFixAltM     float64
	BestFixYawDeg   float64
	BestFixPitchDeg float64
	BestHFOVDeg     float64

	BestSumLocnErrM   float64
	BestSumHeightErrM float64
	OrgSumLocnErrM    float64
	OrgSumHeightErrM  float64

	NumSignificantObjects int
}

// Improved reports whether BestSumLocnErrM beats OrgSumLocnErrM by at least
// minImprovementM, the span optimizer's acceptance gate (spec.md §4.4, §8).
func (s *Span) Improved(minImprovementM float64) bool {
	return s.OrgSumLocnErrM-s.BestSumLocnErrM >= minImprovementM
}
