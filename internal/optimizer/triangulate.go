package optimizer

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// Ray is one Real feature's contribution to an object's ray-bundle: the
// platform position it was observed from and the unit line-of-sight
// vector from pixel to world (spec.md §4.4 "triangulation mode").
type Ray struct {
	FeatureID  int64
	PlatformM  model.WorldPoint
	Direction  model.WorldPoint // unit vector, reused as a N/E/U triple
	// MaxLambdaM bounds the ray parameter from above (the run controller
	// passes four times the platform altitude); MinLambdaM bounds it from
	// below (cfg.MinDepthBelowPlatformM).
	MinLambdaM float64
	MaxLambdaM float64
}

// TriangulationResult is the outcome of solving one object's ray bundle.
type TriangulationResult struct {
	Location model.WorldPoint
	Converged bool
	ErrKind  model.ErrKind
}

// Triangulate solves the over-determined ray-bundle system for a single
// object: each ray contributes three residual rows asserting
// platform + λ·direction == objectPosition, bounded-variable nonlinear
// least squares over the object's 3 coordinates and one λ per ray (spec.md
// §4.4 "triangulation mode, finer"). initial is the flat-ground or
// last-known location, used as the starting point.
func Triangulate(rays []Ray, initial model.WorldPoint) TriangulationResult {
	if len(rays) < 2 {
		return TriangulationResult{ErrKind: model.ErrOptimizerNonConvergence}
	}

	// Parameter vector: [N, E, U, λ_0, λ_1, ..., λ_{n-1}].
	n := len(rays)
	x0 := make([]float64, 3+n)
	x0[0], x0[1], x0[2] = initial.NorthingM, initial.EastingM, initial.AltitudeM
	for i, r := range rays {
		// A reasonable starting depth: distance from platform to initial
		// guess, projected onto the ray direction.
		dn := initial.NorthingM - r.PlatformM.NorthingM
		de := initial.EastingM - r.PlatformM.EastingM
		du := initial.AltitudeM - r.PlatformM.AltitudeM
		lambda := dn*r.Direction.NorthingM + de*r.Direction.EastingM + du*r.Direction.AltitudeM
		x0[3+i] = clamp(lambda, r.MinLambdaM, r.MaxLambdaM)
	}

	const penaltyWeight = 1e4

	objective := func(x []float64) float64 {
		objN, objE, objU := x[0], x[1], x[2]
		var sumSq float64
		for i, r := range rays {
			lambda := x[3+i]
			pn := r.PlatformM.NorthingM + lambda*r.Direction.NorthingM
			pe := r.PlatformM.EastingM + lambda*r.Direction.EastingM
			pu := r.PlatformM.AltitudeM + lambda*r.Direction.AltitudeM
			dn, de, du := pn-objN, pe-objE, pu-objU
			sumSq += dn*dn + de*de + du*du

			if lambda < r.MinLambdaM {
				d := r.MinLambdaM - lambda
				sumSq += penaltyWeight * d * d
			}
			if lambda > r.MaxLambdaM {
				d := lambda - r.MaxLambdaM
				sumSq += penaltyWeight * d * d
			}
		}
		return sumSq
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{}
	method := &optimize.NelderMead{}

	result, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil || result == nil {
		return TriangulationResult{ErrKind: model.ErrOptimizerNonConvergence}
	}

	converged := result.Status == optimize.FunctionConvergence ||
		result.Status == optimize.Success ||
		result.Status == optimize.StepConvergence
	if !converged {
		return TriangulationResult{ErrKind: model.ErrOptimizerNonConvergence}
	}

	return TriangulationResult{
		Location: model.WorldPoint{
			NorthingM: result.X[0],
			EastingM:  result.X[1],
			AltitudeM: result.X[2],
		},
		Converged: true,
	}
}

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Max(lo, math.Min(hi, v))
}
