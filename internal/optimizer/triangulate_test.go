package optimizer

import (
	"math"
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

func TestTriangulateConvergesOnKnownPoint(t *testing.T) {
	truth := model.WorldPoint{NorthingM: 100, EastingM: 200, AltitudeM: 10}

	rays := []Ray{
		rayTo(truth, model.WorldPoint{NorthingM: 0, EastingM: 200, AltitudeM: 150}),
		rayTo(truth, model.WorldPoint{NorthingM: 100, EastingM: 0, AltitudeM: 150}),
		rayTo(truth, model.WorldPoint{NorthingM: 150, EastingM: 250, AltitudeM: 150}),
	}

	initial := model.WorldPoint{NorthingM: 95, EastingM: 195, AltitudeM: 15}
	result := Triangulate(rays, initial)

	if !result.Converged {
		t.Fatalf("expected convergence, got error kind %v", result.ErrKind)
	}
	if d := result.Location.Distance3D(truth); d > 2.0 {
		t.Fatalf("expected location within 2m of truth, got %v away: %+v", d, result.Location)
	}
}

func TestTriangulateTooFewRays(t *testing.T) {
	result := Triangulate([]Ray{{}}, model.WorldPoint{})
	if result.Converged {
		t.Fatal("expected a single ray to be insufficient for triangulation")
	}
	if result.ErrKind != model.ErrOptimizerNonConvergence {
		t.Fatalf("expected ErrOptimizerNonConvergence, got %v", result.ErrKind)
	}
}

// rayTo builds a Ray from platform to target, with generous lambda bounds.
func rayTo(target, platform model.WorldPoint) Ray {
	dn := target.NorthingM - platform.NorthingM
	de := target.EastingM - platform.EastingM
	du := target.AltitudeM - platform.AltitudeM
	length := math.Sqrt(dn*dn + de*de + du*du)
	return Ray{
		PlatformM:  platform,
		Direction:  model.WorldPoint{NorthingM: dn / length, EastingM: de / length, AltitudeM: du / length},
		MinLambdaM: 5,
		MaxLambdaM: length * 2,
	}
}
