// Package ingest provides file-backed implementations of internal/ports'
// collaborator interfaces: a JSON flight log, a JSON elevation grid, and a
// directory of paired frame images. None of this is a detector or video
// decoder; real deployments plug those in behind the same interfaces.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/skycomb-go/thermaltrack/internal/ports"
)

// FlightLog is a JSON-file-backed PoseSource: a sorted array of steps plus
// the legs they fall into. The on-disk shape mirrors ports.StepPose/Leg
// directly, so a log is just "what a flight controller already recorded".
type FlightLog struct {
	steps []ports.StepPose
	legs  []ports.Leg
}

// stepDoc/legDoc mirror ports.StepPose/Leg with JSON tags; ports itself
// stays free of encoding concerns since it's the interface boundary, not
// a wire format.
type stepDoc struct {
	StepID      int64   `json:"step_id"`
	TimestampMS int64   `json:"timestamp_ms"`
	NorthingM   float64 `json:"northing_m"`
	EastingM    float64 `json:"easting_m"`
	AltitudeM   float64 `json:"altitude_m"`
	YawDeg      float64 `json:"yaw_deg"`
	PitchDeg    float64 `json:"pitch_deg"`
	RollDeg     float64 `json:"roll_deg"`
	DemM        float64 `json:"dem_m"`
	LegID       int64   `json:"leg_id"`
}

type legDoc struct {
	ID          int64 `json:"id"`
	FirstStepID int64 `json:"first_step_id"`
	LastStepID  int64 `json:"last_step_id"`
}

type flightLogDoc struct {
	Steps []stepDoc `json:"steps"`
	Legs  []legDoc  `json:"legs"`
}

// LoadFlightLog reads and validates a flight log from path.
func LoadFlightLog(path string) (*FlightLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read flight log: %w", err)
	}
	var doc flightLogDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ingest: parse flight log: %w", err)
	}
	if len(doc.Steps) == 0 {
		return nil, fmt.Errorf("ingest: flight log %s has no steps", path)
	}

	steps := make([]ports.StepPose, len(doc.Steps))
	for i, s := range doc.Steps {
		steps[i] = ports.StepPose{
			StepID:      s.StepID,
			TimestampMS: s.TimestampMS,
			NorthingM:   s.NorthingM,
			EastingM:    s.EastingM,
			AltitudeM:   s.AltitudeM,
			YawDeg:      s.YawDeg,
			PitchDeg:    s.PitchDeg,
			RollDeg:     s.RollDeg,
			DemM:        s.DemM,
			LegID:       s.LegID,
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].TimestampMS < steps[j].TimestampMS })

	legs := make([]ports.Leg, len(doc.Legs))
	for i, l := range doc.Legs {
		legs[i] = ports.Leg{ID: l.ID, FirstStepID: l.FirstStepID, LastStepID: l.LastStepID}
	}

	return &FlightLog{steps: steps, legs: legs}, nil
}

// Interpolate finds the bracketing pair of steps around timeMS and the
// weight on the earlier one, clamping to the first/last step outside the
// recorded range.
func (f *FlightLog) Interpolate(timeMS int64) (ports.StepPose, ports.StepPose, float64, error) {
	if timeMS <= f.steps[0].TimestampMS {
		return f.steps[0], f.steps[0], 1, nil
	}
	last := f.steps[len(f.steps)-1]
	if timeMS >= last.TimestampMS {
		return last, last, 1, nil
	}
	for i := 1; i < len(f.steps); i++ {
		if f.steps[i].TimestampMS >= timeMS {
			before, after := f.steps[i-1], f.steps[i]
			span := float64(after.TimestampMS - before.TimestampMS)
			if span == 0 {
				return before, after, 1, nil
			}
			weight := float64(after.TimestampMS-timeMS) / span
			return before, after, weight, nil
		}
	}
	return last, last, 1, nil
}

// Legs returns every leg in capture order.
func (f *FlightLog) Legs() []ports.Leg { return f.legs }
