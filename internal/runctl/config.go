// Package runctl implements spec.md §4.5: the run controller that drives
// the frame loop, stitches detector/scanner/tracker/geometry together per
// block, detects flight-leg boundaries, closes optimization spans, names
// newly-significant objects, and dispatches run-hook events.
package runctl

import (
	"github.com/skycomb-go/thermaltrack/internal/config"
	"github.com/skycomb-go/thermaltrack/internal/geometry"
	"github.com/skycomb-go/thermaltrack/internal/optimizer"
	"github.com/skycomb-go/thermaltrack/internal/scanner"
	"github.com/skycomb-go/thermaltrack/internal/tracker"
)

// RunConfig bounds a single run's frame window and fixes its inter-frame
// interval (spec.md §4.5, §6).
type RunConfig struct {
	// FrameMS is the fixed interval between frames; the tracker's Time
	// criterion and the flight-leg boundary policy both key off it.
	FrameMS int64
	// FromS/ToS bound the requested window, in seconds from the start of
	// the input. ToS <= 0 means "to the end of the input".
	FromS float64
	ToS   float64
}

// frameWindow resolves the configured [FromS, ToS] window into a
// half-open [fromIdx, toIdx) frame-index range, clamped to len.
func (rc RunConfig) frameWindow(frameCount int) (fromIdx, toIdx int) {
	if rc.FrameMS <= 0 {
		return 0, frameCount
	}
	fromIdx = int(rc.FromS * 1000 / float64(rc.FrameMS))
	if fromIdx < 0 {
		fromIdx = 0
	}
	if rc.ToS <= 0 {
		toIdx = frameCount
	} else {
		toIdx = int(rc.ToS*1000/float64(rc.FrameMS)) + 1
	}
	if toIdx > frameCount {
		toIdx = frameCount
	}
	return fromIdx, toIdx
}

// LayerConfigs bundles the per-layer configs the controller wires into
// scanner/tracker/geometry/optimizer, adapted from the top-level document.
type LayerConfigs struct {
	Scanner   scanner.Config
	Tracker   tracker.Config
	Geometry  geometry.Config
	Optimizer optimizer.Config
	Detector  config.DetectorConfig
}

// LayerConfigsFrom adapts a loaded configuration document into the layer
// configs the controller needs.
func LayerConfigsFrom(cfg *config.Config) LayerConfigs {
	return LayerConfigs{
		Scanner:   cfg.ScannerLayerConfig(),
		Tracker:   cfg.TrackerLayerConfig(),
		Geometry:  cfg.GeometryLayerConfig(),
		Optimizer: cfg.OptimizerLayerConfig(),
		Detector:  cfg.Detector,
	}
}
