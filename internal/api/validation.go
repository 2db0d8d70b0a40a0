package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skycomb-go/thermaltrack/internal/config"
)

// ValidationError represents a validation error with field information
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ConfigValidator validates a loaded thermaltrack configuration document
// before it is handed to the run controller.
type ConfigValidator struct {
	errors ValidationErrors
}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{errors: make(ValidationErrors, 0)}
}

// Validate checks the scanner/tracker/geometry/span/detector sections
// for the constraints spec.md §6 implies.
func (v *ConfigValidator) Validate(cfg *config.Config) ValidationErrors {
	v.errors = make(ValidationErrors, 0)

	v.validateScanner(cfg.Scanner)
	v.validateTracker(cfg.Tracker)
	v.validateGeometry(cfg.Geometry)
	v.validateSpan(cfg.Span)
	v.validateDetector(cfg.Detector)

	return v.errors
}

func (v *ConfigValidator) validateScanner(cfg config.ScannerConfig) {
	if cfg.FeatureMinPixels < 1 {
		v.errors = append(v.errors, ValidationError{
			Field:   "scanner.feature_min_pixels",
			Message: "must be at least 1",
		})
	}
	if cfg.FeatureMaxSize < cfg.FeatureMinPixels {
		v.errors = append(v.errors, ValidationError{
			Field:   "scanner.feature_max_size",
			Message: "must be >= feature_min_pixels",
		})
	}
	if cfg.FeatureMinDensityPct < 0 || cfg.FeatureMinDensityPct > 1 {
		v.errors = append(v.errors, ValidationError{
			Field:   "scanner.feature_min_density_pct",
			Message: "must be between 0 and 1",
		})
	}
	if cfg.FeatureMinOverlapPct < 0 || cfg.FeatureMinOverlapPct > 1 {
		v.errors = append(v.errors, ValidationError{
			Field:   "scanner.feature_min_overlap_pct",
			Message: "must be between 0 and 1",
		})
	}
}

func (v *ConfigValidator) validateTracker(cfg config.TrackerConfig) {
	if cfg.ObjectMinDurationMS < 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   "tracker.object_min_duration_ms",
			Message: "must not be negative",
		})
	}
	if cfg.ObjectMaxUnrealBlocks < 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   "tracker.object_max_unreal_blocks",
			Message: "must not be negative",
		})
	}
	if cfg.ObjectMinDensityPct < 0 || cfg.ObjectMinDensityPct > 1 {
		v.errors = append(v.errors, ValidationError{
			Field:   "tracker.object_min_density_pct",
			Message: "must be between 0 and 1",
		})
	}
}

func (v *ConfigValidator) validateGeometry(cfg config.GeometryConfig) {
	if cfg.ImageWidth <= 0 || cfg.ImageHeight <= 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   "geometry.image_width/image_height",
			Message: "must both be positive",
		})
	}
	if cfg.HFOVDeg <= 0 || cfg.HFOVDeg >= 180 {
		v.errors = append(v.errors, ValidationError{
			Field:   "geometry.hfov_deg",
			Message: "must be between 0 and 180 exclusive",
		})
	}
	if cfg.VFOVDeg <= 0 || cfg.VFOVDeg >= 180 {
		v.errors = append(v.errors, ValidationError{
			Field:   "geometry.vfov_deg",
			Message: "must be between 0 and 180 exclusive",
		})
	}
	if cfg.DSMStepM <= 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   "geometry.dsm_step_m",
			Message: "must be positive",
		})
	}
}

func (v *ConfigValidator) validateSpan(cfg config.SpanConfig) {
	if cfg.MinImprovementM < 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   "span.min_improvement_m",
			Message: "must not be negative",
		})
	}
	if cfg.CompareIntervalFrames < 1 {
		v.errors = append(v.errors, ValidationError{
			Field:   "span.compare_interval_frames",
			Message: "must be at least 1",
		})
	}
	if cfg.PixelScaleDivisor <= 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   "span.pixel_scale_divisor",
			Message: "must be positive",
		})
	}
}

func (v *ConfigValidator) validateDetector(cfg config.DetectorConfig) {
	switch cfg.Kind {
	case config.DetectorComb, config.DetectorYolo, config.DetectorThreshold:
	default:
		v.errors = append(v.errors, ValidationError{
			Field:   "detector.kind",
			Message: fmt.Sprintf("unknown detector kind %q, expected Comb, Yolo, or Threshold", cfg.Kind),
		})
	}
	if cfg.Kind == config.DetectorYolo {
		if cfg.ModelPath == "" {
			v.errors = append(v.errors, ValidationError{
				Field:   "detector.model_path",
				Message: "required when detector.kind is Yolo",
			})
		}
		if cfg.Confidence <= 0 || cfg.Confidence > 1 {
			v.errors = append(v.errors, ValidationError{
				Field:   "detector.confidence",
				Message: "must be between 0 (exclusive) and 1",
			})
		}
	}
}

// ParseIDParam parses a path parameter as an int64 entity id.
func ParseIDParam(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return id, nil
}
