package api

import (
	"testing"

	"github.com/skycomb-go/thermaltrack/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Scanner: config.ScannerConfig{
			FeatureMinPixels:     4,
			FeatureMaxSize:       4096,
			FeatureMinDensityPct: 0.15,
			FeatureMinOverlapPct: 0.10,
		},
		Tracker: config.TrackerConfig{
			ObjectMinDurationMS:     500,
			ObjectMinPixelsPerBlock: 4,
			ObjectMinDensityPct:     0.15,
			ObjectMaxUnrealBlocks:   2,
		},
		Geometry: config.GeometryConfig{
			HFOVDeg:     42,
			VFOVDeg:     34,
			ImageWidth:  640,
			ImageHeight: 512,
			DSMStepM:    1.0,
		},
		Span: config.SpanConfig{
			MinImprovementM:       0.10,
			CompareIntervalFrames: 10,
			PixelScaleDivisor:     1,
		},
		Detector: config.DetectorConfig{Kind: config.DetectorComb},
	}
}

func TestConfigValidator_ValidConfig(t *testing.T) {
	validator := NewConfigValidator()
	errors := validator.Validate(validConfig())
	if errors.HasErrors() {
		t.Errorf("valid config should not have errors, got: %v", errors)
	}
}

func TestConfigValidator_ScannerBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Scanner.FeatureMinPixels = 0
	cfg.Scanner.FeatureMaxSize = -1

	errors := NewConfigValidator().Validate(cfg)
	if !hasField(errors, "scanner.feature_min_pixels") {
		t.Error("expected error for feature_min_pixels")
	}
	if !hasField(errors, "scanner.feature_max_size") {
		t.Error("expected error for feature_max_size")
	}
}

func TestConfigValidator_TrackerBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Tracker.ObjectMinDurationMS = -1
	cfg.Tracker.ObjectMaxUnrealBlocks = -1

	errors := NewConfigValidator().Validate(cfg)
	if !hasField(errors, "tracker.object_min_duration_ms") {
		t.Error("expected error for object_min_duration_ms")
	}
	if !hasField(errors, "tracker.object_max_unreal_blocks") {
		t.Error("expected error for object_max_unreal_blocks")
	}
}

func TestConfigValidator_GeometryBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Geometry.ImageWidth = 0
	cfg.Geometry.HFOVDeg = 200

	errors := NewConfigValidator().Validate(cfg)
	if !hasField(errors, "geometry.image_width/image_height") {
		t.Error("expected error for image dimensions")
	}
	if !hasField(errors, "geometry.hfov_deg") {
		t.Error("expected error for hfov_deg")
	}
}

func TestConfigValidator_SpanBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Span.MinImprovementM = -0.5
	cfg.Span.CompareIntervalFrames = 0

	errors := NewConfigValidator().Validate(cfg)
	if !hasField(errors, "span.min_improvement_m") {
		t.Error("expected error for min_improvement_m")
	}
	if !hasField(errors, "span.compare_interval_frames") {
		t.Error("expected error for compare_interval_frames")
	}
}

func TestConfigValidator_DetectorKind(t *testing.T) {
	cfg := validConfig()
	cfg.Detector.Kind = "Unknown"

	errors := NewConfigValidator().Validate(cfg)
	if !hasField(errors, "detector.kind") {
		t.Error("expected error for unknown detector kind")
	}
}

func TestConfigValidator_YoloRequiresModelPath(t *testing.T) {
	cfg := validConfig()
	cfg.Detector = config.DetectorConfig{Kind: config.DetectorYolo, Confidence: 0.5}

	errors := NewConfigValidator().Validate(cfg)
	if !hasField(errors, "detector.model_path") {
		t.Error("expected error for missing model_path on Yolo detector")
	}
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		raw       string
		shouldErr bool
	}{
		{"1", false},
		{"42", false},
		{"0", true},
		{"-1", true},
		{"abc", true},
		{"", true},
	}

	for _, tc := range tests {
		_, err := ParseIDParam(tc.raw)
		if tc.shouldErr && err == nil {
			t.Errorf("ParseIDParam(%q) should have errored", tc.raw)
		}
		if !tc.shouldErr && err != nil {
			t.Errorf("ParseIDParam(%q) should not have errored, got: %v", tc.raw, err)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	errors := ValidationErrors{
		{Field: "a", Message: "is required"},
		{Field: "b", Message: "is invalid"},
	}

	if !errors.HasErrors() {
		t.Error("HasErrors should return true when there are errors")
	}
	if errors.Error() == "" {
		t.Error("Error() should return non-empty string")
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "test", Message: "is required"}
	if err.Error() != "test: is required" {
		t.Errorf("expected 'test: is required', got %q", err.Error())
	}
}

func TestEmptyValidationErrors(t *testing.T) {
	errors := ValidationErrors{}
	if errors.HasErrors() {
		t.Error("empty errors should not have errors")
	}
	if errors.Error() != "" {
		t.Error("empty errors should have empty string")
	}
}

func hasField(errors ValidationErrors, field string) bool {
	for _, err := range errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
