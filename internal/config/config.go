// Package config provides configuration management for thermaltrack.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/skycomb-go/thermaltrack/internal/geometry"
	"github.com/skycomb-go/thermaltrack/internal/optimizer"
	"github.com/skycomb-go/thermaltrack/internal/scanner"
	"github.com/skycomb-go/thermaltrack/internal/tracker"
)

// Config is thermaltrack's top-level configuration document.
type Config struct {
	Version  string         `yaml:"version"`
	System   SystemConfig   `yaml:"system"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Geometry GeometryConfig `yaml:"geometry"`
	Span     SpanConfig     `yaml:"span"`
	Detector DetectorConfig `yaml:"detector"`

	mu       sync.RWMutex    `yaml:"-"`
	path     string          `yaml:"-"`
	watchers []func(*Config) `yaml:"-"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Name        string         `yaml:"name"`
	Timezone    string         `yaml:"timezone"`
	DataPath    string         `yaml:"data_path"`
	Database    DatabaseConfig `yaml:"database"`
	Logging     LoggingConfig  `yaml:"logging"`
	APIPort     int            `yaml:"api_port"`
	NATSPort    int            `yaml:"nats_port"`
}

// DatabaseConfig holds SQLite connection tuning.
type DatabaseConfig struct {
	Path            string        `yaml:"path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScannerConfig holds the §4.1 frame scanner's feature-acceptance gates.
type ScannerConfig struct {
	FeatureMinPixels     int     `yaml:"feature_min_pixels"`
	FeatureMaxSize       int     `yaml:"feature_max_size"`
	FeatureMinDensityPct float64 `yaml:"feature_min_density_pct"`
	FeatureMinOverlapPct float64 `yaml:"feature_min_overlap_pct"`
}

// TrackerConfig holds the §4.2 temporal tracker's gates.
type TrackerConfig struct {
	ObjectMinDurationMS      int64 `yaml:"object_min_duration_ms"`
	ObjectMinPixelsPerBlock  int   `yaml:"object_min_pixels_per_block"`
	ObjectMinDensityPct      float64 `yaml:"object_min_density_pct"`
	ObjectMaxUnrealBlocks    int   `yaml:"object_max_unreal_blocks"`
	// FocusObjectID is an inert debug breakpoint id (spec.md §9 open
	// question 2); never consulted by significance logic.
	FocusObjectID int64 `yaml:"focus_object_id,omitempty"`
}

// GeometryConfig holds the camera intrinsics the §4.3 projection uses.
type GeometryConfig struct {
	HFOVDeg     float64 `yaml:"hfov_deg"`
	VFOVDeg     float64 `yaml:"vfov_deg"`
	ImageWidth  int     `yaml:"image_width"`
	ImageHeight int     `yaml:"image_height"`

	DSMStepM      float64 `yaml:"dsm_step_m"`
	DSMToleranceM float64 `yaml:"dsm_tolerance_m"`

	BaselineMinDurationMS    int64   `yaml:"baseline_min_duration_ms"`
	BaselineMinDeltaTan      float64 `yaml:"baseline_min_delta_tan"`
	AccuracyToleranceM       float64 `yaml:"accuracy_tolerance_m"`
	FootprintCm2PerPixelBase float64 `yaml:"footprint_cm2_per_pixel_base"`
}

// SpanConfig holds the §4.4 span optimizer's search ranges.
type SpanConfig struct {
	AltRangeM             float64   `yaml:"alt_range_m"`
	YawRangeDeg           float64   `yaml:"yaw_range_deg"`
	PitchRangeDeg         float64   `yaml:"pitch_range_deg"`
	MinImprovementM       float64   `yaml:"min_improvement_m"`
	CompareIntervalFrames int       `yaml:"compare_interval_frames"`
	HFOVCandidatesDeg     []float64 `yaml:"hfov_candidates_deg"`
	FineRangeM            float64   `yaml:"fine_range_m"`
	FineRangeDeg          float64   `yaml:"fine_range_deg"`
	FineStepM             float64   `yaml:"fine_step_m"`
	FineStepDeg           float64   `yaml:"fine_step_deg"`

	// PixelScaleDivisor resolves spec.md §9 open question 3; default 1.
	PixelScaleDivisor float64 `yaml:"pixel_scale_divisor"`
	TriangulationWorkers int  `yaml:"triangulation_workers"`
}

// DetectorKind selects the per-frame detection strategy (spec.md §9:
// a tagged variant selected at run start, not a runtime type test).
type DetectorKind string

const (
	DetectorComb      DetectorKind = "Comb"
	DetectorYolo      DetectorKind = "Yolo"
	DetectorThreshold DetectorKind = "Threshold"
)

// DetectorConfig selects the detector and its Yolo-specific extras.
type DetectorConfig struct {
	Kind       DetectorKind `yaml:"kind"`
	Confidence float64      `yaml:"confidence,omitempty"`
	IOU        float64      `yaml:"iou,omitempty"`
	ModelPath  string       `yaml:"model_path,omitempty"`
}

// Load loads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.path = path
	cfg.setDefaults()

	return &cfg, nil
}

// Save saves the configuration to its YAML file.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveUnlocked()
}

func (c *Config) saveUnlocked() error {
	cfgCopy := &Config{
		Version:  c.Version,
		System:   c.System,
		Scanner:  c.Scanner,
		Tracker:  c.Tracker,
		Geometry: c.Geometry,
		Span:     c.Span,
		Detector: c.Detector,
	}

	data, err := yaml.Marshal(cfgCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# thermaltrack configuration\n# Auto-generated - manual edits are preserved\n\n"
	data = append([]byte(header), data...)

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return os.Rename(tmpPath, c.path)
}

// Watch starts watching the configuration file for changes.
func (c *Config) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					time.Sleep(100 * time.Millisecond) // Debounce
					c.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watch error", "error", err)
			}
		}
	}()

	return watcher.Add(c.path)
}

// OnChange registers a callback invoked after every successful reload.
// A run in progress should only register callbacks for logging/span
// tuning changes: reloading Scanner/Tracker/Geometry mid-run would
// violate the monotonicity invariants the controller depends on.
func (c *Config) OnChange(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

func (c *Config) reload() {
	newCfg, err := Load(c.path)
	if err != nil {
		slog.Error("failed to reload config", "error", err)
		return
	}

	c.mu.Lock()
	c.Version = newCfg.Version
	c.System = newCfg.System
	c.Scanner = newCfg.Scanner
	c.Tracker = newCfg.Tracker
	c.Geometry = newCfg.Geometry
	c.Span = newCfg.Span
	c.Detector = newCfg.Detector
	watchers := c.watchers
	c.mu.Unlock()

	slog.Info("configuration reloaded")

	for _, fn := range watchers {
		fn(c)
	}
}

// Snapshot returns a copy of the current configuration values, safe to
// read outside the owning goroutine.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Version:  c.Version,
		System:   c.System,
		Scanner:  c.Scanner,
		Tracker:  c.Tracker,
		Geometry: c.Geometry,
		Span:     c.Span,
		Detector: c.Detector,
	}
}

// SetPath sets the path used by Save.
func (c *Config) SetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// GetPath returns the current config file path.
func (c *Config) GetPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

func (c *Config) setDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "UTC"
	}
	if c.System.DataPath == "" {
		c.System.DataPath = "/data"
	}
	if c.System.Database.Path == "" {
		c.System.Database.Path = "thermaltrack.db"
	}
	if c.System.Database.MaxOpenConns == 0 {
		c.System.Database.MaxOpenConns = 10
	}
	if c.System.Database.MaxIdleConns == 0 {
		c.System.Database.MaxIdleConns = 5
	}
	if c.System.Logging.Level == "" {
		c.System.Logging.Level = "info"
	}
	if c.System.APIPort == 0 {
		c.System.APIPort = 8080
	}
	if c.System.NATSPort == 0 {
		c.System.NATSPort = 4222
	}

	if c.Scanner.FeatureMinPixels == 0 {
		c.Scanner.FeatureMinPixels = 4
	}
	if c.Scanner.FeatureMaxSize == 0 {
		c.Scanner.FeatureMaxSize = 4096
	}
	if c.Scanner.FeatureMinDensityPct == 0 {
		c.Scanner.FeatureMinDensityPct = 0.15
	}
	if c.Scanner.FeatureMinOverlapPct == 0 {
		c.Scanner.FeatureMinOverlapPct = 0.10
	}

	if c.Tracker.ObjectMinDurationMS == 0 {
		c.Tracker.ObjectMinDurationMS = 500
	}
	if c.Tracker.ObjectMinPixelsPerBlock == 0 {
		c.Tracker.ObjectMinPixelsPerBlock = 4
	}
	if c.Tracker.ObjectMinDensityPct == 0 {
		c.Tracker.ObjectMinDensityPct = 0.15
	}
	if c.Tracker.ObjectMaxUnrealBlocks == 0 {
		c.Tracker.ObjectMaxUnrealBlocks = 2
	}

	if c.Geometry.DSMStepM == 0 {
		c.Geometry.DSMStepM = 1.0
	}
	if c.Geometry.DSMToleranceM == 0 {
		c.Geometry.DSMToleranceM = 0.20
	}
	if c.Geometry.BaselineMinDurationMS == 0 {
		c.Geometry.BaselineMinDurationMS = 500
	}
	if c.Geometry.BaselineMinDeltaTan == 0 {
		c.Geometry.BaselineMinDeltaTan = 0.1
	}
	if c.Geometry.AccuracyToleranceM == 0 {
		c.Geometry.AccuracyToleranceM = 2.0
	}
	if c.Geometry.FootprintCm2PerPixelBase == 0 {
		c.Geometry.FootprintCm2PerPixelBase = 1.0
	}

	if c.Span.MinImprovementM == 0 {
		c.Span.MinImprovementM = 0.10
	}
	if c.Span.CompareIntervalFrames == 0 {
		c.Span.CompareIntervalFrames = 10
	}
	if len(c.Span.HFOVCandidatesDeg) == 0 {
		c.Span.HFOVCandidatesDeg = []float64{36, 38, 40, 42, 44, 57}
	}
	if c.Span.PixelScaleDivisor == 0 {
		c.Span.PixelScaleDivisor = 1
	}
	if c.Span.TriangulationWorkers == 0 {
		c.Span.TriangulationWorkers = 4
	}

	if c.Detector.Kind == "" {
		c.Detector.Kind = DetectorComb
	}
}

// ScannerLayerConfig adapts the document's Scanner section into the
// scanner package's own Config shape.
func (c *Config) ScannerLayerConfig() scanner.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return scanner.Config{
		FeatureMinPixels:     c.Scanner.FeatureMinPixels,
		FeatureMaxSize:       c.Scanner.FeatureMaxSize,
		FeatureMinDensityPct: c.Scanner.FeatureMinDensityPct,
	}
}

// TrackerLayerConfig adapts the document's Tracker section into the
// tracker package's own Config shape.
func (c *Config) TrackerLayerConfig() tracker.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return tracker.Config{
		ObjectMinDurationMS:     c.Tracker.ObjectMinDurationMS,
		ObjectMinPixelsPerBlock: c.Tracker.ObjectMinPixelsPerBlock,
		ObjectMinDensityPct:     c.Tracker.ObjectMinDensityPct,
		ObjectMaxUnrealBlocks:   c.Tracker.ObjectMaxUnrealBlocks,
		FeatureMinOverlapPct:    c.Scanner.FeatureMinOverlapPct,
		FeatureMaxSize:          c.Scanner.FeatureMaxSize,
		FocusObjectID:           c.Tracker.FocusObjectID,
	}
}

// GeometryLayerConfig adapts the document's Geometry section into the
// geometry package's own Config shape.
func (c *Config) GeometryLayerConfig() geometry.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g := c.Geometry
	return geometry.Config{
		ImageWidthPx:      c.Geometry.ImageWidth,
		ImageHeightPx:     c.Geometry.ImageHeight,
		HFOVDeg:           g.HFOVDeg,
		VFOVDeg:           g.VFOVDeg,
		DSMStepM:          g.DSMStepM,
		DSMToleranceM:     g.DSMToleranceM,
		ForwardMinDeg:     10,
		ForwardMaxDeg:     80,
		BaselineMinM:      1.0,
		BaselineAccurateM: g.AccuracyToleranceM,
		MinDeltaTan:       g.BaselineMinDeltaTan,
		MinDistanceDownM:  5.0,
	}
}

// OptimizerLayerConfig adapts the document's Span section into the
// optimizer package's own Config shape.
func (c *Config) OptimizerLayerConfig() optimizer.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.Span
	return optimizer.Config{
		Mode:                   optimizer.ModeTriangulation,
		AltRangeM:              s.AltRangeM,
		YawRangeDeg:            s.YawRangeDeg,
		PitchRangeDeg:          s.PitchRangeDeg,
		HFOVCandidatesDeg:      s.HFOVCandidatesDeg,
		MinImprovementM:        s.MinImprovementM,
		CompareIntervalFrames:  s.CompareIntervalFrames,
		FineRangeM:             s.FineRangeM,
		FineRangeDeg:           s.FineRangeDeg,
		FineStepM:              s.FineStepM,
		FineStepDeg:            s.FineStepDeg,
		PixelScaleDivisor:      s.PixelScaleDivisor,
		TriangulationWorkers:   s.TriangulationWorkers,
		MinDepthBelowPlatformM: 5,
	}
}
