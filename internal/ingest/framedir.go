package ingest

import (
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skycomb-go/thermaltrack/internal/ports"
)

// FrameDir is a directory-backed FrameSource: every frame is a pair of PNGs
// sharing a numeric basename, "000123_orig.png" and "000123_thresh.png",
// decoded on demand rather than held in memory.
type FrameDir struct {
	dir                        string
	bases                      []string
	frameMS                    int64
	cameraToVerticalForwardDeg float64
}

const (
	origSuffix   = "_orig.png"
	threshSuffix = "_thresh.png"
)

// OpenFrameDir scans dir for orig/thresh pairs and sorts them by basename.
// frameMS is the fixed inter-frame interval (RunConfig.FrameMS); gimbalDeg
// is the fixed camera_to_vertical_forward_deg applied to every frame.
func OpenFrameDir(dir string, frameMS int64, gimbalDeg float64) (*FrameDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read frame dir: %w", err)
	}

	seen := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, origSuffix) {
			base := strings.TrimSuffix(name, origSuffix)
			if _, err := os.Stat(filepath.Join(dir, base+threshSuffix)); err == nil {
				seen[base] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("ingest: no orig/thresh pairs found under %s", dir)
	}

	bases := make([]string, 0, len(seen))
	for base := range seen {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	return &FrameDir{dir: dir, bases: bases, frameMS: frameMS, cameraToVerticalForwardDeg: gimbalDeg}, nil
}

// Len returns the total number of frame pairs found.
func (f *FrameDir) Len() int { return len(f.bases) }

// Frame decodes the pair at index, or ok=false past the end.
func (f *FrameDir) Frame(ctx context.Context, index int) (ports.Frame, bool, error) {
	if index < 0 || index >= len(f.bases) {
		return ports.Frame{}, false, nil
	}
	base := f.bases[index]

	orig, err := decodeImage(filepath.Join(f.dir, base+origSuffix))
	if err != nil {
		return ports.Frame{}, false, fmt.Errorf("ingest: decode %s: %w", base+origSuffix, err)
	}
	thresh, err := decodeImage(filepath.Join(f.dir, base+threshSuffix))
	if err != nil {
		return ports.Frame{}, false, fmt.Errorf("ingest: decode %s: %w", base+threshSuffix, err)
	}

	return ports.Frame{
		Original:                   orig,
		Threshold:                  thresh,
		CaptureMS:                  int64(index) * f.frameMS,
		CameraToVerticalForwardDeg: f.cameraToVerticalForwardDeg,
	}, true, nil
}

func decodeImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}
