package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// ElevationGrid is a JSON-file-backed GroundSource: a regular DEM grid and
// an optional co-registered DSM grid, both indexed by northing/easting
// offset from an origin corner.
type ElevationGrid struct {
	originNorthingM float64
	originEastingM  float64
	cellM           float64
	dem             [][]float64
	dsm             [][]float64
	hasDSM          bool
}

type elevationGridDoc struct {
	OriginNorthingM float64     `json:"origin_northing_m"`
	OriginEastingM  float64     `json:"origin_easting_m"`
	CellM           float64     `json:"cell_m"`
	DemM            [][]float64 `json:"dem_m"`
	DsmM            [][]float64 `json:"dsm_m,omitempty"`
}

// LoadElevationGrid reads and validates an elevation grid from path.
func LoadElevationGrid(path string) (*ElevationGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read elevation grid: %w", err)
	}
	var doc elevationGridDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ingest: parse elevation grid: %w", err)
	}
	if doc.CellM <= 0 {
		return nil, fmt.Errorf("ingest: elevation grid %s has non-positive cell_m", path)
	}
	if len(doc.DemM) == 0 {
		return nil, fmt.Errorf("ingest: elevation grid %s has no dem_m rows", path)
	}
	return &ElevationGrid{
		originNorthingM: doc.OriginNorthingM,
		originEastingM:  doc.OriginEastingM,
		cellM:           doc.CellM,
		dem:             doc.DemM,
		dsm:             doc.DsmM,
		hasDSM:          len(doc.DsmM) > 0,
	}, nil
}

func (g *ElevationGrid) lookup(grid [][]float64, northingM, eastingM float64) (float64, bool) {
	row := int(math.Round((northingM - g.originNorthingM) / g.cellM))
	col := int(math.Round((eastingM - g.originEastingM) / g.cellM))
	if row < 0 || row >= len(grid) || col < 0 || col >= len(grid[row]) {
		return 0, false
	}
	return grid[row][col], true
}

// ElevationDEM returns the bare-earth elevation at the nearest grid cell.
func (g *ElevationGrid) ElevationDEM(northingM, eastingM float64) (float64, bool) {
	return g.lookup(g.dem, northingM, eastingM)
}

// ElevationDSM returns the surface-model elevation at the nearest grid
// cell, or ok=false if this grid carries no DSM.
func (g *ElevationGrid) ElevationDSM(northingM, eastingM float64) (float64, bool) {
	if !g.hasDSM {
		return 0, false
	}
	return g.lookup(g.dsm, northingM, eastingM)
}
