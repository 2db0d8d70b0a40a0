package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/skycomb-go/thermaltrack/internal/model"
)

// Store persists a run's catalog to SQLite and reloads it, entity by
// entity, the way the run controller's arenas hold it in memory.
type Store struct {
	db *DB
}

// NewStore wraps an open database as a catalog store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// SaveFlightStep inserts or replaces a flight step row.
func (s *Store) SaveFlightStep(ctx context.Context, step *model.FlightStep) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flight_steps (
			id, timestamp_ms, northing_m, easting_m, altitude_m,
			yaw_deg, pitch_deg, roll_deg, dem_m, leg_id,
			fix_alt_m, fix_yaw_deg, fix_pitch_deg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp_ms = excluded.timestamp_ms,
			northing_m = excluded.northing_m,
			easting_m = excluded.easting_m,
			altitude_m = excluded.altitude_m,
			yaw_deg = excluded.yaw_deg,
			pitch_deg = excluded.pitch_deg,
			roll_deg = excluded.roll_deg,
			dem_m = excluded.dem_m,
			leg_id = excluded.leg_id,
			fix_alt_m = excluded.fix_alt_m,
			fix_yaw_deg = excluded.fix_yaw_deg,
			fix_pitch_deg = excluded.fix_pitch_deg
	`,
		step.ID, step.TimestampMS, step.NorthingM, step.EastingM, step.AltitudeM,
		step.YawDeg, step.PitchDeg, step.RollDeg, step.DemM, step.LegID,
		step.Correction.FixAltM, step.Correction.FixYawDeg, step.Correction.FixPitchDeg,
	)
	if err != nil {
		return fmt.Errorf("save flight step %d: %w", step.ID, err)
	}
	return nil
}

// LoadFlightSteps returns every flight step ordered by id.
func (s *Store) LoadFlightSteps(ctx context.Context) ([]*model.FlightStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp_ms, northing_m, easting_m, altitude_m,
		       yaw_deg, pitch_deg, roll_deg, dem_m, leg_id,
		       fix_alt_m, fix_yaw_deg, fix_pitch_deg
		FROM flight_steps ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load flight steps: %w", err)
	}
	defer rows.Close()

	var steps []*model.FlightStep
	for rows.Next() {
		step := &model.FlightStep{}
		if err := rows.Scan(
			&step.ID, &step.TimestampMS, &step.NorthingM, &step.EastingM, &step.AltitudeM,
			&step.YawDeg, &step.PitchDeg, &step.RollDeg, &step.DemM, &step.LegID,
			&step.Correction.FixAltM, &step.Correction.FixYawDeg, &step.Correction.FixPitchDeg,
		); err != nil {
			return nil, fmt.Errorf("scan flight step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// SaveBlock inserts or replaces a block row.
func (s *Store) SaveBlock(ctx context.Context, b *model.Block) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (
			id, input_frame_id, input_frame_ms, northing_m, easting_m, altitude_m,
			yaw_deg, pitch_deg, roll_deg, camera_to_vertical_forward_deg,
			step_id, step_weight, next_weight, sum_lineal_m, input_image_dem_m,
			leg_id, is_reset, min_feature_id, max_feature_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			input_frame_id = excluded.input_frame_id,
			input_frame_ms = excluded.input_frame_ms,
			northing_m = excluded.northing_m,
			easting_m = excluded.easting_m,
			altitude_m = excluded.altitude_m,
			yaw_deg = excluded.yaw_deg,
			pitch_deg = excluded.pitch_deg,
			roll_deg = excluded.roll_deg,
			camera_to_vertical_forward_deg = excluded.camera_to_vertical_forward_deg,
			step_id = excluded.step_id,
			step_weight = excluded.step_weight,
			next_weight = excluded.next_weight,
			sum_lineal_m = excluded.sum_lineal_m,
			input_image_dem_m = excluded.input_image_dem_m,
			leg_id = excluded.leg_id,
			is_reset = excluded.is_reset,
			min_feature_id = excluded.min_feature_id,
			max_feature_id = excluded.max_feature_id
	`,
		b.ID, b.InputFrameID, b.InputFrameMS, b.NorthingM, b.EastingM, b.AltitudeM,
		b.YawDeg, b.PitchDeg, b.RollDeg, b.CameraToVerticalForwardDeg,
		b.StepID, b.StepWeight, b.NextWeight, b.SumLinealM, b.InputImageDemM,
		b.LegID, b.IsReset, b.MinFeatureID, b.MaxFeatureID,
	)
	if err != nil {
		return fmt.Errorf("save block %d: %w", b.ID, err)
	}
	return nil
}

// LoadBlocks returns every block ordered by id.
func (s *Store) LoadBlocks(ctx context.Context) ([]*model.Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, input_frame_id, input_frame_ms, northing_m, easting_m, altitude_m,
		       yaw_deg, pitch_deg, roll_deg, camera_to_vertical_forward_deg,
		       step_id, step_weight, next_weight, sum_lineal_m, input_image_dem_m,
		       leg_id, is_reset, min_feature_id, max_feature_id
		FROM blocks ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*model.Block
	for rows.Next() {
		b := &model.Block{}
		if err := rows.Scan(
			&b.ID, &b.InputFrameID, &b.InputFrameMS, &b.NorthingM, &b.EastingM, &b.AltitudeM,
			&b.YawDeg, &b.PitchDeg, &b.RollDeg, &b.CameraToVerticalForwardDeg,
			&b.StepID, &b.StepWeight, &b.NextWeight, &b.SumLinealM, &b.InputImageDemM,
			&b.LegID, &b.IsReset, &b.MinFeatureID, &b.MaxFeatureID,
		); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// SaveFeature inserts or replaces a feature row and its pixel heat samples.
// Pixels are only persisted for Real features; Unreal/Consumed features
// carry none.
func (s *Store) SaveFeature(ctx context.Context, f *model.Feature) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO features (
				id, block_id, type, box_x, box_y, box_w, box_h,
				heat_min, heat_max, hot_count, significant, attributes,
				tracking, object_id, location_northing_m, location_easting_m,
				location_altitude_m, height_m, height_algo, label, confidence
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				block_id = excluded.block_id,
				type = excluded.type,
				box_x = excluded.box_x, box_y = excluded.box_y,
				box_w = excluded.box_w, box_h = excluded.box_h,
				heat_min = excluded.heat_min, heat_max = excluded.heat_max,
				hot_count = excluded.hot_count, significant = excluded.significant,
				attributes = excluded.attributes, tracking = excluded.tracking,
				object_id = excluded.object_id,
				location_northing_m = excluded.location_northing_m,
				location_easting_m = excluded.location_easting_m,
				location_altitude_m = excluded.location_altitude_m,
				height_m = excluded.height_m, height_algo = excluded.height_algo,
				label = excluded.label, confidence = excluded.confidence
		`,
			f.ID, f.BlockID, string(f.Type), f.Box.X, f.Box.Y, f.Box.W, f.Box.H,
			f.HeatMin, f.HeatMax, f.HotCount, f.Significant, f.Attributes,
			f.Tracking, f.ObjectID, f.Location.NorthingM, f.Location.EastingM,
			f.Location.AltitudeM, f.HeightM, string(f.HeightAlgo), f.Label, f.Confidence,
		)
		if err != nil {
			return fmt.Errorf("save feature %d: %w", f.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pixel_heat WHERE feature_id = ?`, f.ID); err != nil {
			return fmt.Errorf("clear pixel heat for feature %d: %w", f.ID, err)
		}
		for i, px := range f.Pixels {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pixel_heat (feature_id, seq, y, x, heat) VALUES (?, ?, ?, ?, ?)
			`, f.ID, i, px.Y, px.X, px.Heat); err != nil {
				return fmt.Errorf("save pixel heat for feature %d: %w", f.ID, err)
			}
		}
		return nil
	})
}

// LoadFeatures returns every feature, with its pixel heat samples attached,
// ordered by id.
func (s *Store) LoadFeatures(ctx context.Context) ([]*model.Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, block_id, type, box_x, box_y, box_w, box_h,
		       heat_min, heat_max, hot_count, significant, attributes,
		       tracking, object_id, location_northing_m, location_easting_m,
		       location_altitude_m, height_m, height_algo, label, confidence
		FROM features ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	defer rows.Close()

	var features []*model.Feature
	for rows.Next() {
		f := &model.Feature{}
		var typ, heightAlgo string
		if err := rows.Scan(
			&f.ID, &f.BlockID, &typ, &f.Box.X, &f.Box.Y, &f.Box.W, &f.Box.H,
			&f.HeatMin, &f.HeatMax, &f.HotCount, &f.Significant, &f.Attributes,
			&f.Tracking, &f.ObjectID, &f.Location.NorthingM, &f.Location.EastingM,
			&f.Location.AltitudeM, &f.HeightM, &heightAlgo, &f.Label, &f.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		f.Type = model.FeatureType(typ)
		f.HeightAlgo = model.HeightAlgorithm(heightAlgo)
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pixelRows, err := s.db.QueryContext(ctx, `SELECT feature_id, y, x, heat FROM pixel_heat ORDER BY feature_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("load pixel heat: %w", err)
	}
	defer pixelRows.Close()

	byFeature := make(map[int64]*model.Feature, len(features))
	for _, f := range features {
		byFeature[f.ID] = f
	}
	for pixelRows.Next() {
		var featureID int64
		var px model.PixelHeat
		if err := pixelRows.Scan(&featureID, &px.Y, &px.X, &px.Heat); err != nil {
			return nil, fmt.Errorf("scan pixel heat: %w", err)
		}
		if f, ok := byFeature[featureID]; ok {
			f.Pixels = append(f.Pixels, px)
		}
	}
	return features, pixelRows.Err()
}

// SaveObject inserts or replaces an object row.
func (s *Store) SaveObject(ctx context.Context, o *model.Object) error {
	featureIDs, err := json.Marshal(o.FeatureIDs)
	if err != nil {
		return fmt.Errorf("marshal feature ids for object %d: %w", o.ID, err)
	}
	attrs, err := json.Marshal(o.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes for object %d: %w", o.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (
			id, last_real_idx, num_real, state, being_tracked, significant,
			num_sig_blocks, unreal_blocks_remaining, max_real_hot_pixels,
			max_real_width, max_real_height, max_real_density,
			location_northing_m, location_easting_m, location_altitude_m,
			location_err_m, height_m, height_err_m, min_height_m, max_height_m,
			avg_range_m, size_cm2, max_heat, first_fwd_down_deg, last_fwd_down_deg,
			first_block_id, last_block_id, last_real_block_id, center_block_id,
			name, summary, feature_ids_json, attributes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_real_idx = excluded.last_real_idx,
			num_real = excluded.num_real,
			state = excluded.state,
			being_tracked = excluded.being_tracked,
			significant = excluded.significant,
			num_sig_blocks = excluded.num_sig_blocks,
			unreal_blocks_remaining = excluded.unreal_blocks_remaining,
			max_real_hot_pixels = excluded.max_real_hot_pixels,
			max_real_width = excluded.max_real_width,
			max_real_height = excluded.max_real_height,
			max_real_density = excluded.max_real_density,
			location_northing_m = excluded.location_northing_m,
			location_easting_m = excluded.location_easting_m,
			location_altitude_m = excluded.location_altitude_m,
			location_err_m = excluded.location_err_m,
			height_m = excluded.height_m,
			height_err_m = excluded.height_err_m,
			min_height_m = excluded.min_height_m,
			max_height_m = excluded.max_height_m,
			avg_range_m = excluded.avg_range_m,
			size_cm2 = excluded.size_cm2,
			max_heat = excluded.max_heat,
			first_fwd_down_deg = excluded.first_fwd_down_deg,
			last_fwd_down_deg = excluded.last_fwd_down_deg,
			first_block_id = excluded.first_block_id,
			last_block_id = excluded.last_block_id,
			last_real_block_id = excluded.last_real_block_id,
			center_block_id = excluded.center_block_id,
			name = excluded.name,
			summary = excluded.summary,
			feature_ids_json = excluded.feature_ids_json,
			attributes_json = excluded.attributes_json
	`,
		o.ID, o.LastRealIdx, o.NumReal, string(o.State), o.BeingTracked, o.Significant,
		o.NumSigBlocks, o.UnrealBlocksRemaining, o.MaxRealHotPixels,
		o.MaxRealWidth, o.MaxRealHeight, o.MaxRealDensity,
		o.LocationM.NorthingM, o.LocationM.EastingM, o.LocationM.AltitudeM,
		o.LocationErrM, o.HeightM, o.HeightErrM, o.MinHeightM, o.MaxHeightM,
		o.AvgRangeM, o.SizeCm2, o.MaxHeat, o.FirstFwdDownDeg, o.LastFwdDownDeg,
		o.FirstBlockID, o.LastBlockID, o.LastRealBlockID, o.CenterBlockID,
		o.Name, o.Summary, string(featureIDs), string(attrs),
	)
	if err != nil {
		return fmt.Errorf("save object %d: %w", o.ID, err)
	}
	return nil
}

// LoadObjects returns every object ordered by id.
func (s *Store) LoadObjects(ctx context.Context) ([]*model.Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, last_real_idx, num_real, state, being_tracked, significant,
		       num_sig_blocks, unreal_blocks_remaining, max_real_hot_pixels,
		       max_real_width, max_real_height, max_real_density,
		       location_northing_m, location_easting_m, location_altitude_m,
		       location_err_m, height_m, height_err_m, min_height_m, max_height_m,
		       avg_range_m, size_cm2, max_heat, first_fwd_down_deg, last_fwd_down_deg,
		       first_block_id, last_block_id, last_real_block_id, center_block_id,
		       name, summary, feature_ids_json, attributes_json
		FROM objects ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load objects: %w", err)
	}
	defer rows.Close()

	var objects []*model.Object
	for rows.Next() {
		o := &model.Object{}
		var state, featureIDsJSON, attrsJSON string
		if err := rows.Scan(
			&o.ID, &o.LastRealIdx, &o.NumReal, &state, &o.BeingTracked, &o.Significant,
			&o.NumSigBlocks, &o.UnrealBlocksRemaining, &o.MaxRealHotPixels,
			&o.MaxRealWidth, &o.MaxRealHeight, &o.MaxRealDensity,
			&o.LocationM.NorthingM, &o.LocationM.EastingM, &o.LocationM.AltitudeM,
			&o.LocationErrM, &o.HeightM, &o.HeightErrM, &o.MinHeightM, &o.MaxHeightM,
			&o.AvgRangeM, &o.SizeCm2, &o.MaxHeat, &o.FirstFwdDownDeg, &o.LastFwdDownDeg,
			&o.FirstBlockID, &o.LastBlockID, &o.LastRealBlockID, &o.CenterBlockID,
			&o.Name, &o.Summary, &featureIDsJSON, &attrsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		o.State = model.ObjectState(state)
		if err := json.Unmarshal([]byte(featureIDsJSON), &o.FeatureIDs); err != nil {
			return nil, fmt.Errorf("unmarshal feature ids for object %d: %w", o.ID, err)
		}
		if err := json.Unmarshal([]byte(attrsJSON), &o.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes for object %d: %w", o.ID, err)
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

// SaveSpan inserts or replaces a span row.
func (s *Store) SaveSpan(ctx context.Context, sp *model.Span) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spans (
			id, min_step_id, max_step_id, min_block_id, max_block_id,
			best_fix_alt_m, best_fix_yaw_deg, best_fix_pitch_deg, best_hfov_deg,
			best_sum_locn_err_m, best_sum_height_err_m, org_sum_locn_err_m,
			org_sum_height_err_m, num_significant_objects
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			min_step_id = excluded.min_step_id,
			max_step_id = excluded.max_step_id,
			min_block_id = excluded.min_block_id,
			max_block_id = excluded.max_block_id,
			best_fix_alt_m = excluded.best_fix_alt_m,
			best_fix_yaw_deg = excluded.best_fix_yaw_deg,
			best_fix_pitch_deg = excluded.best_fix_pitch_deg,
			best_hfov_deg = excluded.best_hfov_deg,
			best_sum_locn_err_m = excluded.best_sum_locn_err_m,
			best_sum_height_err_m = excluded.best_sum_height_err_m,
			org_sum_locn_err_m = excluded.org_sum_locn_err_m,
			org_sum_height_err_m = excluded.org_sum_height_err_m,
			num_significant_objects = excluded.num_significant_objects
	`,
		sp.ID, sp.MinStepID, sp.MaxStepID, sp.MinBlockID, sp.MaxBlockID,
		sp.BestFixAltM, sp.BestFixYawDeg, sp.BestFixPitchDeg, sp.BestHFOVDeg,
		sp.BestSumLocnErrM, sp.BestSumHeightErrM, sp.OrgSumLocnErrM,
		sp.OrgSumHeightErrM, sp.NumSignificantObjects,
	)
	if err != nil {
		return fmt.Errorf("save span %d: %w", sp.ID, err)
	}
	return nil
}

// LoadSpans returns every span ordered by id.
func (s *Store) LoadSpans(ctx context.Context) ([]*model.Span, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, min_step_id, max_step_id, min_block_id, max_block_id,
		       best_fix_alt_m, best_fix_yaw_deg, best_fix_pitch_deg, best_hfov_deg,
		       best_sum_locn_err_m, best_sum_height_err_m, org_sum_locn_err_m,
		       org_sum_height_err_m, num_significant_objects
		FROM spans ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load spans: %w", err)
	}
	defer rows.Close()

	var spans []*model.Span
	for rows.Next() {
		sp := &model.Span{}
		if err := rows.Scan(
			&sp.ID, &sp.MinStepID, &sp.MaxStepID, &sp.MinBlockID, &sp.MaxBlockID,
			&sp.BestFixAltM, &sp.BestFixYawDeg, &sp.BestFixPitchDeg, &sp.BestHFOVDeg,
			&sp.BestSumLocnErrM, &sp.BestSumHeightErrM, &sp.OrgSumLocnErrM,
			&sp.OrgSumHeightErrM, &sp.NumSignificantObjects,
		); err != nil {
			return nil, fmt.Errorf("scan span: %w", err)
		}
		spans = append(spans, sp)
	}
	return spans, rows.Err()
}

// GetBlock returns a single block by id, or sql.ErrNoRows if absent.
func (s *Store) GetBlock(ctx context.Context, id int64) (*model.Block, error) {
	b := &model.Block{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, input_frame_id, input_frame_ms, northing_m, easting_m, altitude_m,
		       yaw_deg, pitch_deg, roll_deg, camera_to_vertical_forward_deg,
		       step_id, step_weight, next_weight, sum_lineal_m, input_image_dem_m,
		       leg_id, is_reset, min_feature_id, max_feature_id
		FROM blocks WHERE id = ?
	`, id).Scan(
		&b.ID, &b.InputFrameID, &b.InputFrameMS, &b.NorthingM, &b.EastingM, &b.AltitudeM,
		&b.YawDeg, &b.PitchDeg, &b.RollDeg, &b.CameraToVerticalForwardDeg,
		&b.StepID, &b.StepWeight, &b.NextWeight, &b.SumLinealM, &b.InputImageDemM,
		&b.LegID, &b.IsReset, &b.MinFeatureID, &b.MaxFeatureID,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetObject returns a single object by id, or sql.ErrNoRows if absent.
func (s *Store) GetObject(ctx context.Context, id int64) (*model.Object, error) {
	o := &model.Object{}
	var state, featureIDsJSON, attrsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, last_real_idx, num_real, state, being_tracked, significant,
		       num_sig_blocks, unreal_blocks_remaining, max_real_hot_pixels,
		       max_real_width, max_real_height, max_real_density,
		       location_northing_m, location_easting_m, location_altitude_m,
		       location_err_m, height_m, height_err_m, min_height_m, max_height_m,
		       avg_range_m, size_cm2, max_heat, first_fwd_down_deg, last_fwd_down_deg,
		       first_block_id, last_block_id, last_real_block_id, center_block_id,
		       name, summary, feature_ids_json, attributes_json
		FROM objects WHERE id = ?
	`, id).Scan(
		&o.ID, &o.LastRealIdx, &o.NumReal, &state, &o.BeingTracked, &o.Significant,
		&o.NumSigBlocks, &o.UnrealBlocksRemaining, &o.MaxRealHotPixels,
		&o.MaxRealWidth, &o.MaxRealHeight, &o.MaxRealDensity,
		&o.LocationM.NorthingM, &o.LocationM.EastingM, &o.LocationM.AltitudeM,
		&o.LocationErrM, &o.HeightM, &o.HeightErrM, &o.MinHeightM, &o.MaxHeightM,
		&o.AvgRangeM, &o.SizeCm2, &o.MaxHeat, &o.FirstFwdDownDeg, &o.LastFwdDownDeg,
		&o.FirstBlockID, &o.LastBlockID, &o.LastRealBlockID, &o.CenterBlockID,
		&o.Name, &o.Summary, &featureIDsJSON, &attrsJSON,
	)
	if err != nil {
		return nil, err
	}
	o.State = model.ObjectState(state)
	if err := json.Unmarshal([]byte(featureIDsJSON), &o.FeatureIDs); err != nil {
		return nil, fmt.Errorf("unmarshal feature ids for object %d: %w", o.ID, err)
	}
	if err := json.Unmarshal([]byte(attrsJSON), &o.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshal attributes for object %d: %w", o.ID, err)
	}
	return o, nil
}

// GetSpan returns a single span by id, or sql.ErrNoRows if absent.
func (s *Store) GetSpan(ctx context.Context, id int64) (*model.Span, error) {
	sp := &model.Span{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, min_step_id, max_step_id, min_block_id, max_block_id,
		       best_fix_alt_m, best_fix_yaw_deg, best_fix_pitch_deg, best_hfov_deg,
		       best_sum_locn_err_m, best_sum_height_err_m, org_sum_locn_err_m,
		       org_sum_height_err_m, num_significant_objects
		FROM spans WHERE id = ?
	`, id).Scan(
		&sp.ID, &sp.MinStepID, &sp.MaxStepID, &sp.MinBlockID, &sp.MaxBlockID,
		&sp.BestFixAltM, &sp.BestFixYawDeg, &sp.BestFixPitchDeg, &sp.BestHFOVDeg,
		&sp.BestSumLocnErrM, &sp.BestSumHeightErrM, &sp.OrgSumLocnErrM,
		&sp.OrgSumHeightErrM, &sp.NumSignificantObjects,
	)
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// FeaturesByBlock returns every feature attached to a block, with pixel
// heat samples attached, ordered by id.
func (s *Store) FeaturesByBlock(ctx context.Context, blockID int64) ([]*model.Feature, error) {
	return s.queryFeatures(ctx, `block_id = ?`, blockID)
}

// FeaturesByObject returns every feature attached to an object, with pixel
// heat samples attached, ordered by id.
func (s *Store) FeaturesByObject(ctx context.Context, objectID int64) ([]*model.Feature, error) {
	return s.queryFeatures(ctx, `object_id = ?`, objectID)
}

func (s *Store) queryFeatures(ctx context.Context, where string, arg int64) ([]*model.Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, block_id, type, box_x, box_y, box_w, box_h,
		       heat_min, heat_max, hot_count, significant, attributes,
		       tracking, object_id, location_northing_m, location_easting_m,
		       location_altitude_m, height_m, height_algo, label, confidence
		FROM features WHERE `+where+` ORDER BY id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var features []*model.Feature
	ids := make([]int64, 0)
	byFeature := make(map[int64]*model.Feature)
	for rows.Next() {
		f := &model.Feature{}
		var typ, heightAlgo string
		if err := rows.Scan(
			&f.ID, &f.BlockID, &typ, &f.Box.X, &f.Box.Y, &f.Box.W, &f.Box.H,
			&f.HeatMin, &f.HeatMax, &f.HotCount, &f.Significant, &f.Attributes,
			&f.Tracking, &f.ObjectID, &f.Location.NorthingM, &f.Location.EastingM,
			&f.Location.AltitudeM, &f.HeightM, &heightAlgo, &f.Label, &f.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		f.Type = model.FeatureType(typ)
		f.HeightAlgo = model.HeightAlgorithm(heightAlgo)
		features = append(features, f)
		ids = append(ids, f.ID)
		byFeature[f.ID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return features, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT feature_id, y, x, heat FROM pixel_heat WHERE feature_id IN (` +
		joinPlaceholders(placeholders) + `) ORDER BY feature_id, seq`
	pixelRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load pixel heat: %w", err)
	}
	defer pixelRows.Close()

	for pixelRows.Next() {
		var featureID int64
		var px model.PixelHeat
		if err := pixelRows.Scan(&featureID, &px.Y, &px.X, &px.Heat); err != nil {
			return nil, fmt.Errorf("scan pixel heat: %w", err)
		}
		if f, ok := byFeature[featureID]; ok {
			f.Pixels = append(f.Pixels, px)
		}
	}
	return features, pixelRows.Err()
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}

// SaveCatalog persists every arena in the catalog. Intended for periodic
// checkpointing during a run, not just a final flush.
func (s *Store) SaveCatalog(ctx context.Context, cat *model.Catalog) error {
	var err error
	cat.FlightSteps.All(func(_ int64, step *model.FlightStep) bool {
		if err = s.SaveFlightStep(ctx, step); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	cat.Blocks.All(func(_ int64, b *model.Block) bool {
		if err = s.SaveBlock(ctx, b); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	cat.Objects.All(func(_ int64, o *model.Object) bool {
		if err = s.SaveObject(ctx, o); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	cat.Features.All(func(_ int64, f *model.Feature) bool {
		if err = s.SaveFeature(ctx, f); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	cat.Spans.All(func(_ int64, sp *model.Span) bool {
		if err = s.SaveSpan(ctx, sp); err != nil {
			return false
		}
		return true
	})
	return err
}

// LoadCatalog reconstructs a catalog from every persisted arena, for
// resuming a run.
func (s *Store) LoadCatalog(ctx context.Context) (*model.Catalog, error) {
	cat := model.NewCatalog()

	steps, err := s.LoadFlightSteps(ctx)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		cat.FlightSteps.Put(step.ID, step)
	}

	blocks, err := s.LoadBlocks(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		cat.Blocks.Put(b.ID, b)
	}

	objects, err := s.LoadObjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range objects {
		cat.Objects.Put(o.ID, o)
	}

	features, err := s.LoadFeatures(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range features {
		cat.Features.Put(f.ID, f)
	}

	spans, err := s.LoadSpans(ctx)
	if err != nil {
		return nil, err
	}
	for _, sp := range spans {
		cat.Spans.Put(sp.ID, sp)
	}

	return cat, nil
}
