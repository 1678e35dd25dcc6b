package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/erowatch-service/internal/domain"
)

const defaultCalibrationLimit = 50

// CalibrateSensor replaces a sensor's soil type and overrides and records the
// old and new values in the calibration history, in one transaction.
func (s *Store) CalibrateSensor(ctx context.Context, sensorID string, next domain.SensorCalibration, by, reason string) (domain.CalibrationRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		soilType sql.NullString
		tc, tt   sql.NullFloat64
		phi, c   sql.NullFloat64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT soil_type, critical_saturation, total_saturation, critical_friction_angle, cohesion_coefficient
		FROM sensors
		WHERE id = $1
		FOR UPDATE
	`, sensorID).Scan(&soilType, &tc, &tt, &phi, &c)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CalibrationRecord{}, fmt.Errorf("%w: %s", domain.ErrSensorNotFound, sensorID)
	}
	if err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("query sensor %s: %w", sensorID, err)
	}

	previous := domain.SensorCalibration{
		SoilType: domain.SoilType(soilType.String),
		Overrides: domain.CalibrationOverrides{
			CriticalSaturation:    floatPtr(tc),
			TotalSaturation:       floatPtr(tt),
			CriticalFrictionAngle: floatPtr(phi),
			CohesionCoefficient:   floatPtr(c),
		},
	}
	rec, err := domain.NewCalibrationRecord(sensorID, previous, next, by, reason)
	if err != nil {
		return domain.CalibrationRecord{}, err
	}

	o := next.Overrides
	_, err = tx.ExecContext(ctx, `
		UPDATE sensors
		SET soil_type = $2,
		    critical_saturation = $3,
		    total_saturation = $4,
		    critical_friction_angle = $5,
		    cohesion_coefficient = $6,
		    last_calibrated_at = $7
		WHERE id = $1
	`, sensorID,
		sql.NullString{String: string(next.SoilType), Valid: next.SoilType != domain.SoilTypeUnknown},
		nullFloat(o.CriticalSaturation),
		nullFloat(o.TotalSaturation),
		nullFloat(o.CriticalFrictionAngle),
		nullFloat(o.CohesionCoefficient),
		rec.CreatedAt,
	)
	if err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("update sensor %s: %w", sensorID, err)
	}

	before, err := json.Marshal(rec.Previous)
	if err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("encode previous calibration: %w", err)
	}
	after, err := json.Marshal(rec.Current)
	if err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("encode new calibration: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sensor_calibrations (id, sensor_id, before_calibration, after_calibration, reason, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.SensorID, string(before), string(after), rec.Reason, rec.PerformedBy, rec.CreatedAt)
	if err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("insert calibration %s: %w", rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("commit calibration %s: %w", rec.ID, err)
	}

	s.logger.Info("sensor calibrated",
		"sensor_id", sensorID,
		"soil_type", next.SoilType.String(),
		"previous_soil_type", previous.SoilType.String(),
		"by", rec.PerformedBy,
	)
	return rec, nil
}

// ListCalibrations returns a sensor's calibration history, newest first.
func (s *Store) ListCalibrations(ctx context.Context, sensorID string, limit int) ([]domain.CalibrationRecord, error) {
	if limit <= 0 {
		limit = defaultCalibrationLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sensor_id, before_calibration, after_calibration, reason, performed_by, created_at
		FROM sensor_calibrations
		WHERE sensor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()

	records := make([]domain.CalibrationRecord, 0)
	for rows.Next() {
		rec, err := scanCalibration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calibration: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibrations: %w", err)
	}
	return records, nil
}

func scanCalibration(row rowScanner) (domain.CalibrationRecord, error) {
	var (
		rec           domain.CalibrationRecord
		before, after []byte
	)
	if err := row.Scan(&rec.ID, &rec.SensorID, &before, &after, &rec.Reason, &rec.PerformedBy, &rec.CreatedAt); err != nil {
		return domain.CalibrationRecord{}, err
	}
	if err := json.Unmarshal(before, &rec.Previous); err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("decode previous calibration: %w", err)
	}
	if err := json.Unmarshal(after, &rec.Current); err != nil {
		return domain.CalibrationRecord{}, fmt.Errorf("decode new calibration: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
