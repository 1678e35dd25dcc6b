package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/erowatch-service/internal/domain"
)

const insertMeasurement = `
	INSERT INTO measurements (
		id, sensor_id, recorded_at,
		soil_moisture_pct, soil_temperature_c, air_humidity_pct, air_temperature_c,
		slope_degrees, rain_alert,
		risk_index, soil_level, final_level, erosion_rate, erosion_level,
		used_default_calibration, assessment, erosion, forecast, processed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (id) DO NOTHING
`

// LoadBatch stores the measurements and the alerts they raised in one
// transaction. Replayed readings map to the same IDs and are ignored, so a
// retried batch never duplicates rows. It implements pipeline.BatchLoader.
func (s *Store) LoadBatch(ctx context.Context, measurements []domain.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	alerts := 0
	for i := range measurements {
		m := &measurements[i]
		args, err := measurementArgs(*m)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertMeasurement, args...); err != nil {
			return fmt.Errorf("insert measurement %s: %w", m.ID, err)
		}
		if m.Alert == nil {
			continue
		}
		if err := insertAlert(ctx, tx, *m.Alert, true); err != nil {
			return err
		}
		alerts++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit measurements: %w", err)
	}
	s.logger.Debug("measurements stored", "count", len(measurements), "alerts", alerts)
	return nil
}

func measurementArgs(m domain.Measurement) ([]any, error) {
	assessment, err := json.Marshal(m.Assessment)
	if err != nil {
		return nil, fmt.Errorf("encode assessment: %w", err)
	}
	erosion, err := json.Marshal(m.Erosion)
	if err != nil {
		return nil, fmt.Errorf("encode erosion: %w", err)
	}
	forecast, err := nullJSON(m.Forecast)
	if err != nil {
		return nil, fmt.Errorf("encode forecast: %w", err)
	}

	t := m.Telemetry
	return []any{
		m.ID, t.SensorID, t.Timestamp,
		t.SoilMoisture, t.SoilTemperature, t.AirHumidity, t.AirTemperature,
		t.SlopeDegrees, t.RainAlert,
		m.Assessment.RiskIndex, string(m.Assessment.Level), string(m.Level),
		m.Erosion.Rate, string(m.Erosion.Level),
		m.UsedDefaultCalibration, string(assessment), string(erosion), forecast, m.ProcessedAt,
	}, nil
}

// nullJSON encodes v as JSON text, mapping a nil pointer to SQL NULL.
func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
