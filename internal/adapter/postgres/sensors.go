package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/erowatch-service/internal/domain"
)

// GetSensor returns the registered sensor or domain.ErrSensorNotFound.
func (s *Store) GetSensor(ctx context.Context, id string) (domain.Sensor, error) {
	const query = `
		SELECT id, identifier, region, soil_type,
		       critical_saturation, total_saturation, critical_friction_angle, cohesion_coefficient,
		       latitude, longitude, active
		FROM sensors
		WHERE id = $1
	`

	var (
		sensor   domain.Sensor
		soilType sql.NullString
		tc, tt   sql.NullFloat64
		phi, c   sql.NullFloat64
		lat, lon sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sensor.ID,
		&sensor.Identifier,
		&sensor.Region,
		&soilType,
		&tc, &tt, &phi, &c,
		&lat, &lon,
		&sensor.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sensor{}, fmt.Errorf("%w: %s", domain.ErrSensorNotFound, id)
	}
	if err != nil {
		return domain.Sensor{}, fmt.Errorf("query sensor %s: %w", id, err)
	}

	if soilType.Valid {
		sensor.SoilType = domain.ParseSoilType(soilType.String)
	}
	sensor.Overrides = domain.CalibrationOverrides{
		CriticalSaturation:    floatPtr(tc),
		TotalSaturation:       floatPtr(tt),
		CriticalFrictionAngle: floatPtr(phi),
		CohesionCoefficient:   floatPtr(c),
	}
	sensor.Latitude = floatPtr(lat)
	sensor.Longitude = floatPtr(lon)
	return sensor, nil
}

// UpsertSensor registers a sensor or replaces its metadata.
func (s *Store) UpsertSensor(ctx context.Context, sensor domain.Sensor) error {
	const query = `
		INSERT INTO sensors (
			id, identifier, region, soil_type,
			critical_saturation, total_saturation, critical_friction_angle, cohesion_coefficient,
			latitude, longitude, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET identifier = EXCLUDED.identifier,
		    region = EXCLUDED.region,
		    soil_type = EXCLUDED.soil_type,
		    critical_saturation = EXCLUDED.critical_saturation,
		    total_saturation = EXCLUDED.total_saturation,
		    critical_friction_angle = EXCLUDED.critical_friction_angle,
		    cohesion_coefficient = EXCLUDED.cohesion_coefficient,
		    latitude = EXCLUDED.latitude,
		    longitude = EXCLUDED.longitude,
		    active = EXCLUDED.active
	`
	o := sensor.Overrides
	_, err := s.db.ExecContext(ctx, query,
		sensor.ID,
		sensor.Identifier,
		sensor.Region,
		sql.NullString{String: string(sensor.SoilType), Valid: sensor.SoilType != domain.SoilTypeUnknown},
		nullFloat(o.CriticalSaturation),
		nullFloat(o.TotalSaturation),
		nullFloat(o.CriticalFrictionAngle),
		nullFloat(o.CohesionCoefficient),
		nullFloat(sensor.Latitude),
		nullFloat(sensor.Longitude),
		sensor.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert sensor %s: %w", sensor.ID, err)
	}
	return nil
}

// ListSoilTypes loads the calibration table. Rows with an unknown soil type
// or physically invalid values are skipped with a warning.
func (s *Store) ListSoilTypes(ctx context.Context) (map[domain.SoilType]domain.SoilCalibration, error) {
	const query = `
		SELECT soil_type, critical_saturation, total_saturation, critical_friction_angle, cohesion_coefficient
		FROM soil_types
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query soil types: %w", err)
	}
	defer rows.Close()

	table := make(map[domain.SoilType]domain.SoilCalibration)
	for rows.Next() {
		var (
			name string
			cal  domain.SoilCalibration
		)
		if err := rows.Scan(&name, &cal.CriticalSaturation, &cal.TotalSaturation,
			&cal.CriticalFrictionAngle, &cal.CohesionCoefficient); err != nil {
			return nil, fmt.Errorf("scan soil type: %w", err)
		}
		cal.SoilType = domain.ParseSoilType(name)
		if !cal.SoilType.Known() {
			s.logger.Warn("skipping unknown soil type row", "soil_type", name)
			continue
		}
		if err := cal.Validate(); err != nil {
			s.logger.Warn("skipping invalid soil type row", "soil_type", name, "error", err)
			continue
		}
		table[cal.SoilType] = cal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate soil types: %w", err)
	}
	return table, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
