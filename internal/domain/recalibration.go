package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SensorCalibration is the part of a sensor's metadata the risk model reads:
// its soil type and the per-sensor overrides applied on top of it.
type SensorCalibration struct {
	SoilType  SoilType             `json:"soil_type,omitempty"`
	Overrides CalibrationOverrides `json:"overrides,omitzero"`
}

// Calibration returns the sensor's current calibration settings.
func (s Sensor) Calibration() SensorCalibration {
	return SensorCalibration{SoilType: s.SoilType, Overrides: s.Overrides}
}

// Validate checks the soil type is known (or unset) and every override lies
// in its physical range. Overrides are checked against each other only when
// both saturation thresholds are given.
func (c SensorCalibration) Validate() error {
	if c.SoilType != SoilTypeUnknown && !c.SoilType.Known() {
		return fmt.Errorf("%w: unknown soil type %q", ErrInvalidCalibration, c.SoilType)
	}
	o := c.Overrides
	if err := checkOverride("critical_saturation", o.CriticalSaturation, 0, 100); err != nil {
		return err
	}
	if err := checkOverride("total_saturation", o.TotalSaturation, 0, 100); err != nil {
		return err
	}
	if o.CriticalSaturation != nil && o.TotalSaturation != nil && *o.CriticalSaturation >= *o.TotalSaturation {
		return fmt.Errorf("%w: critical saturation %.1f not below total saturation %.1f",
			ErrInvalidCalibration, *o.CriticalSaturation, *o.TotalSaturation)
	}
	if err := checkOverride("critical_friction_angle", o.CriticalFrictionAngle, math.SmallestNonzeroFloat64, 90); err != nil {
		return err
	}
	return checkOverride("cohesion_coefficient", o.CohesionCoefficient, 0, math.MaxFloat64)
}

func checkOverride(name string, v *float64, lo, hi float64) error {
	if v != nil && !inRange(*v, lo, hi) {
		return fmt.Errorf("%w: %s %g out of range", ErrInvalidCalibration, name, *v)
	}
	return nil
}

// CalibrationRecord is one entry of a sensor's calibration history.
type CalibrationRecord struct {
	ID          string            `json:"id"`
	SensorID    string            `json:"sensor_id"`
	Previous    SensorCalibration `json:"previous"`
	Current     SensorCalibration `json:"current"`
	Reason      string            `json:"reason,omitempty"`
	PerformedBy string            `json:"performed_by"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewCalibrationRecord validates a recalibration of sensorID from previous
// to current and stamps it with a fresh ID and the current time.
func NewCalibrationRecord(sensorID string, previous, current SensorCalibration, by, reason string) (CalibrationRecord, error) {
	by = strings.TrimSpace(by)
	switch {
	case sensorID == "":
		return CalibrationRecord{}, fmt.Errorf("%w: sensor_id is required", ErrInvalidCalibration)
	case by == "":
		return CalibrationRecord{}, fmt.Errorf("%w: performed_by is required", ErrInvalidCalibration)
	}
	if err := current.Validate(); err != nil {
		return CalibrationRecord{}, err
	}
	return CalibrationRecord{
		ID:          uuid.NewString(),
		SensorID:    sensorID,
		Previous:    previous,
		Current:     current,
		Reason:      strings.TrimSpace(reason),
		PerformedBy: by,
		CreatedAt:   Now(),
	}, nil
}
