package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SoilType names a soil class in the calibration table.
type SoilType string

const (
	SoilTypeUnknown SoilType = ""
	SoilClay        SoilType = "CLAY"
	SoilSiltyClay   SoilType = "SILTY_CLAY"
	SoilClayLoam    SoilType = "CLAY_LOAM"
	SoilLoam        SoilType = "LOAM"
	SoilSilt        SoilType = "SILT"
	SoilSandyLoam   SoilType = "SANDY_LOAM"
	SoilSand        SoilType = "SAND"
	SoilGravel      SoilType = "GRAVEL"
	SoilRocky       SoilType = "ROCKY"
)

var knownSoilTypes = []SoilType{
	SoilClay, SoilSiltyClay, SoilClayLoam, SoilLoam, SoilSilt,
	SoilSandyLoam, SoilSand, SoilGravel, SoilRocky,
}

// SoilTypes returns every known soil type.
func SoilTypes() []SoilType {
	out := make([]SoilType, len(knownSoilTypes))
	copy(out, knownSoilTypes)
	return out
}

// ParseSoilType normalizes a free-form name ("silty clay", "Sandy-Loam") to a
// SoilType. Unrecognized names map to SoilTypeUnknown.
func ParseSoilType(name string) SoilType {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	for _, t := range knownSoilTypes {
		if SoilType(n) == t {
			return t
		}
	}
	return SoilTypeUnknown
}

// Known reports whether t is one of the calibrated soil types.
func (t SoilType) Known() bool {
	return ParseSoilType(string(t)) != SoilTypeUnknown
}

func (t SoilType) String() string {
	if t == SoilTypeUnknown {
		return "UNKNOWN"
	}
	return string(t)
}

// Default calibration for sensors whose soil type is missing or unknown.
const (
	DefaultCriticalSaturation    = 60.0
	DefaultTotalSaturation       = 85.0
	DefaultCriticalFrictionAngle = 32.0
	DefaultCohesionCoefficient   = 0.1
)

// ErrInvalidCalibration is returned by SoilCalibration.Validate.
var ErrInvalidCalibration = errors.New("invalid soil calibration")

// SoilCalibration holds the geotechnical parameters of one soil type.
type SoilCalibration struct {
	SoilType              SoilType `json:"soil_type"`
	CriticalSaturation    float64  `json:"critical_saturation"`
	TotalSaturation       float64  `json:"total_saturation"`
	CriticalFrictionAngle float64  `json:"critical_friction_angle"`
	CohesionCoefficient   float64  `json:"cohesion_coefficient"`
}

// DefaultCalibration returns the fallback parameters.
func DefaultCalibration() SoilCalibration {
	return SoilCalibration{
		SoilType:              SoilTypeUnknown,
		CriticalSaturation:    DefaultCriticalSaturation,
		TotalSaturation:       DefaultTotalSaturation,
		CriticalFrictionAngle: DefaultCriticalFrictionAngle,
		CohesionCoefficient:   DefaultCohesionCoefficient,
	}
}

// Validate checks 0 ≤ Tc < Tt ≤ 100, 0 < φ ≤ 90 and c ≥ 0.
func (c SoilCalibration) Validate() error {
	switch {
	case c.CriticalSaturation < 0 || c.TotalSaturation > 100:
		return fmt.Errorf("%w: saturation thresholds must lie in 0-100", ErrInvalidCalibration)
	case c.CriticalSaturation >= c.TotalSaturation:
		return fmt.Errorf("%w: critical saturation %.1f not below total saturation %.1f",
			ErrInvalidCalibration, c.CriticalSaturation, c.TotalSaturation)
	case c.CriticalFrictionAngle <= 0 || c.CriticalFrictionAngle > 90:
		return fmt.Errorf("%w: critical friction angle %.1f outside (0, 90]", ErrInvalidCalibration, c.CriticalFrictionAngle)
	case c.CohesionCoefficient < 0:
		return fmt.Errorf("%w: negative cohesion coefficient %.3f", ErrInvalidCalibration, c.CohesionCoefficient)
	}
	return nil
}

// CalibrationOverrides are per-sensor values that replace the soil-type
// parameters field by field. Nil fields keep the base value.
type CalibrationOverrides struct {
	CriticalSaturation    *float64 `json:"critical_saturation,omitempty"`
	TotalSaturation       *float64 `json:"total_saturation,omitempty"`
	CriticalFrictionAngle *float64 `json:"critical_friction_angle,omitempty"`
	CohesionCoefficient   *float64 `json:"cohesion_coefficient,omitempty"`
}

// Empty reports whether no override is set.
func (o CalibrationOverrides) Empty() bool {
	return o.CriticalSaturation == nil && o.TotalSaturation == nil &&
		o.CriticalFrictionAngle == nil && o.CohesionCoefficient == nil
}

// Apply returns base with every non-nil override substituted.
func (o CalibrationOverrides) Apply(base SoilCalibration) SoilCalibration {
	out := base
	if o.CriticalSaturation != nil {
		out.CriticalSaturation = *o.CriticalSaturation
	}
	if o.TotalSaturation != nil {
		out.TotalSaturation = *o.TotalSaturation
	}
	if o.CriticalFrictionAngle != nil {
		out.CriticalFrictionAngle = *o.CriticalFrictionAngle
	}
	if o.CohesionCoefficient != nil {
		out.CohesionCoefficient = *o.CohesionCoefficient
	}
	return out
}
