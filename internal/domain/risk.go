package domain

import "math"

// Factor weights of the landslide risk index.
const (
	weightSaturation  = 0.35
	weightSlope       = 0.35
	weightInteraction = 0.20
	weightRain        = 0.10
)

const (
	gentleSlopeDegrees   = 15.0
	moderateSlopeDegrees = 30.0

	// rainOverrideIndex is the floor applied when rain on saturated soil
	// forces a CRITICAL level.
	rainOverrideIndex = 85.0
)

// Recommendations attached to a risk assessment.
const (
	RecommendationLow          = "Stable conditions. Keep routine monitoring and drainage maintenance."
	RecommendationMedium       = "Moderate risk. Keep monitoring and avoid excavation or loading on the slope."
	RecommendationMediumWet    = "Soil moisture is elevated. Inspect drainage channels and watch for new cracks."
	RecommendationHigh         = "High risk of slope failure. Keep people away from the slope and notify civil defense."
	RecommendationCritical     = "Critical risk. Prepare to evacuate and restrict access to the area."
	RecommendationRainOverride = "EMERGENCY: rain on saturated soil. Evacuate the area immediately."
)

// RiskAssessment is the output of the landslide risk model.
type RiskAssessment struct {
	RiskIndex         float64   `json:"risk_index"`
	Level             RiskLevel `json:"risk_level"`
	Recommendation    string    `json:"recommendation"`
	SaturationFactor  float64   `json:"factor_saturation"`
	SlopeFactor       float64   `json:"factor_slope"`
	InteractionFactor float64   `json:"factor_interaction"`
	RainFactor        float64   `json:"factor_rain"`
	CohesionLoss      float64   `json:"cohesion_loss"`
	RainOverride      bool      `json:"rain_override,omitempty"`
}

// ComputeRisk scores a reading against the soil calibration. It is pure and
// assumes inputs already passed Telemetry.Validate.
func ComputeRisk(moisture, slope float64, rainAlert bool, cal SoilCalibration) RiskAssessment {
	sat := saturationFactor(moisture, cal)
	sl := slopeFactor(slope, cal.CriticalFrictionAngle)
	cohesion := cohesionLoss(moisture, cal)
	interaction := sat * sl * cohesion
	rain := rainFactor(moisture, rainAlert, cal)

	index := 100 * (weightSaturation*sat + weightSlope*sl + weightInteraction*interaction + weightRain*rain)
	index = clamp(index, 0, 100)

	level := ClassifyRiskIndex(index)
	a := RiskAssessment{
		RiskIndex:         index,
		Level:             level,
		Recommendation:    recommendationFor(level, moisture),
		SaturationFactor:  sat,
		SlopeFactor:       sl,
		InteractionFactor: interaction,
		RainFactor:        rain,
		CohesionLoss:      cohesion,
	}

	if rainAlert && moisture > cal.CriticalSaturation {
		a.Level = RiskCritical
		a.Recommendation = RecommendationRainOverride
		a.RainOverride = true
		if a.RiskIndex < 75 {
			a.RiskIndex = rainOverrideIndex
		}
	}
	return a
}

// ClassifyRiskIndex maps a 0-100 index to its tier.
func ClassifyRiskIndex(index float64) RiskLevel {
	switch {
	case index < 30:
		return RiskLow
	case index < 55:
		return RiskMedium
	case index < 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func recommendationFor(level RiskLevel, moisture float64) string {
	switch level {
	case RiskLow:
		return RecommendationLow
	case RiskMedium:
		if moisture > 60 {
			return RecommendationMediumWet
		}
		return RecommendationMedium
	case RiskHigh:
		return RecommendationHigh
	case RiskCritical:
		return RecommendationCritical
	}
	return ""
}

// saturationFactor rises slowly below Tc, faster between Tc and Tt, and
// approaches 1 as the soil saturates fully.
func saturationFactor(m float64, cal SoilCalibration) float64 {
	tc, tt := cal.CriticalSaturation, cal.TotalSaturation
	switch {
	case m < tc:
		return m / tc * 0.3
	case m < tt:
		return 0.3 + 0.4*(m-tc)/(tt-tc)
	case tt >= 100:
		return 1
	default:
		return 0.7 + 0.3*(m-tt)/(100-tt)
	}
}

// slopeFactor scores the slope angle. Any slope at or past the friction angle
// scores at least 0.8, including soils whose angle is below 30 degrees.
func slopeFactor(s, frictionAngle float64) float64 {
	switch {
	case s >= frictionAngle:
		return 0.8 + math.Min(0.2, (s-frictionAngle)/10)
	case s < gentleSlopeDegrees:
		return s / gentleSlopeDegrees * 0.2
	case s < moderateSlopeDegrees:
		return 0.2 + 0.3*(s-gentleSlopeDegrees)/(moderateSlopeDegrees-gentleSlopeDegrees)
	default:
		return 0.5 + 0.3*(s-moderateSlopeDegrees)/(frictionAngle-moderateSlopeDegrees)
	}
}

// cohesionLoss is the fraction of cohesion that remains once moisture passes Tc.
func cohesionLoss(m float64, cal SoilCalibration) float64 {
	if m <= cal.CriticalSaturation {
		return 1
	}
	loss := 1 - cal.CohesionCoefficient*(m-cal.CriticalSaturation)/(cal.TotalSaturation-cal.CriticalSaturation)
	return clamp(loss, 0, 1)
}

func rainFactor(m float64, rainAlert bool, cal SoilCalibration) float64 {
	switch {
	case !rainAlert:
		return 0
	case m > cal.CriticalSaturation:
		return 0.3
	default:
		return 0.15
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
