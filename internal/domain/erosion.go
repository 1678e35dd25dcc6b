package domain

import "math"

// RUSLE constants for the simplified soil loss model.
const (
	maxRainfallErosivity = 2.0
	baseErodibility      = 1.0
	moistureErodibility  = 0.5
)

// ErosionFactors are the six RUSLE multipliers, rounded to two decimals.
type ErosionFactors struct {
	R float64 `json:"R"`
	K float64 `json:"K"`
	L float64 `json:"L"`
	S float64 `json:"S"`
	C float64 `json:"C"`
	P float64 `json:"P"`
}

// ErosionDetails echoes the inputs behind an estimate.
type ErosionDetails struct {
	RainMM       float64 `json:"rain_mm"`
	MoisturePct  float64 `json:"moisture_pct"`
	SlopeDegrees float64 `json:"slope_degrees"`
	SlopePercent float64 `json:"slope_percent"`
}

// ErosionEstimate is the annual soil loss predicted for a reading.
type ErosionEstimate struct {
	Rate    float64        `json:"annual_rate_t_per_ha"`
	Level   RiskLevel      `json:"risk_level"`
	Factors ErosionFactors `json:"factors"`
	Details ErosionDetails `json:"details"`
}

// EstimateErosion computes A = R·K·L·S·C·P. A nil forecast means no
// expected rain, so R and the rate are zero.
func EstimateErosion(t Telemetry, forecast *ForecastSnapshot) ErosionEstimate {
	var rain float64
	if forecast != nil {
		rain = forecast.RainNext24hMM
	}

	r := math.Min(rain/10, maxRainfallErosivity)
	k := baseErodibility + t.SoilMoisture/100*moistureErodibility
	l := 1.0
	slopePct := math.Tan(t.SlopeDegrees*math.Pi/180) * 100
	s := 0.065 + 0.045*slopePct + 0.0065*slopePct*slopePct
	c, p := 1.0, 1.0

	rate := r * k * l * s * c * p
	return ErosionEstimate{
		Rate:  rate,
		Level: ClassifyErosionRate(rate),
		Factors: ErosionFactors{
			R: round2(r), K: round2(k), L: round2(l),
			S: round2(s), C: round2(c), P: round2(p),
		},
		Details: ErosionDetails{
			RainMM:       rain,
			MoisturePct:  t.SoilMoisture,
			SlopeDegrees: t.SlopeDegrees,
			SlopePercent: round2(slopePct),
		},
	}
}

// ClassifyErosionRate maps t/ha/year to a tier.
func ClassifyErosionRate(rate float64) RiskLevel {
	switch {
	case rate < 5:
		return RiskLow
	case rate < 10:
		return RiskMedium
	case rate < 20:
		return RiskHigh
	default:
		return RiskCritical
	}
}
