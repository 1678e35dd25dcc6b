package domain

// Forecast thresholds for climate escalation, in mm over the next 24 h.
const (
	escalateMediumRainMM = 40.0
	wetSoilRainMM        = 20.0
	wetSoilMoisturePct   = 60.0
)

// CombineClimateRisk folds the 24 h forecast into the soil risk level. The
// result is never less severe than soilLevel. A nil forecast leaves it as is.
func CombineClimateRisk(soilLevel RiskLevel, moisture float64, forecast *ForecastSnapshot) RiskLevel {
	if forecast == nil {
		return soilLevel
	}
	switch {
	case soilLevel == RiskHigh && forecast.HeavyRain:
		return RiskCritical
	case soilLevel == RiskMedium && forecast.RainNext24hMM > escalateMediumRainMM:
		return RiskHigh
	case moisture > wetSoilMoisturePct && forecast.RainNext24hMM > wetSoilRainMM:
		return MaxRiskLevel(soilLevel, RiskHigh)
	}
	return soilLevel
}
