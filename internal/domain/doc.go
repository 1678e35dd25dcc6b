// Package domain models hillside soil telemetry and the risk assessment built
// from it.
//
// # Data Source
//
// Field sensors publish one JSON reading per sample to the Kafka source topic:
// soil moisture (percent), soil and air temperature, air humidity, terrain
// slope in degrees and a rain-detector flag. Sensor metadata (soil type,
// coordinates, optional calibration overrides) lives in Postgres and is looked
// up per reading.
//
// # Soil Calibration
//
// Every soil type carries four parameters:
//
//	critical_saturation     Tc   moisture (%) where pore pressure starts to build
//	total_saturation        Tt   moisture (%) at which the soil is saturated
//	critical_friction_angle φ    slope (°) beyond which the soil cannot hold
//	cohesion_coefficient    c    cohesion lost per unit of excess moisture
//
// Sensors without a known soil type fall back to Tc=60, Tt=85, φ=32, c=0.1.
// Overrides on the sensor win field by field and are discarded when the
// merged values break Tc < Tt or φ in (0, 90].
//
// # Landslide Risk Index
//
// The index is a weighted blend of four factors in [0, 1], scaled to 0–100:
//
//	0.35 saturation + 0.35 slope + 0.20 saturation×slope×cohesion + 0.10 rain
//
// Tiers: <30 LOW | <55 MEDIUM | <75 HIGH | ≥75 CRITICAL. A rain alert on soil
// above Tc forces CRITICAL and lifts the index to at least 85.
//
// # Erosion Rate
//
// Soil loss is estimated with RUSLE, A = R·K·L·S·C·P in t/ha/year, using the
// 24 h rain forecast for R and the Wischmeier–Smith steepness polynomial for S.
// Tiers: <5 LOW | <10 MEDIUM | <20 HIGH | ≥20 CRITICAL.
//
// # Climate Escalation
//
// The 24 h forecast can raise the soil level by one step, never lower it:
//
//	HIGH   + heavy rain (>30 mm)      → CRITICAL
//	MEDIUM + rain > 40 mm             → HIGH
//	moisture > 60% and rain > 20 mm   → at least HIGH
//
// # ID Generation
//
// Measurement IDs are UUIDv5 hashes of sensor|timestamp, and alert IDs hash
// the measurement ID with the alert type. Replays of the same reading upsert
// onto the same rows (ON CONFLICT DO NOTHING). See [MeasurementID].
package domain
