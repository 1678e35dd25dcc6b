package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAlertQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    domain.AlertFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:     "no filter",
			filter:   domain.AlertFilter{},
			wantArgs: []any{domain.DefaultAlertLimit},
		},
		{
			name:      "status only",
			filter:    domain.AlertFilter{Status: domain.AlertActive, Limit: 10},
			wantWhere: " WHERE status = $1 ORDER BY created_at DESC LIMIT $2",
			wantArgs:  []any{"ACTIVE", 10},
		},
		{
			name:      "status and sensor",
			filter:    domain.AlertFilter{Status: domain.AlertResolved, SensorID: "s-1"},
			wantWhere: " WHERE status = $1 AND sensor_id = $2 ORDER BY created_at DESC LIMIT $3",
			wantArgs:  []any{"RESOLVED", "s-1", domain.DefaultAlertLimit},
		},
		{
			name:      "sensor only",
			filter:    domain.AlertFilter{SensorID: "s-9", Limit: -3},
			wantWhere: " WHERE sensor_id = $1 ORDER BY created_at DESC LIMIT $2",
			wantArgs:  []any{"s-9", domain.DefaultAlertLimit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildAlertQuery(tt.filter)
			assert.Contains(t, query, "FROM alerts")
			if tt.wantWhere == "" {
				assert.NotContains(t, query, "WHERE")
				assert.Contains(t, query, "ORDER BY created_at DESC LIMIT $1")
			} else {
				assert.Contains(t, query, tt.wantWhere)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMeasurementArgs(t *testing.T) {
	recorded := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	m := domain.Measurement{
		ID: "0b7c1a64-0000-5000-8000-000000000001",
		Telemetry: domain.Telemetry{
			SensorID:     "s-1",
			SoilMoisture: 72,
			SlopeDegrees: 28,
			RainAlert:    true,
			Timestamp:    recorded,
		},
		Assessment:  domain.RiskAssessment{RiskIndex: 85, Level: domain.RiskCritical},
		Erosion:     domain.ErosionEstimate{Rate: 0, Level: domain.RiskLow},
		Level:       domain.RiskCritical,
		ProcessedAt: recorded.Add(time.Second),
	}

	args, err := measurementArgs(m)
	require.NoError(t, err)
	require.Len(t, args, 19)

	assert.Equal(t, m.ID, args[0])
	assert.Equal(t, "s-1", args[1])
	assert.Equal(t, recorded, args[2])
	assert.Equal(t, true, args[8])
	assert.Equal(t, "CRITICAL", args[10])
	assert.Equal(t, "CRITICAL", args[11])
	assert.Equal(t, "LOW", args[13])

	var assessment domain.RiskAssessment
	require.NoError(t, json.Unmarshal([]byte(args[15].(string)), &assessment))
	assert.Equal(t, domain.RiskCritical, assessment.Level)

	assert.Equal(t, sql.NullString{}, args[17], "missing forecast is stored as NULL")
}

func TestNullJSON(t *testing.T) {
	v, err := nullJSON[domain.ForecastSummary](nil)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	v, err = nullJSON(&domain.ForecastSummary{RainNext24hMM: 35, HeavyRain: true})
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.JSONEq(t, `{"rain_next_24h_mm":35,"rain_next_3h_mm":0,"heavy_rain":true}`, v.String)
}

func TestNullFloatRoundTrip(t *testing.T) {
	assert.Nil(t, floatPtr(nullFloat(nil)))

	x := 42.5
	got := floatPtr(nullFloat(&x))
	require.NotNil(t, got)
	assert.InDelta(t, 42.5, *got, 0)
}

// fakeRow replays fixed column values into Scan destinations.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *sql.NullString:
			if r.values[i] != nil {
				*p = sql.NullString{String: r.values[i].(string), Valid: true}
			}
		case *sql.NullTime:
			if r.values[i] != nil {
				*p = sql.NullTime{Time: r.values[i].(time.Time), Valid: true}
			}
		default:
			return errors.New("unexpected scan destination")
		}
	}
	return nil
}

func TestScanAlert(t *testing.T) {
	created := time.Date(2026, 3, 14, 6, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	resolved := created.Add(time.Hour)

	row := fakeRow{values: []any{
		"a-1", "s-1", "m-1", "STEEP_SLOPE", "HIGH", "Steep slope",
		[]byte(`{"moisture_pct":60,"slope_degrees":40,"risk_index":55.67,"rain_alert":false,"soil_type":"LOAM",` +
			`"critical_saturation":55,"total_saturation":80,"critical_friction_angle":30,"cohesion_coefficient":0.15}`),
		"RESOLVED", created, "ops", resolved, "drain cleared",
	}}

	a, err := scanAlert(row)
	require.NoError(t, err)

	assert.Equal(t, "m-1", a.MeasurementID)
	assert.Equal(t, domain.AlertSteepSlope, a.Type)
	assert.Equal(t, domain.RiskHigh, a.Criticality)
	assert.Equal(t, domain.AlertResolved, a.Status)
	assert.Equal(t, time.UTC, a.CreatedAt.Location())
	require.NotNil(t, a.ResolvedAt)
	assert.True(t, resolved.Equal(*a.ResolvedAt))
	assert.Equal(t, "drain cleared", a.ResolutionNotes)
	require.NotNil(t, a.Context)
	assert.Equal(t, "LOAM", a.Context.SoilType)
}

func TestScanAlert_ManualWithoutContext(t *testing.T) {
	row := fakeRow{values: []any{
		"a-2", "s-1", nil, "MANUAL", "MEDIUM", "Crack seen on the road cut",
		nil, "ACTIVE", time.Now().UTC(), nil, nil, nil,
	}}

	a, err := scanAlert(row)
	require.NoError(t, err)
	assert.Empty(t, a.MeasurementID)
	assert.Nil(t, a.Context)
	assert.Nil(t, a.ResolvedAt)
	assert.Equal(t, domain.AlertActive, a.Status)
}

func TestScanAlert_PropagatesErrNoRows(t *testing.T) {
	_, err := scanAlert(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
