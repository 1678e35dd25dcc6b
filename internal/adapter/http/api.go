package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/erowatch-service/internal/domain"
)

const maxBodyBytes = 1 << 20

// Ingester assesses a single reading synchronously.
type Ingester interface {
	Ingest(ctx context.Context, t domain.Telemetry) (domain.Measurement, error)
}

// AlertRepository stores alerts and their lifecycle transitions.
type AlertRepository interface {
	ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error)
	GetAlert(ctx context.Context, id string) (domain.Alert, error)
	CreateAlert(ctx context.Context, alert domain.Alert) error
	ResolveAlert(ctx context.Context, id, by, notes string) (domain.Alert, error)
	IgnoreAlert(ctx context.Context, id, by, notes string) (domain.Alert, error)
}

// SensorRepository reads sensor metadata and records recalibrations.
type SensorRepository interface {
	GetSensor(ctx context.Context, id string) (domain.Sensor, error)
	CalibrateSensor(ctx context.Context, id string, next domain.SensorCalibration, by, reason string) (domain.CalibrationRecord, error)
	ListCalibrations(ctx context.Context, id string, limit int) ([]domain.CalibrationRecord, error)
}

// API serves the assessment endpoint, alert operations and sensor
// calibration under /api/v1.
type API struct {
	ingester Ingester
	alerts   AlertRepository
	sensors  SensorRepository
	logger   *slog.Logger
}

// NewAPI creates the API handlers.
func NewAPI(ingester Ingester, alerts AlertRepository, sensors SensorRepository, logger *slog.Logger) *API {
	return &API{ingester: ingester, alerts: alerts, sensors: sensors, logger: logger}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/assess", a.handleAssess)
	mux.HandleFunc("GET /api/v1/alerts", a.handleListAlerts)
	mux.HandleFunc("POST /api/v1/alerts", a.handleCreateAlert)
	mux.HandleFunc("GET /api/v1/alerts/{id}", a.handleGetAlert)
	mux.HandleFunc("POST /api/v1/alerts/{id}/resolve", a.handleCloseAlert(AlertRepository.ResolveAlert))
	mux.HandleFunc("POST /api/v1/alerts/{id}/ignore", a.handleCloseAlert(AlertRepository.IgnoreAlert))
	mux.HandleFunc("GET /api/v1/sensors/{id}", a.handleGetSensor)
	mux.HandleFunc("POST /api/v1/sensors/{id}/calibrate", a.handleCalibrateSensor)
	mux.HandleFunc("GET /api/v1/sensors/{id}/calibrations", a.handleListCalibrations)
}

func (a *API) handleAssess(w http.ResponseWriter, r *http.Request) {
	var t domain.Telemetry
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m, err := a.ingester.Ingest(r.Context(), t)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleListAlerts lists ACTIVE alerts unless ?status= says otherwise;
// status=all lifts the status filter.
func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AlertFilter{Status: domain.AlertActive, SensorID: q.Get("sensor_id")}

	switch s := q.Get("status"); {
	case s == "":
	case strings.EqualFold(s, "all"):
		filter.Status = ""
	default:
		status, err := domain.ParseAlertStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Status = status
	}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		filter.Limit = limit
	}

	alerts, err := a.alerts.ListAlerts(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := a.alerts.GetAlert(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

type createAlertRequest struct {
	SensorID    string `json:"sensor_id"`
	AlertType   string `json:"alert_type"`
	Criticality string `json:"criticality"`
	Message     string `json:"message"`
}

func (a *API) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var alertType domain.AlertType
	if req.AlertType != "" {
		t, err := domain.ParseAlertType(req.AlertType)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", domain.ErrInvalidAlert, err))
			return
		}
		alertType = t
	}
	var criticality domain.RiskLevel
	if req.Criticality != "" {
		c, err := domain.ParseRiskLevel(req.Criticality)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", domain.ErrInvalidAlert, err))
			return
		}
		criticality = c
	}

	alert, err := domain.NewManualAlert(req.SensorID, alertType, criticality, req.Message)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := a.sensors.GetSensor(r.Context(), alert.SensorID); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.alerts.CreateAlert(r.Context(), alert); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

type closeAlertRequest struct {
	By    string `json:"by"`
	Notes string `json:"notes"`
}

type closeFunc func(repo AlertRepository, ctx context.Context, id, by, notes string) (domain.Alert, error)

func (a *API) handleCloseAlert(closeAlert closeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req closeAlertRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(req.By) == "" {
			writeError(w, http.StatusBadRequest, errors.New("by is required"))
			return
		}

		alert, err := closeAlert(a.alerts, r.Context(), r.PathValue("id"), req.By, req.Notes)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	}
}

func (a *API) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	sensor, err := a.sensors.GetSensor(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

type calibrateRequest struct {
	SoilType              string   `json:"soil_type"`
	CriticalSaturation    *float64 `json:"critical_saturation"`
	TotalSaturation       *float64 `json:"total_saturation"`
	CriticalFrictionAngle *float64 `json:"critical_friction_angle"`
	CohesionCoefficient   *float64 `json:"cohesion_coefficient"`
	Reason                string   `json:"reason"`
	PerformedBy           string   `json:"performed_by"`
}

// handleCalibrateSensor replaces the sensor's soil type and every override.
// Omitted overrides are cleared, so the soil type's values apply again.
func (a *API) handleCalibrateSensor(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.PerformedBy) == "" {
		writeError(w, http.StatusBadRequest, errors.New("performed_by is required"))
		return
	}

	next := domain.SensorCalibration{
		Overrides: domain.CalibrationOverrides{
			CriticalSaturation:    req.CriticalSaturation,
			TotalSaturation:       req.TotalSaturation,
			CriticalFrictionAngle: req.CriticalFrictionAngle,
			CohesionCoefficient:   req.CohesionCoefficient,
		},
	}
	if req.SoilType != "" {
		next.SoilType = domain.ParseSoilType(req.SoilType)
		if next.SoilType == domain.SoilTypeUnknown {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown soil type %q", domain.ErrInvalidCalibration, req.SoilType))
			return
		}
	}
	if err := next.Validate(); err != nil {
		a.fail(w, r, err)
		return
	}

	rec, err := a.sensors.CalibrateSensor(r.Context(), r.PathValue("id"), next, req.PerformedBy, req.Reason)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleListCalibrations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	if _, err := a.sensors.GetSensor(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	records, err := a.sensors.ListCalibrations(r.Context(), id, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calibrations": records, "count": len(records)})
}

// fail maps domain errors to status codes and logs unexpected ones.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, errors.New("internal error"))
		return
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTelemetry), errors.Is(err, domain.ErrInvalidAlert),
		errors.Is(err, domain.ErrInvalidCalibration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSensorNotFound), errors.Is(err, domain.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlertClosed), errors.Is(err, domain.ErrSensorInactive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
