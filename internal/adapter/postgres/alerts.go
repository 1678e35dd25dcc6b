package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/erowatch-service/internal/domain"
)

const alertColumns = `id, sensor_id, measurement_id, alert_type, criticality, message, context,
	status, created_at, resolved_by, resolved_at, resolution_notes`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateAlert stores a new alert, typically a manual one.
func (s *Store) CreateAlert(ctx context.Context, alert domain.Alert) error {
	if err := insertAlert(ctx, s.db, alert, false); err != nil {
		return err
	}
	s.logger.Info("alert created",
		"alert_id", alert.ID,
		"sensor_id", alert.SensorID,
		"alert_type", alert.Type,
		"criticality", alert.Criticality,
	)
	return nil
}

func insertAlert(ctx context.Context, db execer, a domain.Alert, ignoreDuplicate bool) error {
	alertCtx, err := nullJSON(a.Context)
	if err != nil {
		return fmt.Errorf("encode alert context: %w", err)
	}
	query := `
		INSERT INTO alerts (id, sensor_id, measurement_id, alert_type, criticality, message, context, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if ignoreDuplicate {
		query += ` ON CONFLICT (id) DO NOTHING`
	}
	_, err = db.ExecContext(ctx, query,
		a.ID,
		a.SensorID,
		sql.NullString{String: a.MeasurementID, Valid: a.MeasurementID != ""},
		string(a.Type),
		string(a.Criticality),
		a.Message,
		alertCtx,
		string(a.Status),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return nil
}

// GetAlert returns one alert or domain.ErrAlertNotFound.
func (s *Store) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("query alert %s: %w", id, err)
	}
	return a, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (s *Store) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	query, args := buildAlertQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

func buildAlertQuery(f domain.AlertFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if f.SensorID != "" {
		args = append(args, f.SensorID)
		where = append(where, "sensor_id = $"+strconv.Itoa(len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = domain.DefaultAlertLimit
	}
	args = append(args, limit)

	var b strings.Builder
	b.WriteString("SELECT " + alertColumns + " FROM alerts")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)))
	return b.String(), args
}

// ResolveAlert closes an active alert as handled.
func (s *Store) ResolveAlert(ctx context.Context, id, by, notes string) (domain.Alert, error) {
	return s.closeAlert(ctx, id, func(a *domain.Alert) error {
		return a.Resolve(by, notes, domain.Now())
	})
}

// IgnoreAlert closes an active alert as not actionable.
func (s *Store) IgnoreAlert(ctx context.Context, id, by, notes string) (domain.Alert, error) {
	return s.closeAlert(ctx, id, func(a *domain.Alert) error {
		return a.Ignore(by, notes, domain.Now())
	})
}

// closeAlert locks the row so concurrent transitions cannot both succeed.
func (s *Store) closeAlert(ctx context.Context, id string, transition func(*domain.Alert) error) (domain.Alert, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("query alert %s: %w", id, err)
	}

	if err := transition(&a); err != nil {
		return domain.Alert{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE alerts
		SET status = $2, resolved_by = $3, resolved_at = $4, resolution_notes = $5
		WHERE id = $1
	`, a.ID, string(a.Status), a.ResolvedBy, a.ResolvedAt, a.ResolutionNotes)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("update alert %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Alert{}, fmt.Errorf("commit alert %s: %w", id, err)
	}

	s.logger.Info("alert closed", "alert_id", a.ID, "status", a.Status, "by", a.ResolvedBy)
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (domain.Alert, error) {
	var (
		a             domain.Alert
		measurementID sql.NullString
		alertType     string
		criticality   string
		status        string
		alertCtx      []byte
		resolvedBy    sql.NullString
		resolvedAt    sql.NullTime
		notes         sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.SensorID, &measurementID, &alertType, &criticality, &a.Message, &alertCtx,
		&status, &a.CreatedAt, &resolvedBy, &resolvedAt, &notes,
	); err != nil {
		return domain.Alert{}, err
	}

	a.MeasurementID = measurementID.String
	a.Type = domain.AlertType(alertType)
	a.Criticality = domain.RiskLevel(criticality)
	a.Status = domain.AlertStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.ResolvedBy = resolvedBy.String
	a.ResolutionNotes = notes.String
	if resolvedAt.Valid {
		at := resolvedAt.Time.UTC()
		a.ResolvedAt = &at
	}
	if len(alertCtx) > 0 {
		a.Context = &domain.AlertContext{}
		if err := json.Unmarshal(alertCtx, a.Context); err != nil {
			return domain.Alert{}, fmt.Errorf("decode alert context: %w", err)
		}
	}
	return a, nil
}
