package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
)

// Notifier pushes a rendered alert message to operators.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Deduper decides whether an alert should be pushed or is still cooling down.
// A claim taken by ShouldNotify is handed back with Release when the
// notification could not be delivered.
type Deduper interface {
	ShouldNotify(ctx context.Context, alert domain.Alert) (bool, error)
	Release(ctx context.Context, alert domain.Alert) error
}

// AlertDispatcher is a BatchLoader that notifies operators about HIGH and
// CRITICAL alerts. Notification problems are logged and never fail the batch.
type AlertDispatcher struct {
	notifier Notifier
	deduper  Deduper
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAlertDispatcher creates a dispatcher. A nil deduper notifies every alert.
func NewAlertDispatcher(notifier Notifier, deduper Deduper, logger *slog.Logger, metrics *observability.Metrics) *AlertDispatcher {
	return &AlertDispatcher{
		notifier: notifier,
		deduper:  deduper,
		logger:   logger,
		metrics:  metrics,
	}
}

// LoadBatch sends notifications for every measurement carrying one.
func (d *AlertDispatcher) LoadBatch(ctx context.Context, measurements []domain.Measurement) error {
	for i := range measurements {
		m := &measurements[i]
		if m.Alert == nil || m.Notification == "" {
			continue
		}
		d.dispatch(ctx, *m.Alert, m.Notification)
	}
	return nil
}

func (d *AlertDispatcher) dispatch(ctx context.Context, alert domain.Alert, message string) {
	claimed := false
	if d.deduper != nil {
		ok, err := d.deduper.ShouldNotify(ctx, alert)
		claimed = ok && err == nil
		if err != nil {
			d.logger.Warn("alert dedup check failed, notifying anyway",
				"alert_id", alert.ID,
				"error", err,
			)
		} else if !ok {
			d.metrics.Notifications.WithLabelValues("suppressed").Inc()
			d.logger.Debug("alert notification suppressed",
				"alert_id", alert.ID,
				"sensor_id", alert.SensorID,
				"alert_type", alert.Type,
			)
			return
		}
	}

	title := fmt.Sprintf("%s: %s", alert.Criticality, alert.Type)
	if err := d.notifier.Notify(ctx, title, message); err != nil {
		d.metrics.Notifications.WithLabelValues("failed").Inc()
		d.logger.Error("alert notification failed",
			"alert_id", alert.ID,
			"sensor_id", alert.SensorID,
			"error", err,
		)
		if claimed {
			d.release(ctx, alert)
		}
		return
	}
	d.metrics.Notifications.WithLabelValues("sent").Inc()
	d.logger.Info("alert notification sent",
		"alert_id", alert.ID,
		"sensor_id", alert.SensorID,
		"alert_type", alert.Type,
		"criticality", alert.Criticality,
	)
}

// release frees the cooldown slot of an undelivered alert so the next one for
// the same sensor and type is not suppressed.
func (d *AlertDispatcher) release(ctx context.Context, alert domain.Alert) {
	if err := d.deduper.Release(ctx, alert); err != nil {
		d.logger.Warn("alert cooldown release failed",
			"alert_id", alert.ID,
			"sensor_id", alert.SensorID,
			"error", err,
		)
	}
}
