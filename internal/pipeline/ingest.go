package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
)

// Ingestor assesses a single reading outside the Kafka loop, as the HTTP API
// does, and hands the result to the same loaders.
type Ingestor struct {
	assessor *Assessor
	loader   BatchLoader
	metrics  *observability.Metrics
}

// NewIngestor creates an Ingestor.
func NewIngestor(assessor *Assessor, loader BatchLoader, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{assessor: assessor, loader: loader, metrics: metrics}
}

// Ingest validates, assesses and loads one reading.
func (in *Ingestor) Ingest(ctx context.Context, t domain.Telemetry) (domain.Measurement, error) {
	if t.Timestamp.IsZero() {
		t.Timestamp = domain.Now()
	}
	t.Timestamp = t.Timestamp.UTC()
	if err := t.Validate(); err != nil {
		return domain.Measurement{}, err
	}

	m, err := in.assessor.Assess(ctx, t)
	if err != nil {
		in.metrics.TransformErrors.Inc()
		return domain.Measurement{}, err
	}
	if err := in.loader.LoadBatch(ctx, []domain.Measurement{m}); err != nil {
		return domain.Measurement{}, fmt.Errorf("load measurement: %w", err)
	}

	in.metrics.MeasurementsProduced.Inc()
	recordOutcome(in.metrics, m)
	return m, nil
}
