package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/erowatch-service/internal/domain"
	"github.com/couchcryptid/erowatch-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer assesses a raw telemetry event.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Measurement, error)
}

// BatchLoader writes assessed measurements to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, measurements []domain.Measurement) error
}

// Retry delays after a failed extract or load.
const (
	minRetryDelay = 200 * time.Millisecond
	maxRetryDelay = 5 * time.Second
)

// Pipeline pulls telemetry batches, assesses every reading and hands the
// results to the loader. Offsets of a batch are committed only once the whole
// batch is handled; a failed batch is retried as is.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int

	// pending is the batch being retried. Only Run touches it.
	pending []domain.RawEvent
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once an extract from the telemetry topic has
// succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not reached the telemetry topic yet")
	}
	return nil
}

// Run executes the assessment loop until the context is cancelled. It only
// returns nil; failures are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	retry := retryDelay{next: minRetryDelay}
	for ctx.Err() == nil {
		if err := p.runBatch(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("batch failed, retrying", "error", err, "delay", retry.next)
			if !retry.wait(ctx) {
				break
			}
			continue
		}
		retry.reset()
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// runBatch runs one extract-assess-load cycle. A batch left pending by a
// failed cycle is retried before anything new is fetched.
func (p *Pipeline) runBatch(ctx context.Context) error {
	start := time.Now()

	batch := p.pending
	if batch == nil {
		var err error
		batch, err = p.extractor.ExtractBatch(ctx, p.batchSize)
		if err != nil {
			return err
		}
		p.ready.Store(true)
		if len(batch) == 0 {
			return nil
		}
		p.metrics.MessagesConsumed.Add(float64(len(batch)))
		p.metrics.BatchSize.Observe(float64(len(batch)))
	}

	measurements, err := p.assessBatch(ctx, batch)
	if err != nil {
		p.pending = batch
		return err
	}
	if len(measurements) > 0 {
		if err := p.loader.LoadBatch(ctx, measurements); err != nil {
			p.pending = batch
			return fmt.Errorf("load batch: %w", err)
		}
	}
	p.pending = nil

	p.metrics.MeasurementsProduced.Add(float64(len(measurements)))
	for _, m := range measurements {
		recordOutcome(p.metrics, m)
	}
	for _, raw := range batch {
		p.commit(ctx, raw)
	}
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	return nil
}

// assessBatch assesses every message. Readings that can never be assessed
// are logged and dropped; any other failure aborts the batch.
func (p *Pipeline) assessBatch(ctx context.Context, batch []domain.RawEvent) ([]domain.Measurement, error) {
	measurements := make([]domain.Measurement, 0, len(batch))
	for _, raw := range batch {
		m, err := p.transformer.Transform(ctx, raw)
		if err == nil {
			measurements = append(measurements, m)
			continue
		}
		if !rejected(err) {
			return nil, fmt.Errorf("assess message at offset %d: %w", raw.Offset, err)
		}
		p.logger.Warn("assessment failed, skipping message", "error", err, "message", raw)
		p.metrics.TransformErrors.Inc()
	}
	return measurements, nil
}

// rejected reports whether err is a property of the reading itself, so
// retrying it cannot succeed.
func rejected(err error) bool {
	return errors.Is(err, domain.ErrInvalidTelemetry) ||
		errors.Is(err, domain.ErrSensorNotFound) ||
		errors.Is(err, domain.ErrSensorInactive)
}

func recordOutcome(metrics *observability.Metrics, m domain.Measurement) {
	metrics.RiskLevels.WithLabelValues(string(m.Level)).Inc()
	if m.Alert != nil {
		metrics.AlertsRaised.WithLabelValues(string(m.Alert.Type), string(m.Alert.Criticality)).Inc()
	}
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err, "message", raw)
	}
}

// retryDelay doubles from minRetryDelay up to maxRetryDelay.
type retryDelay struct {
	next time.Duration
}

func (r *retryDelay) reset() { r.next = minRetryDelay }

// wait sleeps for the current delay and doubles it. It returns false when
// ctx ends first.
func (r *retryDelay) wait(ctx context.Context) bool {
	timer := time.NewTimer(r.next)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	r.next = min(r.next*2, maxRetryDelay)
	return true
}
