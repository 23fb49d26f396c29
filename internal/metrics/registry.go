package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds all domain-specific metrics for the application
type Registry struct {
	meter metric.Meter

	// Scoring pipeline metrics
	ScoringDuration    metric.Float64Histogram
	TransactionsScored metric.Int64Counter
	FraudScore         metric.Float64Histogram
	ModelScoreTimeouts metric.Int64Counter
	PipelineFailures   metric.Int64Counter

	// Alert metrics
	AlertsCreated  metric.Int64Counter
	AccountsLocked metric.Int64Counter

	// Behavior aggregation metrics
	ProfileUpdates       metric.Int64Counter
	ProfileUpdateFailures metric.Int64Counter
	BehaviorQueueDepth   metric.Int64ObservableGauge

	// System metrics
	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter

	mu         sync.RWMutex
	queueDepth int64
}

// NewRegistry creates a new metrics registry with all domain metrics
func NewRegistry(meterName string) (*Registry, error) {
	meter := otel.Meter(meterName)
	r := &Registry{meter: meter}

	var err error

	r.ScoringDuration, err = meter.Float64Histogram(
		"fds.fraud.scoring_duration",
		metric.WithDescription("End-to-end fraud scoring duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	r.TransactionsScored, err = meter.Int64Counter(
		"fds.fraud.transactions_scored_total",
		metric.WithDescription("Total transactions scored, by terminal status"),
	)
	if err != nil {
		return nil, err
	}

	r.FraudScore, err = meter.Float64Histogram(
		"fds.fraud.score",
		metric.WithDescription("Distribution of combined fraud scores"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9),
	)
	if err != nil {
		return nil, err
	}

	r.ModelScoreTimeouts, err = meter.Int64Counter(
		"fds.fraud.model_timeouts_total",
		metric.WithDescription("Model scorings abandoned for exceeding the soft budget"),
	)
	if err != nil {
		return nil, err
	}

	r.PipelineFailures, err = meter.Int64Counter(
		"fds.fraud.pipeline_failures_total",
		metric.WithDescription("Scoring pipelines that fell back to the error decision"),
	)
	if err != nil {
		return nil, err
	}

	r.AlertsCreated, err = meter.Int64Counter(
		"fds.alert.created_total",
		metric.WithDescription("Fraud alerts created, by severity"),
	)
	if err != nil {
		return nil, err
	}

	r.AccountsLocked, err = meter.Int64Counter(
		"fds.alert.accounts_locked_total",
		metric.WithDescription("Accounts locked on critical post-transaction fraud"),
	)
	if err != nil {
		return nil, err
	}

	r.ProfileUpdates, err = meter.Int64Counter(
		"fds.behavior.profile_updates_total",
		metric.WithDescription("Behavior profile aggregations completed"),
	)
	if err != nil {
		return nil, err
	}

	r.ProfileUpdateFailures, err = meter.Int64Counter(
		"fds.behavior.profile_update_failures_total",
		metric.WithDescription("Behavior profile aggregations that failed"),
	)
	if err != nil {
		return nil, err
	}

	r.BehaviorQueueDepth, err = meter.Int64ObservableGauge(
		"fds.behavior.queue_depth",
		metric.WithDescription("Current depth of the behavior update queue"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.queueDepth)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	r.APIRequestDuration, err = meter.Float64Histogram(
		"fds.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	r.APIRequestCounter, err = meter.Int64Counter(
		"fds.api.request_total",
		metric.WithDescription("Total number of API requests"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// SetBehaviorQueueDepth updates the observed queue depth
func (r *Registry) SetBehaviorQueueDepth(depth int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queueDepth = depth
}

// RecordScoring records one completed scoring pipeline
func (r *Registry) RecordScoring(ctx context.Context, durationMS, fraudScore float64, status, method string) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
		attribute.String("method", method),
	}

	r.ScoringDuration.Record(ctx, durationMS, metric.WithAttributes(attrs...))
	r.FraudScore.Record(ctx, fraudScore, metric.WithAttributes(attrs...))
	r.TransactionsScored.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAlert records a created fraud alert
func (r *Registry) RecordAlert(ctx context.Context, severity string) {
	r.AlertsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", severity),
	))
}

// RecordAPIRequest records API request metrics
func (r *Registry) RecordAPIRequest(ctx context.Context, duration float64, method, path string, statusCode int) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	r.APIRequestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	r.APIRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
