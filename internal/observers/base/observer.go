// Package base provides the pieces every observer needs: counters and
// health via BaseObserver, a consumer-facing channel via
// EventChannelManager, goroutine shutdown via LifecycleManager, and the
// per-CPU lossy RingBuffer the capability pipeline emits into.
package base

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yairfalse/capio/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// BaseObserver provides common statistics and health tracking for observers.
// Embed this in your observer to get Statistics() and Health() methods.
type BaseObserver struct {
	name      string
	startTime time.Time

	// Statistics tracking (atomic for thread safety)
	eventsProcessed atomic.Int64
	eventsDropped   atomic.Int64
	lostSamples     atomic.Int64
	errorCount      atomic.Int64

	lastEventTime atomic.Value // stores time.Time
	lastError     atomic.Value // stores error

	isHealthy          atomic.Bool
	healthCheckTimeout time.Duration
	errorRateThreshold float64

	// OTEL instrumentation
	tracer trace.Tracer
	meter  metric.Meter

	eventsProcessedCounter metric.Int64Counter
	eventsDroppedCounter   metric.Int64Counter
	lostSamplesCounter     metric.Int64Counter
	errorCounter           metric.Int64Counter
	processingDuration     metric.Float64Histogram
	healthStatus           metric.Int64Gauge
}

// NewBaseObserver creates a new base observer with the given name.
// healthCheckTimeout determines how long without events before marking degraded.
func NewBaseObserver(name string, healthCheckTimeout time.Duration) *BaseObserver {
	bc := &BaseObserver{
		name:               name,
		startTime:          time.Now(),
		healthCheckTimeout: healthCheckTimeout,
		errorRateThreshold: 0.1,
		tracer:             otel.Tracer(name),
		meter:              otel.Meter(name),
	}
	bc.isHealthy.Store(true)
	bc.lastEventTime.Store(time.Now())
	bc.initializeMetrics()
	return bc
}

// initializeMetrics registers the standard OTEL metrics. Metrics are
// optional; a nil instrument is skipped at record time.
func (bc *BaseObserver) initializeMetrics() {
	var err error

	bc.eventsProcessedCounter, err = bc.meter.Int64Counter(
		fmt.Sprintf("%s_events_processed_total", bc.name),
		metric.WithDescription("Total events processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		bc.eventsProcessedCounter = nil
	}

	bc.eventsDroppedCounter, err = bc.meter.Int64Counter(
		fmt.Sprintf("%s_events_dropped_total", bc.name),
		metric.WithDescription("Total events dropped"),
		metric.WithUnit("1"),
	)
	if err != nil {
		bc.eventsDroppedCounter = nil
	}

	bc.lostSamplesCounter, err = bc.meter.Int64Counter(
		fmt.Sprintf("%s_lost_samples_total", bc.name),
		metric.WithDescription("Samples lost in the kernel before user space read them"),
		metric.WithUnit("1"),
	)
	if err != nil {
		bc.lostSamplesCounter = nil
	}

	bc.errorCounter, err = bc.meter.Int64Counter(
		fmt.Sprintf("%s_errors_total", bc.name),
		metric.WithDescription("Total errors encountered"),
		metric.WithUnit("1"),
	)
	if err != nil {
		bc.errorCounter = nil
	}

	bc.processingDuration, err = bc.meter.Float64Histogram(
		fmt.Sprintf("%s_processing_duration_seconds", bc.name),
		metric.WithDescription("Event processing duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	if err != nil {
		bc.processingDuration = nil
	}

	bc.healthStatus, err = bc.meter.Int64Gauge(
		fmt.Sprintf("%s_health_status", bc.name),
		metric.WithDescription("Health status (0=unhealthy, 1=degraded, 2=healthy)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		bc.healthStatus = nil
	}
}

// RecordEvent should be called when an event is successfully processed
func (bc *BaseObserver) RecordEvent() {
	bc.eventsProcessed.Add(1)
	bc.lastEventTime.Store(time.Now())

	if bc.eventsProcessedCounter != nil {
		bc.eventsProcessedCounter.Add(context.Background(), 1)
	}
}

// RecordError should be called when an error occurs
func (bc *BaseObserver) RecordError(err error) {
	bc.errorCount.Add(1)
	if err != nil {
		bc.lastError.Store(err)
	}

	if bc.errorCounter != nil {
		attrs := []attribute.KeyValue{}
		if err != nil {
			attrs = append(attrs, attribute.String("error_type", fmt.Sprintf("%T", err)))
		}
		bc.errorCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	}
}

// RecordDrop should be called when an event is dropped
func (bc *BaseObserver) RecordDrop() {
	bc.eventsDropped.Add(1)

	if bc.eventsDroppedCounter != nil {
		bc.eventsDroppedCounter.Add(context.Background(), 1)
	}
}

// RecordDropWithReason records a dropped event with a reason attribute
func (bc *BaseObserver) RecordDropWithReason(ctx context.Context, reason string) {
	bc.eventsDropped.Add(1)

	if bc.eventsDroppedCounter != nil {
		bc.eventsDroppedCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordLostSamples accounts for samples the kernel dropped because the
// perf buffer was full. These never reached user space.
func (bc *BaseObserver) RecordLostSamples(ctx context.Context, cpu int, count uint64) {
	bc.lostSamples.Add(int64(count))

	if bc.lostSamplesCounter != nil {
		bc.lostSamplesCounter.Add(ctx, int64(count),
			metric.WithAttributes(attribute.Int("cpu", cpu)))
	}
}

// RecordProcessingDuration records the time taken to process an event
func (bc *BaseObserver) RecordProcessingDuration(ctx context.Context, duration time.Duration) {
	if bc.processingDuration != nil {
		bc.processingDuration.Record(ctx, duration.Seconds())
	}
}

// StartSpan starts a new span for event processing
func (bc *BaseObserver) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return bc.tracer.Start(ctx, spanName, opts...)
}

// GetTracer returns the tracer for custom instrumentation
func (bc *BaseObserver) GetTracer() trace.Tracer {
	return bc.tracer
}

// GetMeter returns the meter for custom metrics
func (bc *BaseObserver) GetMeter() metric.Meter {
	return bc.meter
}

// SetHealthy sets the observer health status
func (bc *BaseObserver) SetHealthy(healthy bool) {
	bc.isHealthy.Store(healthy)
}

// IsHealthy returns true if the observer is healthy
func (bc *BaseObserver) IsHealthy() bool {
	return bc.isHealthy.Load()
}

// Statistics returns a snapshot of the observer counters
func (bc *BaseObserver) Statistics() *domain.ObserverStats {
	lastEventTime := time.Time{}
	if t, ok := bc.lastEventTime.Load().(time.Time); ok {
		lastEventTime = t
	}

	return &domain.ObserverStats{
		EventsProcessed: bc.eventsProcessed.Load(),
		EventsDropped:   bc.eventsDropped.Load(),
		LostSamples:     bc.lostSamples.Load(),
		ErrorCount:      bc.errorCount.Load(),
		LastEventTime:   lastEventTime,
		Uptime:          time.Since(bc.startTime),
		CustomMetrics:   make(map[string]string),
	}
}

// Health returns detailed health information
func (bc *BaseObserver) Health() *domain.HealthStatus {
	if !bc.isHealthy.Load() {
		var lastErr error
		if e := bc.lastError.Load(); e != nil {
			lastErr = e.(error)
		}
		return domain.NewUnhealthyStatus(
			fmt.Sprintf("%s observer is unhealthy", bc.name),
			lastErr,
		)
	}

	// Check if we're receiving events (only if we've processed at least one)
	if bc.eventsProcessed.Load() > 0 && bc.healthCheckTimeout > 0 {
		lastEventTime := time.Time{}
		if t, ok := bc.lastEventTime.Load().(time.Time); ok {
			lastEventTime = t
		}

		timeSinceLastEvent := time.Since(lastEventTime)
		if timeSinceLastEvent > bc.healthCheckTimeout {
			return domain.NewHealthStatus(
				domain.HealthDegraded,
				fmt.Sprintf("no events received for %v", timeSinceLastEvent),
			)
		}
	}

	errorRate := float64(0)
	if processed := bc.eventsProcessed.Load(); processed > 0 {
		errorRate = float64(bc.errorCount.Load()) / float64(processed)
	}

	if errorRate > bc.errorRateThreshold {
		if bc.healthStatus != nil {
			bc.healthStatus.Record(context.Background(), 1,
				metric.WithAttributes(attribute.String("reason", "high_error_rate")))
		}
		return domain.NewHealthStatus(
			domain.HealthDegraded,
			fmt.Sprintf("high error rate: %.1f%% (threshold: %.1f%%)",
				errorRate*100, bc.errorRateThreshold*100),
		)
	}

	if bc.healthStatus != nil {
		bc.healthStatus.Record(context.Background(), 2)
	}

	return domain.NewHealthyStatus(fmt.Sprintf("%s observer operating normally", bc.name))
}

// GetName returns the observer name
func (bc *BaseObserver) GetName() string {
	return bc.name
}

// GetUptime returns how long the observer has been running
func (bc *BaseObserver) GetUptime() time.Duration {
	return time.Since(bc.startTime)
}

// GetEventCount returns the total number of events processed
func (bc *BaseObserver) GetEventCount() int64 {
	return bc.eventsProcessed.Load()
}

// GetErrorCount returns the total number of errors
func (bc *BaseObserver) GetErrorCount() int64 {
	return bc.errorCount.Load()
}

// GetDroppedCount returns the total number of dropped events
func (bc *BaseObserver) GetDroppedCount() int64 {
	return bc.eventsDropped.Load()
}

// GetLostSampleCount returns the total number of kernel-side lost samples
func (bc *BaseObserver) GetLostSampleCount() int64 {
	return bc.lostSamples.Load()
}
