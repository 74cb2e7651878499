// Package telemetry provides Prometheus metrics, OpenTelemetry tracing
// setup, and correlation-id aware logging helpers for the pixel wall.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesSeen   prometheus.Counter
	CommandsParsed prometheus.Counter
	PixelsApplied  prometheus.Counter
	OutOfBounds    prometheus.Counter
	QueueDropped   prometheus.Counter

	// Labeled counters
	CommandsRejected *prometheus.CounterVec // reason: malformed|arity|color_range|other
	UpdatesFailed    *prometheus.CounterVec // stage: load|encode|publish|unknown

	// Histograms (seconds)
	UpdateDuration prometheus.Observer

	// Gauges
	QueueDepthGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "wall_chat_messages_total", Help: "Chat messages received from the transport"})
		CommandsParsed = promauto.NewCounter(prometheus.CounterOpts{Name: "wall_commands_parsed_total", Help: "Chat lines accepted as pixel commands"})
		CommandsRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wall_commands_rejected_total", Help: "Chat lines rejected by the parser"}, []string{"reason"})
		PixelsApplied = promauto.NewCounter(prometheus.CounterOpts{Name: "wall_pixels_applied_total", Help: "Pixel commands applied to the canvas"})
		OutOfBounds = promauto.NewCounter(prometheus.CounterOpts{Name: "wall_out_of_bounds_total", Help: "Pixel commands dropped for out-of-canvas coordinates"})
		UpdatesFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wall_updates_failed_total", Help: "Canvas update cycles that failed"}, []string{"stage"})
		QueueDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "wall_queue_dropped_total", Help: "Messages dropped because the inbound queue was full"})
		UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "wall_update_duration_seconds", Help: "Full load-blend-persist cycle duration seconds", Buckets: prometheus.DefBuckets})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "wall_queue_depth", Help: "Current number of queued chat messages"})
	})
}

// SetQueueDepth records the current inbound queue length.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger carrying the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
