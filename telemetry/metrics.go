// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
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
	PollCycles        prometheus.Counter
	FetchErrors       prometheus.Counter
	MessagesSeen      prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	StaleSkipped      prometheus.Counter
	FreshEmitted      prometheus.Counter

	// Dispatch outcomes, labelled by outcome (invoked, unknown, denied, cooldown, handler_error)
	DispatchOutcomes *prometheus.CounterVec

	// Histograms (seconds)
	FetchDuration prometheus.Observer

	// Gauges
	BacklogSize prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_poll_cycles_total", Help: "Number of chat history poll cycles"})
		FetchErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_fetch_errors_total", Help: "Number of failed or malformed history fetches"})
		MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_seen_total", Help: "Number of snapshot entries examined"})
		DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_duplicates_skipped_total", Help: "Number of entries already present in the backlog"})
		StaleSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_stale_skipped_total", Help: "Number of entries recorded as history but not emitted"})
		FreshEmitted = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_fresh_emitted_total", Help: "Number of fresh-message events emitted"})
		DispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "command_dispatch_outcomes_total", Help: "Command dispatch outcomes"}, []string{"outcome"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_fetch_duration_seconds", Help: "History fetch duration seconds", Buckets: prometheus.DefBuckets})
		BacklogSize = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_backlog_size", Help: "Current number of messages in the dedup backlog"})
	})
}

// CountOutcome increments the dispatch outcome counter, tolerating uninitialized metrics in tests.
func CountOutcome(outcome string) {
	if DispatchOutcomes != nil {
		DispatchOutcomes.WithLabelValues(outcome).Inc()
	}
}

// SetBacklogSize records the current backlog length.
func SetBacklogSize(n int) {
	if BacklogSize != nil {
		BacklogSize.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
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

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
