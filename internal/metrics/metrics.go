// Package metrics exposes pipeline, cache and store counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the talkie collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration   *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	Runs            *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	CacheEvictions  prometheus.Counter
	StoreRecoveries prometheus.Counter
	StoreFailures   prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "talkie_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"stage"}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "talkie_stage_errors_total",
			Help: "Pipeline stage failures",
		}, []string{"stage"}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "talkie_runs_total",
			Help: "Completed voice exchanges by outcome",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "talkie_run_duration_seconds",
			Help:    "Duration of voice exchanges from recording start",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "talkie_audio_cache_evictions_total",
			Help: "Audio cache entries evicted",
		}),
		StoreRecoveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "talkie_store_quota_recoveries_total",
			Help: "Writes that succeeded after shrinking the audio cache",
		}),
		StoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "talkie_store_failures_total",
			Help: "Writes that could not be persisted",
		}),
	}
}

// ObserveStage records one stage timing.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

// ObserveRun records a finished exchange.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) Evicted(n int) {
	m.CacheEvictions.Add(float64(n))
}

func (m *Metrics) Recovered() {
	m.StoreRecoveries.Inc()
}

func (m *Metrics) StoreFailed(error) {
	m.StoreFailures.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
