package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Metrics holds the rebalancer collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	bikes    prometheus.Counter
	moves    prometheus.Histogram
	duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_runs_total",
			Help: "Rebalance requests by source and outcome",
		}, []string{"source", "outcome"}),
		bikes: f.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_bikes_recommended_total",
			Help: "Bikes across all emitted move recommendations",
		}),
		moves: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rebalancer_moves_per_run",
			Help:    "Move recommendations emitted per run",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rebalancer_allocation_seconds",
			Help:    "Time spent allocating and recording a run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeRun(run *Run, took time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(run.Source, outcomeOK).Inc()
	m.bikes.Add(float64(run.TotalBikes))
	m.moves.Observe(float64(len(run.Moves)))
	m.duration.Observe(took.Seconds())
}

func (m *Metrics) observeError(source string, err error) {
	if m == nil {
		return
	}
	outcome := outcomeFailed
	if errors.Is(err, ErrSchema) {
		outcome = outcomeRejected
	}
	m.runs.WithLabelValues(source, outcome).Inc()
}

// serveMetrics exposes the registry on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv
}
