package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ingestMetrics tracks ingest progress on a private registry.
type ingestMetrics struct {
	rowsProcessed prometheus.Counter
	rowsSkipped   prometheus.Counter
	rowsFailed    prometheus.Counter
	batchDuration prometheus.Histogram
}

func newIngestMetrics(reg prometheus.Registerer) *ingestMetrics {
	m := &ingestMetrics{
		rowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cinesim_ingest",
			Name:      "rows_processed_total",
			Help:      "Movies saved to the store",
		}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cinesim_ingest",
			Name:      "rows_skipped_total",
			Help:      "Export rows that could not be turned into a movie",
		}),
		rowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cinesim_ingest",
			Name:      "rows_failed_total",
			Help:      "Movies in batches the store rejected",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cinesim_ingest",
			Name:      "batch_duration_seconds",
			Help:      "Batch save duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
	reg.MustRegister(m.rowsProcessed, m.rowsSkipped, m.rowsFailed, m.batchDuration)
	return m
}

// serveMetrics exposes reg on addr until the returned server is shut down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
