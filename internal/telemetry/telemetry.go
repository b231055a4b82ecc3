// Package telemetry exposes Prometheus metrics for watch-mode runs.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/qfleet/qfleet/internal/models"
)

const shutdownTimeout = 5 * time.Second

// Metrics instruments collection passes. Each instance carries its own
// registry so tests never collide on global state.
type Metrics struct {
	registry *prometheus.Registry

	collectionDuration *prometheus.HistogramVec
	clusterReachable   *prometheus.GaugeVec
	collectionFailures *prometheus.CounterVec
	nodesOnline        *prometheus.GaugeVec
	capacityUsedBytes  *prometheus.GaugeVec
	capacityTotalBytes *prometheus.GaugeVec
	alertsActive       *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		collectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "qfleet",
				Name:      "collection_duration_seconds",
				Help:      "Wall-clock time spent collecting one cluster",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"profile"},
		),
		clusterReachable: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "qfleet",
				Name:      "cluster_reachable",
				Help:      "1 when the last collection pass reached the cluster, 0 otherwise",
			},
			[]string{"profile"},
		),
		collectionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qfleet",
				Name:      "collection_failures_total",
				Help:      "Total failed collection attempts per cluster",
			},
			[]string{"profile"},
		),
		nodesOnline: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "qfleet",
				Name:      "nodes_online",
				Help:      "Online node count from the last collection pass",
			},
			[]string{"profile"},
		),
		capacityUsedBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "qfleet",
				Name:      "capacity_used_bytes",
				Help:      "Used filesystem capacity in bytes",
			},
			[]string{"profile"},
		),
		capacityTotalBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "qfleet",
				Name:      "capacity_total_bytes",
				Help:      "Total filesystem capacity in bytes",
			},
			[]string{"profile"},
		),
		alertsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "qfleet",
				Name:      "alerts_active",
				Help:      "Active alerts by severity after the last collection pass",
			},
			[]string{"severity"},
		),
	}

	m.registry.MustRegister(
		m.collectionDuration,
		m.clusterReachable,
		m.collectionFailures,
		m.nodesOnline,
		m.capacityUsedBytes,
		m.capacityTotalBytes,
		m.alertsActive,
	)
	return m
}

// Observe records one completed collection pass.
func (m *Metrics) Observe(results []models.ClusterResult, alerts []models.Alert) {
	for _, result := range results {
		if result.Reachable() {
			m.clusterReachable.WithLabelValues(result.Profile).Set(1)
			m.collectionDuration.WithLabelValues(result.Profile).Observe(result.Latency.Seconds())
		} else {
			m.clusterReachable.WithLabelValues(result.Profile).Set(0)
			m.collectionFailures.WithLabelValues(result.Profile).Inc()
		}

		if result.Snapshot == nil {
			continue
		}
		m.nodesOnline.WithLabelValues(result.Profile).Set(float64(result.Snapshot.OnlineNodes()))
		if result.Snapshot.Capacity != nil {
			m.capacityUsedBytes.WithLabelValues(result.Profile).Set(float64(result.Snapshot.Capacity.UsedBytes))
			m.capacityTotalBytes.WithLabelValues(result.Profile).Set(float64(result.Snapshot.Capacity.TotalBytes))
		}
	}

	counts := map[models.Severity]int{}
	for _, alert := range alerts {
		counts[alert.Severity]++
	}
	m.alertsActive.WithLabelValues(string(models.SeverityCritical)).Set(float64(counts[models.SeverityCritical]))
	m.alertsActive.WithLabelValues(string(models.SeverityWarning)).Set(float64(counts[models.SeverityWarning]))
}

// Handler exposes the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint until ctx is cancelled. Startup failures
// are logged, not fatal; a broken exporter must not take the watch loop down.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("Failed to shut down metrics server cleanly")
		}
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("Metrics server stopped unexpectedly")
		}
	}()
}
