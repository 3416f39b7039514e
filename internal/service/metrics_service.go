package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the domain counters the
// bidding engine reports into.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	bidsPlaced    prometheus.Counter
	bidsCancelled prometheus.Counter
	bidsAccepted  prometheus.Counter
	bidsRejected  prometheus.Counter
	clearings     prometheus.Counter
	sweepOutcomes *prometheus.CounterVec
}

// NewMetricsService constructs the service and registers all collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		bidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bids_placed_total",
			Help: "Total bids placed.",
		}),
		bidsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bids_cancelled_total",
			Help: "Total bids cancelled by students.",
		}),
		bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bids_accepted_total",
			Help: "Total bids accepted at clearing.",
		}),
		bidsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bids_rejected_total",
			Help: "Total bids rejected at clearing.",
		}),
		clearings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clearings_total",
			Help: "Total clearing runs completed.",
		}),
		sweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_offerings_total",
			Help: "Offerings processed by deadline sweeps, by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		s.httpRequests, s.httpDuration,
		s.bidsPlaced, s.bidsCancelled, s.bidsAccepted, s.bidsRejected,
		s.clearings, s.sweepOutcomes,
	)
	return s
}

// ObserveHTTPRequest records one handled HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// BidPlaced counts a successful bid placement.
func (s *MetricsService) BidPlaced() { s.bidsPlaced.Inc() }

// BidCancelled counts a successful bid cancellation.
func (s *MetricsService) BidCancelled() { s.bidsCancelled.Inc() }

// ClearingCompleted records the outcome of one clearing run.
func (s *MetricsService) ClearingCompleted(accepted, rejected int) {
	s.clearings.Inc()
	s.bidsAccepted.Add(float64(accepted))
	s.bidsRejected.Add(float64(rejected))
}

// SweepCompleted records the outcome of one deadline sweep.
func (s *MetricsService) SweepCompleted(successful, failed int) {
	s.sweepOutcomes.WithLabelValues("success").Add(float64(successful))
	s.sweepOutcomes.WithLabelValues("failure").Add(float64(failed))
}

// Handler exposes the registry for scraping.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
