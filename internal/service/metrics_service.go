package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the event bus and the entity cache.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_published_total",
		Help: "Total domain events accepted for dispatch",
	}, []string{"kind"})

	handlerFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_event_handler_failures_total",
		Help: "Total event handler errors and panics",
	}, []string{"kind", "handler"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	registry.MustRegister(requestDuration, requestTotal, eventsPublished, handlerFailures, cacheHits, cacheMisses)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		eventsPublished: eventsPublished,
		handlerFailures: handlerFailures,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveEventPublished counts an event accepted by the bus.
func (s *MetricsService) ObserveEventPublished(kind string) {
	s.eventsPublished.WithLabelValues(kind).Inc()
}

// ObserveHandlerFailure counts a failed handler invocation.
func (s *MetricsService) ObserveHandlerFailure(kind, handler string) {
	s.handlerFailures.WithLabelValues(kind, handler).Inc()
}

// ObserveCacheHit counts an entity cache hit.
func (s *MetricsService) ObserveCacheHit() { s.cacheHits.Inc() }

// ObserveCacheMiss counts an entity cache miss.
func (s *MetricsService) ObserveCacheMiss() { s.cacheMisses.Inc() }
