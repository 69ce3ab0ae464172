package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private Prometheus registry with the HTTP and domain collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	eventsCreated   prometheus.Counter
	submissions     prometheus.Counter
	notifications   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
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

	eventsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pencil_events_created_total",
		Help: "Events created",
	})

	submissions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pencil_availability_submissions_total",
		Help: "Availability submissions saved",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pencil_push_notifications_total",
		Help: "Web push deliveries by result",
	}, []string{"result"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pencil_response_cache_lookups_total",
		Help: "GET response cache lookups by outcome",
	}, []string{"outcome"})

	registry.MustRegister(
		requestDuration, requestTotal, eventsCreated, submissions, notifications, cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Recorder{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		eventsCreated:   eventsCreated,
		submissions:     submissions,
		notifications:   notifications,
		cacheLookups:    cacheLookups,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveHTTPRequest records one handled request.
func (r *Recorder) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	r.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	r.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// EventCreated counts a newly persisted event.
func (r *Recorder) EventCreated() {
	if r == nil {
		return
	}
	r.eventsCreated.Inc()
}

// SubmissionSaved counts a stored device submission.
func (r *Recorder) SubmissionSaved() {
	if r == nil {
		return
	}
	r.submissions.Inc()
}

// NotificationResult counts a push delivery; result is "sent", "failed" or "expired".
func (r *Recorder) NotificationResult(result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(result).Inc()
}

// CacheLookup counts a response cache lookup as a hit or a miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheLookups.WithLabelValues(outcome).Inc()
}
