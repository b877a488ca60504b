// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pricing metrics
	SuggestionsTotal *prometheus.CounterVec
	SuggestedPrice   prometheus.Histogram

	// Negotiation metrics
	NegotiationsTotal   *prometheus.CounterVec
	NegotiationSteps    *prometheus.HistogramVec
	CounterOfferLatency *prometheus.HistogramVec
	CounterOfferErrors  *prometheus.CounterVec

	// External service metrics
	ExternalCallLatency *prometheus.HistogramVec
	ExternalCallErrors  *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	DBConnections   *prometheus.GaugeVec

	// Health metrics
	LastSuccessfulNegotiation prometheus.Gauge
	UptimeSeconds             prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dairy_market_lab"
	}

	return &Metrics{
		// Pricing metrics
		SuggestionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "suggestions_total",
			Help:      "Total number of price suggestions by result",
		}, []string{"result"}),
		SuggestedPrice: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "suggested_price",
			Help:      "Distribution of suggested prices",
			Buckets:   []float64{1000, 2500, 5000, 6000, 7000, 7500, 8000, 9000, 10000, 15000},
		}),

		// Negotiation metrics
		NegotiationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "negotiation",
			Name:      "outcomes_total",
			Help:      "Total number of finished negotiations by mode, status and reason",
		}, []string{"mode", "status", "reason"}),
		NegotiationSteps: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "negotiation",
			Name:      "steps",
			Help:      "Number of steps taken per finished negotiation",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		}, []string{"mode"}),
		CounterOfferLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "negotiation",
			Name:      "counter_offer_latency_seconds",
			Help:      "Counter-offer fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		CounterOfferErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "negotiation",
			Name:      "counter_offer_errors_total",
			Help:      "Total number of failed counter-offer fetches",
		}, []string{"source"}),

		// External service metrics
		ExternalCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_latency_seconds",
			Help:      "External service call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service", "operation"}),
		ExternalCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_errors_total",
			Help:      "Total number of failed external service calls",
		}, []string{"service", "operation"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by result",
		}, []string{"cache", "result"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of published events by topic and status",
		}, []string{"topic", "status"}),

		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		DBConnections: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "connections",
			Help:      "Number of database connections by state",
		}, []string{"database", "state"}),

		// Health metrics
		LastSuccessfulNegotiation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_accepted_negotiation_timestamp",
			Help:      "Unix timestamp of the last accepted negotiation",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSuggestion records a price suggestion. err is the suggester error, if any.
func RecordSuggestion(price float64, err error) {
	if err != nil {
		DefaultMetrics.SuggestionsTotal.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.SuggestionsTotal.WithLabelValues("ok").Inc()
	DefaultMetrics.SuggestedPrice.Observe(price)
}

// RecordNegotiation records a finished negotiation.
func RecordNegotiation(mode, status, reason string, steps int) {
	DefaultMetrics.NegotiationsTotal.WithLabelValues(mode, status, reason).Inc()
	DefaultMetrics.NegotiationSteps.WithLabelValues(mode).Observe(float64(steps))
	if status == "accepted" {
		DefaultMetrics.LastSuccessfulNegotiation.Set(float64(time.Now().Unix()))
	}
}

// RecordCounterOffer records a counter-offer fetch.
func RecordCounterOffer(source string, seconds float64, err error) {
	DefaultMetrics.CounterOfferLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		DefaultMetrics.CounterOfferErrors.WithLabelValues(source).Inc()
	}
}

// RecordExternalCall records an external service call.
func RecordExternalCall(service, operation string, seconds float64, err error) {
	DefaultMetrics.ExternalCallLatency.WithLabelValues(service, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.ExternalCallErrors.WithLabelValues(service, operation).Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordEventPublished records an event publish attempt.
func RecordEventPublished(topic string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.EventsPublished.WithLabelValues(topic, status).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route, code string, seconds float64) {
	DefaultMetrics.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateDBConnections sets the connection gauges for a database pool.
func UpdateDBConnections(database string, open, inUse, idle int) {
	DefaultMetrics.DBConnections.WithLabelValues(database, "open").Set(float64(open))
	DefaultMetrics.DBConnections.WithLabelValues(database, "in_use").Set(float64(inUse))
	DefaultMetrics.DBConnections.WithLabelValues(database, "idle").Set(float64(idle))
}
