package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	subscriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "changes_total",
			Help:      "Subscriptions created and removed.",
		},
		[]string{"action"},
	)

	subscriptionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "requests_total",
			Help:      "Subscription requests by outcome.",
		},
		[]string{"outcome"},
	)

	likes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "insights",
			Name:      "likes_total",
			Help:      "Like toggles by direction.",
		},
		[]string{"action"},
	)

	insightViews = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "insights",
			Name:      "views_total",
			Help:      "Insight views recorded by the feed.",
		},
	)

	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Notifications created by type.",
		},
		[]string{"type"},
	)

	changeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "changefeed",
			Name:      "events_total",
			Help:      "Change events received from the realtime backend.",
		},
		[]string{"table", "type"},
	)

	backendCircuit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_state",
			Help:      "Hosted backend circuit breaker state: 0 closed, 1 open, 2 half-open.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		subscriptions,
		subscriptionRequests,
		likes,
		insightViews,
		notificationsCreated,
		changeEvents,
		backendCircuit,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served request. Scrapes of /metrics are not counted.
func ObserveRequest(method, rawPath string, status int, elapsed time.Duration) {
	if rawPath == "/metrics" {
		return
	}
	path := CanonicalPath(rawPath)
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// TrackInFlight marks a request as in flight until the returned func runs.
func TrackInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// RecordSubscription counts a subscription being created (true) or removed.
func RecordSubscription(created bool) {
	if created {
		subscriptions.WithLabelValues("created").Inc()
		return
	}
	subscriptions.WithLabelValues("removed").Inc()
}

// RecordSubscriptionRequest counts a request outcome: requested, approved or declined.
func RecordSubscriptionRequest(outcome string) {
	subscriptionRequests.WithLabelValues(outcome).Inc()
}

// RecordLike counts a like (true) or unlike.
func RecordLike(liked bool) {
	if liked {
		likes.WithLabelValues("liked").Inc()
		return
	}
	likes.WithLabelValues("unliked").Inc()
}

// RecordViews counts n insight views.
func RecordViews(n int) {
	if n > 0 {
		insightViews.Add(float64(n))
	}
}

// RecordNotification counts a created notification.
func RecordNotification(notificationType string) {
	if notificationType == "" {
		notificationType = "unknown"
	}
	notificationsCreated.WithLabelValues(notificationType).Inc()
}

// RecordChangeEvent counts an event received from the realtime backend.
func RecordChangeEvent(table, eventType string) {
	changeEvents.WithLabelValues(table, eventType).Inc()
}

// SetBackendCircuit records the hosted backend breaker state.
func SetBackendCircuit(state int) {
	backendCircuit.Set(float64(state))
}

// staticSegments are route segments kept verbatim; any other segment after a
// resource name is an identifier.
var staticSegments = map[string]bool{
	"api": true, "v1": true, "auth": true, "signup": true, "signin": true, "signout": true,
	"me": true, "profiles": true, "expert": true, "investor": true, "avatar": true,
	"experts": true, "insights": true, "testimonials": true, "subscription": true,
	"requests": true, "subscriptions": true, "subscribers": true, "approve": true,
	"decline": true, "feed": true, "like": true, "comments": true, "notifications": true,
	"count": true, "read": true, "read-all": true, "accept": true, "ws": true,
	"marketplace": true, "items": true, "contact": true, "healthz": true, "media": true,
	"mine": true, "onboarding": true,
}

// CanonicalPath replaces identifiers in path with ":id" to bound label cardinality.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] == "media" {
		return "/media"
	}
	for i, part := range parts {
		if !staticSegments[part] {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
