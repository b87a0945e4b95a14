package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/api/v1/insights/3f2a/like":          "/api/v1/insights/:id/like",
		"/api/v1/experts/abc/subscription":    "/api/v1/experts/:id/subscription",
		"/api/v1/notifications/read-all":      "/api/v1/notifications/read-all",
		"/api/v1/marketplace/items/x/contact": "/api/v1/marketplace/items/:id/contact",
		"/media/avatars/u1/a.png":             "/media",
	}
	for in, want := range cases {
		if got := CanonicalPath(in); got != want {
			t.Fatalf("CanonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObserveRequestCountsCanonicalPath(t *testing.T) {
	counter := httpRequests.WithLabelValues("GET", "/api/v1/insights/:id", "418")
	before := testutil.ToFloat64(counter)
	ObserveRequest("get", "/api/v1/insights/3f2a", http.StatusTeapot, 10*time.Millisecond)
	ObserveRequest("GET", "/metrics", http.StatusOK, time.Millisecond)
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected one request counted, got %v", got)
	}
}

func TestTrackInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpInFlight)
	done := TrackInFlight()
	if got := testutil.ToFloat64(httpInFlight); got != before+1 {
		t.Fatalf("in flight = %v, want %v", got, before+1)
	}
	done()
	if got := testutil.ToFloat64(httpInFlight); got != before {
		t.Fatalf("in flight after release = %v, want %v", got, before)
	}
}

func TestDomainCountersExposed(t *testing.T) {
	RecordLike(true)
	RecordViews(3)
	RecordNotification("new_comment")
	RecordSubscription(true)
	RecordSubscriptionRequest("approved")
	RecordChangeEvent("notifications", "INSERT")
	SetBackendCircuit(1)
	if got := testutil.ToFloat64(backendCircuit); got != 1 {
		t.Fatalf("circuit gauge = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{
		"marketplace_insights_likes_total",
		"marketplace_insights_views_total",
		"marketplace_notifications_created_total",
		"marketplace_subscriptions_changes_total",
		"marketplace_changefeed_events_total",
		"marketplace_backend_circuit_state",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metric %s not exposed", name)
		}
	}
}
