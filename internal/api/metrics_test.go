package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestMetricsMiddlewareRecordsRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newHTTPMetrics(reg)

	handler := requestMetricsMiddleware(metrics, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/songlists/12", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}

	if got := testutil.ToFloat64(metrics.requestTotal.WithLabelValues(http.MethodGet, "/api/*", "5xx")); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.requestErrors.WithLabelValues(http.MethodGet, "/api/*", "500")); got != 1 {
		t.Fatalf("expected error counter 1, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	foundDuration := false
	for _, mf := range mfs {
		if mf.GetName() != "songlist_http_request_duration_seconds" {
			continue
		}
		foundDuration = true
		if len(mf.Metric) != 1 {
			t.Fatalf("expected one latency series, got %d", len(mf.Metric))
		}
		if got := mf.Metric[0].GetHistogram().GetSampleCount(); got != 1 {
			t.Fatalf("expected one latency sample, got %d", got)
		}
	}
	if !foundDuration {
		t.Fatal("did not find latency histogram")
	}
}

func TestRequestMetricsMiddlewareSkipsMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newHTTPMetrics(reg)

	handler := requestMetricsMiddleware(metrics, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if got := testutil.CollectAndCount(metrics.requestTotal); got != 0 {
		t.Fatalf("expected no request samples for /metrics, got %d", got)
	}
}

func TestMetricsHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newHTTPMetrics(reg)

	observed := requestMetricsMiddleware(metrics, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	observed.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/missing", nil))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	metricsHandler(reg).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, name := range []string{
		"songlist_http_requests_total",
		"songlist_http_request_duration_seconds",
		"songlist_http_errors_total",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected scrape output to contain %q", name)
		}
	}
}

func TestRequestRouteLabelHidesTokens(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/healthz", want: "/healthz"},
		{path: "/api/share/3f9a0c", want: "/api/share/*"},
		{path: "/api/invites/abc/accept", want: "/api/invites/*"},
		{path: "/api/auth/google/callback", want: "/api/auth/*"},
		{path: "/api/bands/7/songs", want: "/api/*"},
		{path: "/favicon.ico", want: "other"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := requestRouteLabel(req); got != tt.want {
			t.Fatalf("requestRouteLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/songlists/4", nil)
	req.Pattern = "GET /api/songlists/{id}"
	if got := requestRouteLabel(req); got != "/api/songlists/{id}" {
		t.Fatalf("requestRouteLabel with pattern = %q", got)
	}
}

func TestDomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newHTTPMetrics(reg)

	metrics.observeShareRead(true)
	metrics.observeShareRead(false)
	metrics.observeShareRead(false)
	metrics.observeSonglistReplace()
	metrics.observeInviteRedemption(false)
	metrics.observeInviteRedemption(true)

	if got := testutil.ToFloat64(metrics.shareReads.WithLabelValues("missing")); got != 2 {
		t.Fatalf("expected 2 missing share reads, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.songlistReplaces); got != 1 {
		t.Fatalf("expected 1 replacement, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.inviteRedemptions.WithLabelValues("already_member")); got != 1 {
		t.Fatalf("expected 1 repeat redemption, got %f", got)
	}

	var nilMetrics *httpMetrics
	nilMetrics.observeShareRead(true)
	nilMetrics.observeSonglistReplace()
}
