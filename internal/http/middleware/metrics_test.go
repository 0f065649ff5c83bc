package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetrics_CountsRequestsByRoute(t *testing.T) {
	r := newTestRouter(Metrics())
	r.GET("/api/v1/conversations/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/c1", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("instrumented request failed: %d", w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	if !strings.Contains(body, "relay_http_requests_total") {
		t.Fatalf("counter not exposed")
	}
	// The route template, not the raw URL, must be the path label.
	if !strings.Contains(body, `path="/api/v1/conversations/:id"`) {
		t.Fatalf("expected route-template path label, got:\n%s", body)
	}
	if strings.Contains(body, `path="/api/v1/conversations/c1"`) {
		t.Fatalf("raw URL must not leak into labels")
	}
	if !strings.Contains(body, "relay_http_request_duration_seconds") ||
		!strings.Contains(body, "relay_http_requests_inflight") {
		t.Fatalf("expected latency and inflight collectors in exposition")
	}
}
