package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/properties/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.DELETE("/properties/:id/deal", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseGet := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/properties/:id", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404"))
	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/properties/:id/deal", "204"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/properties/1", nil),
		httptest.NewRequest(http.MethodGet, "/properties/2", nil),
		httptest.NewRequest(http.MethodGet, "/nope/123", nil),
		httptest.NewRequest(http.MethodDelete, "/properties/1/deal", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/properties/:id", "200")); got != baseGet+2 {
		t.Fatalf("route counter = %v; want %v", got, baseGet+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/properties/:id/deal", "204")); got != baseDel+1 {
		t.Fatalf("delete counter = %v; want %v", got, baseDel+1)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v; want 0", v)
	}
}
