package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/destinations/:id/messages", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.POST("/messages", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	route := "/destinations/:id/messages"
	baseList := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200"))
	basePost := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/messages", "202"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))

	for _, p := range []string{"/destinations/D1/messages", "/destinations/D2/messages", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/messages", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200")); got != baseList+2 {
		t.Fatalf("list count=%v want %v", got, baseList+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/messages", "202")); got != basePost+1 {
		t.Fatalf("post count=%v want %v", got, basePost+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != baseMiss+2 {
		t.Fatalf("unmatched count=%v want %v", got, baseMiss+2)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight=%v", got)
	}
}
