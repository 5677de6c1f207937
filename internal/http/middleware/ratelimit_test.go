package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyBySender(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c.Request = req

	if got := KeyBySender()(c); got != "ip:203.0.113.9" {
		t.Fatalf("ip key=%q", got)
	}
	req.Header.Set("X-User-ID", " U42 ")
	if got := KeyBySender()(c); got != "user:U42" {
		t.Fatalf("user key=%q", got)
	}
}

func TestNewRateLimiter_DefaultsAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 || rl.keyFn == nil {
		t.Fatalf("defaults not applied: burst=%d", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if rl.getVisitor("k1") != lim {
		t.Fatalf("bucket should be reused")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.ttl = time.Nanosecond
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.lookups = sweepEvery - 1

	_ = rl.getVisitor("new")

	if _, ok := rl.visitors["old"]; ok {
		t.Fatalf("idle bucket should be evicted")
	}
	if _, ok := rl.visitors["new"]; !ok {
		t.Fatalf("new bucket missing")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter not reset: %d", rl.lookups)
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, KeyBySender())

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-1"); c.Next() })
	r.Use(rl.Handler())
	r.POST("/messages", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	post := func(user string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.Header.Set("X-User-ID", user)
		r.ServeHTTP(w, req)
		return w
	}

	if w := post("U1"); w.Code != http.StatusAccepted {
		t.Fatalf("first post=%d", w.Code)
	}
	w := post("U1")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second post=%d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "too_many_requests" || body["request_id"] != "rid-1" {
		t.Fatalf("body=%v", body)
	}
	if w := post("U2"); w.Code != http.StatusAccepted {
		t.Fatalf("other sender should have its own bucket, got %d", w.Code)
	}

	bypass := gin.New()
	bypass.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	bypass.Use(rl.Handler())
	bypass.POST("/messages", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.Header.Set("X-User-ID", "U1")
	bypass.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery should bypass the limiter, got %d", w.Code)
	}
}
