package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/engine"
	"github.com/tbourn/go-chat-bot/internal/http/middleware"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/services"
)

type stubInbox struct {
	accepted []services.Inbound
	notified []engine.Event
	err      error
}

func (s *stubInbox) Accept(_ context.Context, in services.Inbound) error {
	if s.err != nil {
		return s.err
	}
	s.accepted = append(s.accepted, in)
	return nil
}

func (s *stubInbox) Notify(_ context.Context, ev engine.Event) error {
	if s.err != nil {
		return s.err
	}
	s.notified = append(s.notified, ev)
	return nil
}

type stubOutbox struct {
	items    []domain.Outbound
	total    int64
	latest   *time.Time
	err      error
	gotPage  [2]int
	statsErr error
}

func (s *stubOutbox) ListPage(_ context.Context, _ string, page, pageSize int) ([]domain.Outbound, int64, error) {
	s.gotPage = [2]int{page, pageSize}
	return s.items, s.total, s.err
}

func (s *stubOutbox) Stats(context.Context, string) (int64, *time.Time, error) {
	return s.total, s.latest, s.statsErr
}

type stubAudit struct {
	runs    []domain.CommandRun
	stats   []repo.RunCount
	err     error
	gotName string
}

func (s *stubAudit) ListPage(_ context.Context, name string, _, _ int) ([]domain.CommandRun, int64, error) {
	s.gotName = name
	return s.runs, int64(len(s.runs)), s.err
}

func (s *stubAudit) Stats(context.Context) ([]repo.RunCount, error) { return s.stats, s.err }

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, func(_ context.Context, key string, _ time.Time) (bool, error) {
		return key == "seen", nil
	}))
	r.POST("/messages", h.PostMessage)
	r.POST("/events", h.PostEvent)
	r.GET("/destinations/:id/messages", h.ListOutbound)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/stats", h.RunStats)
	return r
}

func send(r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestPostMessage_Accepts(t *testing.T) {
	in := &stubInbox{}
	r := newRouter(New(in, &stubOutbox{}, &stubAudit{}))

	w := send(r, http.MethodPost, "/messages",
		`{"message_id":"body-id","destination_id":" C1 ","text":"<@B1> remind bob\r\non 2024-06-20","group":true}`,
		map[string]string{"X-User-ID": "U1", middleware.HeaderIdempotencyKey: "hdr-id"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	if resp := decode[AcceptedResponse](t, w); resp.Status != "accepted" || resp.MessageID != "hdr-id" {
		t.Fatalf("resp=%+v", resp)
	}
	got := in.accepted[0]
	want := services.Inbound{MessageID: "hdr-id", UserID: "U1", DestinationID: "C1", Text: "<@B1> remind bob\non 2024-06-20", Group: true}
	if got != want {
		t.Fatalf("inbound=%+v want %+v", got, want)
	}

	w = send(r, http.MethodPost, "/messages", `{"message_id":"body-id","user_id":"U2","text":"hi"}`, nil)
	if w.Code != http.StatusAccepted || in.accepted[1].MessageID != "body-id" || in.accepted[1].UserID != "U2" {
		t.Fatalf("body id fallback: code=%d in=%+v", w.Code, in.accepted[1])
	}
}

func TestPostMessage_Replays(t *testing.T) {
	in := &stubInbox{}
	r := newRouter(New(in, &stubOutbox{}, &stubAudit{}))

	w := send(r, http.MethodPost, "/messages", `{"user_id":"U1","text":"hi"}`, map[string]string{middleware.HeaderIdempotencyKey: "seen"})
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" || len(in.accepted) != 0 {
		t.Fatalf("replay code=%d accepted=%d", w.Code, len(in.accepted))
	}
	if resp := decode[AcceptedResponse](t, w); resp.Status != "duplicate" {
		t.Fatalf("resp=%+v", resp)
	}

	in.err = services.ErrDuplicateMessage
	w = send(r, http.MethodPost, "/messages", `{"message_id":"m2","user_id":"U1","text":"hi"}`, nil)
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("racing duplicate code=%d", w.Code)
	}
}

func TestPostMessage_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		want string
	}{
		{services.ErrEmptyText, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrTooLong, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrUserRequired, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrDestinationRequired, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrEngineUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeSubmitFailed},
	}
	for _, tc := range cases {
		r := newRouter(New(&stubInbox{err: tc.err}, &stubOutbox{}, &stubAudit{}))
		w := send(r, http.MethodPost, "/messages", `{"user_id":"U1","text":"hi"}`, nil)
		if w.Code != tc.code || decode[ErrorResponse](t, w).Code != tc.want {
			t.Fatalf("%v: code=%d body=%s", tc.err, w.Code, w.Body.String())
		}
	}

	r := newRouter(New(&stubInbox{}, &stubOutbox{}, &stubAudit{}))
	if w := send(r, http.MethodPost, "/messages", `{"user_id":"U1"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing text=%d", w.Code)
	}
}

func TestPostEvent(t *testing.T) {
	in := &stubInbox{}
	r := newRouter(New(in, &stubOutbox{}, &stubAudit{}))

	w := send(r, http.MethodPost, "/events", `{"kind":" Presence ","presence":"away"}`, map[string]string{"X-User-ID": "U3"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	if ev := in.notified[0]; ev.Kind != engine.KindPresence || ev.UserID != "U3" || ev.Presence != "away" {
		t.Fatalf("event=%+v", ev)
	}

	w = send(r, http.MethodPost, "/events", `{"kind":"close","code":1006,"reason":"gone"}`, nil)
	if ev := in.notified[1]; w.Code != http.StatusAccepted || ev.Kind != engine.KindClose || ev.Code != 1006 || ev.Text != "gone" {
		t.Fatalf("close code=%d ev=%+v", w.Code, ev)
	}

	for _, body := range []string{`{"kind":"direct"}`, `{"kind":"earthquake"}`, `{}`} {
		if w := send(r, http.MethodPost, "/events", body, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: code=%d", body, w.Code)
		}
	}

	in.err = services.ErrDestinationRequired
	if w := send(r, http.MethodPost, "/events", `{"kind":"join","user_id":"U1"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("join without destination=%d", w.Code)
	}
	in.err = services.ErrEngineUnavailable
	if w := send(r, http.MethodPost, "/events", `{"kind":"leave","user_id":"U1","destination_id":"C1"}`, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("stopped engine=%d", w.Code)
	}
}

func TestListOutbound_PaginationAndETag(t *testing.T) {
	latest := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := &stubOutbox{
		items:  []domain.Outbound{{ID: "o1", DestinationID: "D1", Text: "hello"}},
		total:  3,
		latest: &latest,
	}
	r := newRouter(New(&stubInbox{}, out, &stubAudit{}))

	w := send(r, http.MethodGet, "/destinations/D1/messages?page=2&page_size=500", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	if out.gotPage != [2]int{2, 100} {
		t.Fatalf("page args=%v", out.gotPage)
	}
	resp := decode[ListOutboundResponse](t, w)
	if len(resp.Messages) != 1 || resp.Pagination.TotalPages != 1 || resp.Pagination.HasNext {
		t.Fatalf("resp=%+v", resp)
	}
	etag := w.Header().Get("ETag")
	if etag != `W/"outbound:D1:3:`+strconv.FormatInt(latest.UnixNano(), 10)+`"` {
		t.Fatalf("etag=%q", etag)
	}

	w = send(r, http.MethodGet, "/destinations/D1/messages", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional get=%d", w.Code)
	}

	out.err = errors.New("db down")
	out.statsErr = out.err
	w = send(r, http.MethodGet, "/destinations/D1/messages", "", nil)
	if w.Code != http.StatusInternalServerError || w.Header().Get("ETag") != "" {
		t.Fatalf("failure code=%d etag=%q", w.Code, w.Header().Get("ETag"))
	}
}

func TestRuns(t *testing.T) {
	audit := &stubAudit{
		runs:  []domain.CommandRun{{ID: "r1", Name: "ban", Response: "ok"}},
		stats: []repo.RunCount{{Name: "ban", Response: "ok", Count: 1}},
	}
	r := newRouter(New(&stubInbox{}, &stubOutbox{}, audit))

	w := send(r, http.MethodGet, "/runs?command=%20BAN%20", "", nil)
	if w.Code != http.StatusOK || audit.gotName != "ban" {
		t.Fatalf("code=%d name=%q", w.Code, audit.gotName)
	}
	if resp := decode[ListRunsResponse](t, w); len(resp.Runs) != 1 || resp.Pagination.Total != 1 {
		t.Fatalf("resp=%+v", resp)
	}

	w = send(r, http.MethodGet, "/runs/stats", "", nil)
	if resp := decode[RunStatsResponse](t, w); len(resp.Stats) != 1 || resp.Stats[0].Count != 1 {
		t.Fatalf("stats=%+v", resp)
	}

	audit.stats = nil
	if w = send(r, http.MethodGet, "/runs/stats", "", nil); !strings.Contains(w.Body.String(), `"stats":[]`) {
		t.Fatalf("empty stats body=%s", w.Body.String())
	}

	audit.err = errors.New("db down")
	if w = send(r, http.MethodGet, "/runs", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("runs failure=%d", w.Code)
	}
	if w = send(r, http.MethodGet, "/runs/stats", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("stats failure=%d", w.Code)
	}
}

func TestSanitizeText(t *testing.T) {
	if got := sanitizeText("  a\r\nb\rc\n\n d  "); got != "a\nb\nc\n\n d" {
		t.Fatalf("sanitizeText=%q", got)
	}
}
