// Inbound webhook and outbox endpoints:
//   - POST {base}/messages                   (accept a chat line, 202)
//   - POST {base}/events                     (join, leave, presence, close)
//   - GET  {base}/destinations/{id}/messages (paginated outbox, ETag)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/engine"
	"github.com/tbourn/go-chat-bot/internal/http/middleware"
	"github.com/tbourn/go-chat-bot/internal/services"
)

// PostMessageRequest is a chat line observed by the platform.
type PostMessageRequest struct {
	// MessageID deduplicates redeliveries; the Idempotency-Key header wins.
	MessageID     string `json:"message_id"`
	UserID        string `json:"user_id"`
	DestinationID string `json:"destination_id"`
	Text          string `json:"text" binding:"required"`
	// Group marks a room message.
	Group bool `json:"group"`
}

// AcceptedResponse acknowledges an inbound event.
type AcceptedResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
}

// PostEventRequest is a non-message platform event.
type PostEventRequest struct {
	Kind          string `json:"kind" binding:"required"`
	UserID        string `json:"user_id"`
	DestinationID string `json:"destination_id"`
	Presence      string `json:"presence"`
	Code          int    `json:"code"`
	Reason        string `json:"reason"`
}

// ListOutboundResponse is a page of sent messages.
type ListOutboundResponse struct {
	Messages   []domain.Outbound `json:"messages"`
	Pagination Pagination        `json:"pagination"`
}

// crRE normalizes CRLF and lone CR line endings.
var crRE = regexp.MustCompile(`\r\n?`)

// sanitizeText normalizes line endings. Blank lines are kept since they
// separate the lines of a multi-line command.
func sanitizeText(raw string) string {
	return strings.TrimSpace(crRE.ReplaceAllString(raw, "\n"))
}

// PostMessage accepts one inbound chat message and hands it to the engine.
// Replies are delivered asynchronously through the outbox.
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	msgID := strings.TrimSpace(req.MessageID)
	if key, ok := middleware.GetIdempotencyKey(c); ok {
		msgID = key
	}
	if middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, AcceptedResponse{Status: "duplicate", MessageID: msgID})
		return
	}

	in := services.Inbound{
		MessageID:     msgID,
		UserID:        strings.TrimSpace(req.UserID),
		DestinationID: strings.TrimSpace(req.DestinationID),
		Text:          sanitizeText(req.Text),
		Group:         req.Group,
	}
	if in.UserID == "" {
		in.UserID = headerUserID(c)
	}

	err := h.inbox.Accept(c.Request.Context(), in)
	switch {
	case err == nil:
		ok(c, http.StatusAccepted, AcceptedResponse{Status: "accepted", MessageID: msgID})
	case errors.Is(err, services.ErrDuplicateMessage):
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, AcceptedResponse{Status: "duplicate", MessageID: msgID})
	case errors.Is(err, services.ErrEmptyText),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrUserRequired),
		errors.Is(err, services.ErrDestinationRequired):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrEngineUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
	}
}

// PostEvent accepts a membership, presence or connection-close event.
func (h *Handlers) PostEvent(c *gin.Context) {
	var req PostEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind required")
		return
	}
	kind, found := engine.ParseKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !found || kind == engine.KindDirect || kind == engine.KindGroup {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("unsupported event kind %q", req.Kind))
		return
	}
	ev := engine.Event{
		Kind:          kind,
		UserID:        strings.TrimSpace(req.UserID),
		DestinationID: strings.TrimSpace(req.DestinationID),
		Presence:      req.Presence,
		Code:          req.Code,
		Text:          req.Reason,
	}
	if ev.UserID == "" {
		ev.UserID = headerUserID(c)
	}

	err := h.inbox.Notify(c.Request.Context(), ev)
	switch {
	case err == nil:
		ok(c, http.StatusAccepted, AcceptedResponse{Status: "accepted"})
	case errors.Is(err, services.ErrUserRequired), errors.Is(err, services.ErrDestinationRequired):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrEngineUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
	}
}

// ListOutbound returns the messages sent to a destination, oldest first.
func (h *Handlers) ListOutbound(c *gin.Context) {
	ctx := c.Request.Context()
	dest := strings.TrimSpace(c.Param("id"))
	if dest == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "destination id required")
		return
	}

	// ETag pre-check (best effort).
	if count, latest, err := h.outbox.Stats(ctx, dest); err == nil {
		var ts int64
		if latest != nil {
			ts = latest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"outbound:%s:%d:%d"`, dest, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.outbox.ListPage(ctx, dest, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListOutboundResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
}
