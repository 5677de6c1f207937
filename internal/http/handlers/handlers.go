// Package handlers implements the bot's HTTP endpoints: the inbound webhook
// a chat platform posts events to, the outbox it polls for replies, and the
// command-run audit views.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/engine"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/services"
	"github.com/tbourn/go-chat-bot/internal/utils"
)

// Inbox accepts inbound events.
type Inbox interface {
	Accept(ctx context.Context, in services.Inbound) error
	Notify(ctx context.Context, ev engine.Event) error
}

// Outbox lists what the bot sent.
type Outbox interface {
	ListPage(ctx context.Context, destinationID string, page, pageSize int) ([]domain.Outbound, int64, error)
	Stats(ctx context.Context, destinationID string) (int64, *time.Time, error)
}

// Audit lists command runs.
type Audit interface {
	ListPage(ctx context.Context, name string, page, pageSize int) ([]domain.CommandRun, int64, error)
	Stats(ctx context.Context) ([]repo.RunCount, error)
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	inbox  Inbox
	outbox Outbox
	audit  Audit
}

// New returns Handlers bound to the given services.
func New(inbox Inbox, outbox Outbox, audit Audit) *Handlers {
	return &Handlers{inbox: inbox, outbox: outbox, audit: audit}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// headerUserID returns the X-User-ID header, used when a body omits user_id.
func headerUserID(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}
