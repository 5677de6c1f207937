package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
)

// ListRunsResponse is a page of command runs.
type ListRunsResponse struct {
	Runs       []domain.CommandRun `json:"runs"`
	Pagination Pagination          `json:"pagination"`
}

// RunStatsResponse counts runs per command and response kind.
type RunStatsResponse struct {
	Stats []repo.RunCount `json:"stats"`
}

// ListRuns handles GET {base}/runs?command=&page=&page_size=.
func (h *Handlers) ListRuns(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Query("command")))
	page, pageSize := clampPagination(c)
	items, total, err := h.audit.ListPage(c.Request.Context(), name, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListRunsResponse{Runs: items, Pagination: newPagination(page, pageSize, total)})
}

// RunStats handles GET {base}/runs/stats.
func (h *Handlers) RunStats(c *gin.Context) {
	stats, err := h.audit.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if stats == nil {
		stats = []repo.RunCount{}
	}
	ok(c, http.StatusOK, RunStatsResponse{Stats: stats})
}
