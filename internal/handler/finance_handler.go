package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-advisor-api/internal/service"
	"github.com/noah-isme/sma-advisor-api/pkg/response"
)

// FinanceHandler exposes financial snapshot endpoints.
type FinanceHandler struct {
	service *service.FinanceService
}

// NewFinanceHandler creates a new handler.
func NewFinanceHandler(svc *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{service: svc}
}

// Snapshot godoc
// @Summary Financial snapshot
// @Description Compute the school's current fee and payroll position with ledger reconciliation
// @Tags Finance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /finance/snapshot [get]
func (h *FinanceHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.service.Snapshot(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Export godoc
// @Summary Export financial snapshot
// @Description Download the snapshot as CSV or PDF
// @Tags Finance
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string true "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /finance/snapshot/export [get]
func (h *FinanceHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	body, contentType, filename, err := h.service.Export(c.Request.Context(), claimsFromContext(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}
