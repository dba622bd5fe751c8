package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-advisor-api/internal/dto"
	"github.com/noah-isme/sma-advisor-api/internal/service"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
	"github.com/noah-isme/sma-advisor-api/pkg/response"
)

const maxQueryLength = 2000

// AdvisorHandler exposes the advisory query endpoint.
type AdvisorHandler struct {
	service *service.AdvisorService
}

// NewAdvisorHandler creates a new handler.
func NewAdvisorHandler(svc *service.AdvisorService) *AdvisorHandler {
	return &AdvisorHandler{service: svc}
}

// Query godoc
// @Summary Ask an advisory question
// @Description Answer a question about school records using verified figures only
// @Tags Advisor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.QueryRequest true "Query payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /advisor/query [post]
func (h *AdvisorHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query payload"))
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "message is required"))
		return
	}
	if len(req.Message) > maxQueryLength {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "message exceeds maximum length"))
		return
	}

	res, err := h.service.Answer(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
