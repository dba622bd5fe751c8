package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-advisor-api/internal/dto"
	"github.com/noah-isme/sma-advisor-api/internal/service"
	"github.com/noah-isme/sma-advisor-api/pkg/response"
)

// SessionHandler exposes conversation session endpoints.
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler creates a new handler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// List godoc
// @Summary List conversations
// @Description List the caller's conversation sessions, most recent first
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /advisor/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.service.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	summaries := make([]dto.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, dto.SessionSummary{
			ID:          s.ID,
			Title:       s.Title,
			LastUpdated: s.LastUpdated,
		})
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Get godoc
// @Summary Get a conversation
// @Description Get a conversation with its recent messages
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param limit query int false "Maximum messages to return"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /advisor/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	session, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete a conversation
// @Description Delete a conversation and its message history
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /advisor/sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
