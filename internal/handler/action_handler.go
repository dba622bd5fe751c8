package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-advisor-api/internal/dto"
	"github.com/noah-isme/sma-advisor-api/internal/models"
	"github.com/noah-isme/sma-advisor-api/internal/service"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
	"github.com/noah-isme/sma-advisor-api/pkg/response"
)

// ActionHandler exposes the pending-action workflow endpoints.
type ActionHandler struct {
	service *service.ActionService
}

// NewActionHandler creates a new handler.
func NewActionHandler(svc *service.ActionService) *ActionHandler {
	return &ActionHandler{service: svc}
}

// Create godoc
// @Summary Propose an action
// @Description Propose a privileged write that must be confirmed before it executes
// @Tags Actions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateActionRequest true "Action payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /actions [post]
func (h *ActionHandler) Create(c *gin.Context) {
	var req dto.CreateActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action payload"))
		return
	}
	if req.Type == "" || strings.TrimSpace(req.Summary) == "" || len(req.Data) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "action_type, action_summary and action_data are required"))
		return
	}

	action, err := h.service.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, action)
}

// List godoc
// @Summary List proposed actions
// @Description List the caller's proposed actions, newest first
// @Tags Actions
// @Produce json
// @Security BearerAuth
// @Param state query string false "Comma-separated states to filter by"
// @Param limit query int false "Maximum actions to return"
// @Success 200 {object} response.Envelope
// @Router /actions [get]
func (h *ActionHandler) List(c *gin.Context) {
	var states []models.ActionState
	if raw := c.Query("state"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			states = append(states, models.ActionState(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	actions, err := h.service.List(c.Request.Context(), claimsFromContext(c), states, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, nil)
}

// Get godoc
// @Summary Get an action
// @Description Get one of the caller's proposed actions
// @Tags Actions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Action ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /actions/{id} [get]
func (h *ActionHandler) Get(c *gin.Context) {
	action, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// Confirm godoc
// @Summary Confirm and execute an action
// @Description Confirm a pending action within its window; the action executes exactly once
// @Tags Actions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Action ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /actions/{id}/confirm [post]
func (h *ActionHandler) Confirm(c *gin.Context) {
	res, err := h.service.Confirm(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Cancel godoc
// @Summary Cancel a pending action
// @Description Withdraw a pending action; cancelling a settled action is a no-op
// @Tags Actions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Action ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /actions/{id}/cancel [post]
func (h *ActionHandler) Cancel(c *gin.Context) {
	res, err := h.service.Cancel(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
