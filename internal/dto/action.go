package dto

import (
	"encoding/json"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

// CreateActionRequest payload for proposing a privileged write operation.
type CreateActionRequest struct {
	Type    models.ActionType `json:"action_type" validate:"required"`
	Summary string            `json:"action_summary" validate:"required,max=500"`
	Data    json.RawMessage   `json:"action_data" validate:"required"`
}

// ConfirmActionResponse reports the outcome of a confirmed action.
type ConfirmActionResponse struct {
	Message string             `json:"message"`
	State   models.ActionState `json:"state"`
}

// CancelActionResponse reports cancel outcome; cancelling an action that is
// already settled is a no-op success.
type CancelActionResponse struct {
	Message string             `json:"message"`
	State   models.ActionState `json:"state"`
}
