package dto

// QueryRequest is the inbound advisory query payload.
type QueryRequest struct {
	Message   string `json:"message" validate:"required,max=2000"`
	SessionID string `json:"session_id"`
}

// QueryResponse carries the released answer and its session.
type QueryResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}
