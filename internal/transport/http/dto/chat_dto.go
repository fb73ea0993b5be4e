package dto

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history,omitempty"`
}

type ChatResponse struct {
	Reply         string `json:"reply"`
	Plan          string `json:"plan"`
	RemainingFree int    `json:"remaining_free"`
	Degraded      bool   `json:"degraded,omitempty"`
}
