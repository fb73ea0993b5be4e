package dto

type BillingWebhookRequest struct {
	Provider  string `json:"provider"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Email     string `json:"email"`
}

type BillingWebhookResponse struct {
	OK         bool   `json:"ok"`
	Plan       string `json:"plan,omitempty"`
	Idempotent bool   `json:"idempotent"`
	Ignored    bool   `json:"ignored,omitempty"`
}
