package dto

import "time"

type QuotaResponse struct {
	Plan          string    `json:"plan"`
	RemainingFree int       `json:"remaining_free"`
	ResetAt       time.Time `json:"reset_at"`
}
