package dto

import "time"

type AnalysisCreateRequest struct {
	Situation string   `json:"situation"`
	Options   []string `json:"options,omitempty"`
}

type AnalysisResponse struct {
	ID            string    `json:"id"`
	Situation     string    `json:"situation"`
	Options       []string  `json:"options,omitempty"`
	Analysis      string    `json:"analysis"`
	Model         string    `json:"model,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Plan          string    `json:"plan,omitempty"`
	RemainingFree int       `json:"remaining_free,omitempty"`
	Degraded      bool      `json:"degraded,omitempty"`
}

type AnalysisListResponse struct {
	Items []AnalysisResponse `json:"items"`
}

type CheckpointCreateRequest struct {
	Note string `json:"note"`
}

type CheckpointResponse struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
}

type CheckpointListResponse struct {
	Items []CheckpointResponse `json:"items"`
}
