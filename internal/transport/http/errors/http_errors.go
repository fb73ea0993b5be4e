package errors

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

// QuotaDenied is the payment-required payload. Clients key off the bare
// "error" field, so the shape stays flat and stable.
type QuotaDenied struct {
	Error string `json:"error"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteQuotaDenied(w http.ResponseWriter, reason string) {
	Write(w, http.StatusPaymentRequired, QuotaDenied{Error: reason})
}
