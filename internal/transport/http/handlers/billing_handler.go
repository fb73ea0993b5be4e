package handlers

import (
	"errors"
	"net/http"

	billingsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/billing"
	"github.com/kmish9685/Persona-AI-sub000/internal/transport/http/dto"
	httperrors "github.com/kmish9685/Persona-AI-sub000/internal/transport/http/errors"
)

type BillingHandler struct {
	service *billingsvc.Service
}

func NewBillingHandler(service *billingsvc.Service) *BillingHandler {
	return &BillingHandler{service: service}
}

func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "BILLING_SERVICE_UNAVAILABLE", "billing service is unavailable")
		return
	}

	var req dto.BillingWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), billingsvc.WebhookInput{
		Provider:  req.Provider,
		EventID:   req.EventID,
		EventType: req.EventType,
		Email:     req.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, billingsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "provider, event_id and email are required")
		case errors.Is(err, billingsvc.ErrUnsupportedEvent):
			// Acknowledge event types we do not handle so the provider stops
			// redelivering them.
			httperrors.Write(w, http.StatusOK, dto.BillingWebhookResponse{OK: true, Ignored: true})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to process billing event")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BillingWebhookResponse{
		OK:         true,
		Plan:       result.Plan.String(),
		Idempotent: result.Idempotent,
	})
}
