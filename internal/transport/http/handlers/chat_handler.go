package handlers

import (
	"errors"
	"net/http"

	"github.com/kmish9685/Persona-AI-sub000/internal/pkg/validate"
	chatsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/chat"
	"github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
	ratesvc "github.com/kmish9685/Persona-AI-sub000/internal/services/rate"
	"github.com/kmish9685/Persona-AI-sub000/internal/transport/http/dto"
	httperrors "github.com/kmish9685/Persona-AI-sub000/internal/transport/http/errors"
)

type ChatHandler struct {
	service *chatsvc.Service
}

func NewChatHandler(service *chatsvc.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	var req dto.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validate.Required(req.Message) {
		writeBadRequest(w, "VALIDATION_ERROR", "message is required")
		return
	}

	history := make([]chatsvc.Turn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, chatsvc.Turn{Role: turn.Role, Content: turn.Content})
	}

	result, err := h.service.Send(r.Context(), identityFromRequest(r), req.Message, history)
	if err != nil {
		handleGatedError(w, err, "failed to process chat message")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ChatResponse{
		Reply:         result.Reply,
		Plan:          result.Plan.String(),
		RemainingFree: result.RemainingFree,
		Degraded:      result.Degraded,
	})
}

func handleGatedError(w http.ResponseWriter, err error, internalMessage string) {
	if denied, ok := quota.IsDenied(err); ok {
		httperrors.WriteQuotaDenied(w, string(denied.Reason))
		return
	}
	if tf, ok := ratesvc.IsTooFast(err); ok {
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_FAST",
			Message:       "too many requests, slow down",
			RetryAfterSec: tf.RetryAfter(),
		})
		return
	}

	switch {
	case errors.Is(err, chatsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	case errors.Is(err, chatsvc.ErrCompletionFailed):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "UPSTREAM_FAILED",
			Message: "completion provider failed",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", internalMessage)
	}
}
