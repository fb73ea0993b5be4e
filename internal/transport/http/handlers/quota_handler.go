package handlers

import (
	"net/http"

	quotasvc "github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
	"github.com/kmish9685/Persona-AI-sub000/internal/transport/http/dto"
	httperrors "github.com/kmish9685/Persona-AI-sub000/internal/transport/http/errors"
)

type QuotaHandler struct {
	service *quotasvc.Service
}

func NewQuotaHandler(service *quotasvc.Service) *QuotaHandler {
	return &QuotaHandler{service: service}
}

// Handle reports the caller's remaining allowance without consuming any of it.
func (h *QuotaHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "QUOTA_SERVICE_UNAVAILABLE", "quota service is unavailable")
		return
	}

	snapshot, err := h.service.GetSnapshot(r.Context(), identityFromRequest(r))
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load quota")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaResponse{
		Plan:          snapshot.Plan.String(),
		RemainingFree: snapshot.Remaining,
		ResetAt:       snapshot.ResetAt.UTC(),
	})
}
