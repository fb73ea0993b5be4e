package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kmish9685/Persona-AI-sub000/internal/pkg/validate"
	pgrepo "github.com/kmish9685/Persona-AI-sub000/internal/repo/postgres"
	analysissvc "github.com/kmish9685/Persona-AI-sub000/internal/services/analysis"
	"github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
	ratesvc "github.com/kmish9685/Persona-AI-sub000/internal/services/rate"
	"github.com/kmish9685/Persona-AI-sub000/internal/transport/http/dto"
	httperrors "github.com/kmish9685/Persona-AI-sub000/internal/transport/http/errors"
)

const defaultAnalysisListLimit = 20

type AnalysisHandler struct {
	service *analysissvc.Service
}

func NewAnalysisHandler(service *analysissvc.Service) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "ANALYSIS_SERVICE_UNAVAILABLE", "analysis service is unavailable")
		return
	}

	var req dto.AnalysisCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !validate.Required(req.Situation) {
		writeBadRequest(w, "VALIDATION_ERROR", "situation is required")
		return
	}

	result, err := h.service.Create(r.Context(), identityFromRequest(r), req.Situation, req.Options)
	if err != nil {
		h.handleError(w, err)
		return
	}

	payload := mapAnalysisRecord(result.Record)
	payload.Plan = result.Plan
	payload.RemainingFree = result.RemainingFree
	payload.Degraded = result.Degraded
	httperrors.Write(w, http.StatusOK, payload)
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "ANALYSIS_SERVICE_UNAVAILABLE", "analysis service is unavailable")
		return
	}

	records, err := h.service.List(r.Context(), identityFromRequest(r), defaultAnalysisListLimit)
	if err != nil {
		h.handleError(w, err)
		return
	}

	items := make([]dto.AnalysisResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, mapAnalysisRecord(rec))
	}
	httperrors.Write(w, http.StatusOK, dto.AnalysisListResponse{Items: items})
}

func (h *AnalysisHandler) AddCheckpoint(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "ANALYSIS_SERVICE_UNAVAILABLE", "analysis service is unavailable")
		return
	}

	var req dto.CheckpointCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	rec, err := h.service.AddCheckpoint(r.Context(), identityFromRequest(r), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		h.handleError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, mapCheckpointRecord(rec))
}

func (h *AnalysisHandler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "ANALYSIS_SERVICE_UNAVAILABLE", "analysis service is unavailable")
		return
	}

	records, err := h.service.ListCheckpoints(r.Context(), identityFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	items := make([]dto.CheckpointResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, mapCheckpointRecord(rec))
	}
	httperrors.Write(w, http.StatusOK, dto.CheckpointListResponse{Items: items})
}

func (h *AnalysisHandler) handleError(w http.ResponseWriter, err error) {
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
	case errors.Is(err, analysissvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	case errors.Is(err, analysissvc.ErrNotFound):
		writeNotFound(w, "ANALYSIS_NOT_FOUND", "analysis not found")
	case errors.Is(err, analysissvc.ErrCompletionFailed):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "UPSTREAM_FAILED",
			Message: "completion provider failed",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process analysis request")
	}
}

func mapAnalysisRecord(rec pgrepo.AnalysisRecord) dto.AnalysisResponse {
	return dto.AnalysisResponse{
		ID:        rec.ID,
		Situation: rec.Situation,
		Options:   rec.Options,
		Analysis:  rec.Analysis,
		Model:     rec.Model,
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

func mapCheckpointRecord(rec pgrepo.CheckpointRecord) dto.CheckpointResponse {
	return dto.CheckpointResponse{
		ID:         rec.ID,
		AnalysisID: rec.AnalysisID,
		Note:       rec.Note,
		CreatedAt:  rec.CreatedAt.UTC(),
	}
}
