package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
	pgrepo "github.com/kmish9685/Persona-AI-sub000/internal/repo/postgres"
	authsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/auth"
	quotasvc "github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
)

type quotaUsersStub struct {
	record pgrepo.UserQuotaRecord
}

func (s *quotaUsersStub) GetOrCreate(_ context.Context, _ model.Identity, _ string) (pgrepo.UserQuotaRecord, error) {
	return s.record, nil
}

func (s *quotaUsersStub) ConsumeMessage(_ context.Context, _ model.Identity, _ string, _ int) (int, error) {
	return 0, nil
}

func (s *quotaUsersStub) RefundMessage(_ context.Context, _ model.Identity, _ string) error {
	return nil
}

type quotaStatsStub struct{}

func (s *quotaStatsStub) TotalForDay(_ context.Context, _ string) (int, error) { return 0, nil }

func (s *quotaStatsStub) IncrementTotal(_ context.Context, _ string, _ int) (int, error) {
	return 1, nil
}

func TestQuotaHandlerReportsRemaining(t *testing.T) {
	users := &quotaUsersStub{record: pgrepo.UserQuotaRecord{
		Plan:           "free",
		MsgCount:       4,
		LastActiveDate: time.Now().UTC(),
	}}
	service := quotasvc.NewService(users, &quotaStatsStub{}, quotasvc.Config{}, nil)
	handler := NewQuotaHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	req = req.WithContext(authsvc.WithIdentity(req.Context(), model.ByEmail("a@x.com")))
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		Plan          string    `json:"plan"`
		RemainingFree int       `json:"remaining_free"`
		ResetAt       time.Time `json:"reset_at"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Plan != "free" || payload.RemainingFree != 6 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !payload.ResetAt.After(time.Now().UTC()) {
		t.Fatalf("reset_at must be in the future: %v", payload.ResetAt)
	}
}

func TestQuotaHandlerProSentinel(t *testing.T) {
	users := &quotaUsersStub{record: pgrepo.UserQuotaRecord{Plan: "pro"}}
	service := quotasvc.NewService(users, &quotaStatsStub{}, quotasvc.Config{}, nil)
	handler := NewQuotaHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	req = req.WithContext(authsvc.WithIdentity(req.Context(), model.ByEmail("pro@x.com")))
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload struct {
		RemainingFree int `json:"remaining_free"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.RemainingFree != 9999 {
		t.Fatalf("unexpected remaining: %d", payload.RemainingFree)
	}
}
