package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/enums"
	"github.com/kmish9685/Persona-AI-sub000/internal/domain/rules"
)

const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCanceled  = "subscription.canceled"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrUnsupportedEvent = errors.New("unsupported event type")
)

type EventStore interface {
	SeenEvent(ctx context.Context, provider, eventID string) (bool, error)
	RecordEvent(ctx context.Context, provider, eventID, eventType, email string) (bool, error)
}

type PlanStore interface {
	SetPlanByEmail(ctx context.Context, email, plan, dayKey string) error
}

type Service struct {
	events EventStore
	plans  PlanStore
	now    func() time.Time
}

type WebhookInput struct {
	Provider  string
	EventID   string
	EventType string
	Email     string
}

type WebhookResult struct {
	Email      string
	Plan       enums.Plan
	Idempotent bool
}

func NewService(events EventStore, plans PlanStore) *Service {
	return &Service{
		events: events,
		plans:  plans,
		now:    time.Now,
	}
}

// HandleWebhook applies one payment provider event. Plan writes run before
// the event is recorded: the plan update is idempotent, so a crash between
// the two steps is healed by the provider's redelivery, while the reverse
// order would swallow the retry as a duplicate without ever applying it.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	eventID := strings.TrimSpace(in.EventID)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if provider == "" || eventID == "" || email == "" {
		return WebhookResult{}, ErrValidation
	}
	if s.events == nil || s.plans == nil {
		return WebhookResult{}, fmt.Errorf("billing stores are not configured")
	}

	plan, err := planForEvent(in.EventType)
	if err != nil {
		return WebhookResult{}, err
	}

	seen, err := s.events.SeenEvent(ctx, provider, eventID)
	if err != nil {
		return WebhookResult{}, err
	}
	if seen {
		return WebhookResult{Email: email, Plan: plan, Idempotent: true}, nil
	}

	dayKey := rules.DayKey(s.now())
	if err := s.plans.SetPlanByEmail(ctx, email, plan.String(), dayKey); err != nil {
		return WebhookResult{}, err
	}

	inserted, err := s.events.RecordEvent(ctx, provider, eventID, in.EventType, email)
	if err != nil {
		return WebhookResult{}, err
	}

	return WebhookResult{Email: email, Plan: plan, Idempotent: !inserted}, nil
}

func planForEvent(eventType string) (enums.Plan, error) {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case EventSubscriptionActivated:
		return enums.PlanPro, nil
	case EventSubscriptionCanceled:
		return enums.PlanFree, nil
	default:
		return "", ErrUnsupportedEvent
	}
}
