package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/enums"
)

type eventStoreStub struct {
	seen     map[string]bool
	recorded []string
	seenErr  error
	raceLost bool
}

func newEventStoreStub() *eventStoreStub {
	return &eventStoreStub{seen: make(map[string]bool)}
}

func (s *eventStoreStub) key(provider, eventID string) string {
	return provider + "/" + eventID
}

func (s *eventStoreStub) SeenEvent(_ context.Context, provider, eventID string) (bool, error) {
	if s.seenErr != nil {
		return false, s.seenErr
	}
	return s.seen[s.key(provider, eventID)], nil
}

func (s *eventStoreStub) RecordEvent(_ context.Context, provider, eventID, _, _ string) (bool, error) {
	if s.raceLost {
		// A concurrent delivery inserted the row first.
		return false, nil
	}
	k := s.key(provider, eventID)
	if s.seen[k] {
		return false, nil
	}
	s.seen[k] = true
	s.recorded = append(s.recorded, k)
	return true, nil
}

type planStoreStub struct {
	plans map[string]string
	calls int
	err   error
}

func newPlanStoreStub() *planStoreStub {
	return &planStoreStub{plans: make(map[string]string)}
}

func (s *planStoreStub) SetPlanByEmail(_ context.Context, email, plan, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.calls++
	s.plans[email] = plan
	return nil
}

func activated(eventID, email string) WebhookInput {
	return WebhookInput{
		Provider:  "stripe",
		EventID:   eventID,
		EventType: EventSubscriptionActivated,
		Email:     email,
	}
}

func TestWebhookActivationUpgradesToPro(t *testing.T) {
	events := newEventStoreStub()
	plans := newPlanStoreStub()
	svc := NewService(events, plans)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	result, err := svc.HandleWebhook(context.Background(), activated("evt_1", "A@X.com"))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if result.Idempotent {
		t.Fatalf("first delivery must not report idempotent")
	}
	if result.Plan != enums.PlanPro || result.Email != "a@x.com" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if plans.plans["a@x.com"] != "pro" {
		t.Fatalf("plan not upgraded: %+v", plans.plans)
	}
	if len(events.recorded) != 1 {
		t.Fatalf("event must be recorded once: %v", events.recorded)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	events := newEventStoreStub()
	plans := newPlanStoreStub()
	svc := NewService(events, plans)

	if _, err := svc.HandleWebhook(context.Background(), activated("evt_1", "a@x.com")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	result, err := svc.HandleWebhook(context.Background(), activated("evt_1", "a@x.com"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !result.Idempotent {
		t.Fatalf("replay must report idempotent")
	}
	if plans.calls != 1 {
		t.Fatalf("replay must not re-apply the plan: %d calls", plans.calls)
	}
}

func TestWebhookConcurrentDeliveryReportsIdempotent(t *testing.T) {
	events := newEventStoreStub()
	events.raceLost = true
	plans := newPlanStoreStub()
	svc := NewService(events, plans)

	result, err := svc.HandleWebhook(context.Background(), activated("evt_1", "a@x.com"))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	// The unique insert lost the race, so this delivery was a duplicate even
	// though the seen check passed.
	if !result.Idempotent {
		t.Fatalf("lost insert race must report idempotent")
	}
	if plans.plans["a@x.com"] != "pro" {
		t.Fatalf("plan write is idempotent and still applies: %+v", plans.plans)
	}
}

func TestWebhookCancellationDowngradesToFree(t *testing.T) {
	events := newEventStoreStub()
	plans := newPlanStoreStub()
	plans.plans["a@x.com"] = "pro"
	svc := NewService(events, plans)

	result, err := svc.HandleWebhook(context.Background(), WebhookInput{
		Provider:  "stripe",
		EventID:   "evt_2",
		EventType: EventSubscriptionCanceled,
		Email:     "a@x.com",
	})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if result.Plan != enums.PlanFree {
		t.Fatalf("unexpected plan: %s", result.Plan)
	}
	if plans.plans["a@x.com"] != "free" {
		t.Fatalf("plan not downgraded: %+v", plans.plans)
	}
}

func TestWebhookRejectsUnsupportedEvent(t *testing.T) {
	events := newEventStoreStub()
	plans := newPlanStoreStub()
	svc := NewService(events, plans)

	_, err := svc.HandleWebhook(context.Background(), WebhookInput{
		Provider:  "stripe",
		EventID:   "evt_3",
		EventType: "invoice.paid",
		Email:     "a@x.com",
	})
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected unsupported event error, got %v", err)
	}
	if plans.calls != 0 || len(events.recorded) != 0 {
		t.Fatalf("unsupported events must leave no writes")
	}
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	svc := NewService(newEventStoreStub(), newPlanStoreStub())

	for _, in := range []WebhookInput{
		{EventID: "evt", EventType: EventSubscriptionActivated, Email: "a@x.com"},
		{Provider: "stripe", EventType: EventSubscriptionActivated, Email: "a@x.com"},
		{Provider: "stripe", EventID: "evt", EventType: EventSubscriptionActivated},
	} {
		if _, err := svc.HandleWebhook(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
}

func TestWebhookPlanFailureLeavesEventUnrecorded(t *testing.T) {
	events := newEventStoreStub()
	plans := newPlanStoreStub()
	plans.err = errors.New("connection refused")
	svc := NewService(events, plans)

	if _, err := svc.HandleWebhook(context.Background(), activated("evt_1", "a@x.com")); err == nil {
		t.Fatalf("expected plan store error")
	}
	// The event stays unrecorded so the provider retry applies the plan.
	if len(events.recorded) != 0 {
		t.Fatalf("failed delivery must not record the event: %v", events.recorded)
	}
}
