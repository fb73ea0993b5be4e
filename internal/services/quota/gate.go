package quota

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/enums"
	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
	"github.com/kmish9685/Persona-AI-sub000/internal/domain/rules"
	pgrepo "github.com/kmish9685/Persona-AI-sub000/internal/repo/postgres"
)

// DenyReason explains a blocked request. It is surfaced verbatim in the
// HTTP 402 payload.
type DenyReason string

const (
	DenyGlobalCap  DenyReason = "global_cap_reached"
	DenyDailyLimit DenyReason = "daily_limit_reached"
)

type UserStore interface {
	GetOrCreate(ctx context.Context, id model.Identity, dayKey string) (pgrepo.UserQuotaRecord, error)
	ConsumeMessage(ctx context.Context, id model.Identity, dayKey string, limit int) (int, error)
	RefundMessage(ctx context.Context, id model.Identity, dayKey string) error
}

type StatsStore interface {
	TotalForDay(ctx context.Context, dayKey string) (int, error)
	IncrementTotal(ctx context.Context, dayKey string, cap int) (int, error)
}

// Decision is the gate's only output. Evaluate never returns an error: store
// failures surface as an allowed decision with Degraded set, so an outage can
// slow billing accuracy but never the product.
type Decision struct {
	Allowed   bool
	Plan      enums.Plan
	Remaining int
	Reason    DenyReason
	Degraded  bool
}

type Config struct {
	FreeMessagesPerDay int
	GlobalDailyCap     int
}

type Service struct {
	users  UserStore
	stats  StatsStore
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

func NewService(users UserStore, stats StatsStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.FreeMessagesPerDay <= 0 {
		cfg.FreeMessagesPerDay = rules.FreeMessagesPerDay
	}
	if cfg.GlobalDailyCap <= 0 {
		cfg.GlobalDailyCap = rules.GlobalDailyCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		users:  users,
		stats:  stats,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Evaluate decides whether one request may proceed and records the
// consumption. The order is fixed: global cap first (plan-agnostic), then
// identity resolution, daily reset, and the plan branch.
func (s *Service) Evaluate(ctx context.Context, id model.Identity) Decision {
	decision, err := s.evaluate(ctx, id)
	if err != nil {
		s.logger.Warn("quota store unavailable, failing open", zap.Error(err))
		return Decision{
			Allowed:   true,
			Plan:      enums.PlanErrorFallback,
			Remaining: rules.FallbackRemaining,
			Degraded:  true,
		}
	}
	return decision
}

func (s *Service) evaluate(ctx context.Context, id model.Identity) (Decision, error) {
	if !id.Valid() {
		id = model.ByIP(rules.UnknownIPBucket)
	}
	dayKey := rules.DayKey(s.now())

	total, err := s.stats.TotalForDay(ctx, dayKey)
	if err != nil {
		return Decision{}, err
	}
	if total >= s.cfg.GlobalDailyCap {
		return Decision{Allowed: false, Reason: DenyGlobalCap}, nil
	}

	rec, err := s.users.GetOrCreate(ctx, id, dayKey)
	if err != nil {
		return Decision{}, err
	}
	plan, ok := enums.ParsePlan(rec.Plan)
	if !ok {
		plan = enums.PlanFree
	}

	if plan == enums.PlanPro {
		if _, err := s.stats.IncrementTotal(ctx, dayKey, s.cfg.GlobalDailyCap); err != nil {
			if errors.Is(err, pgrepo.ErrGlobalCapReached) {
				return Decision{Allowed: false, Plan: enums.PlanPro, Reason: DenyGlobalCap}, nil
			}
			return Decision{}, err
		}
		return Decision{Allowed: true, Plan: enums.PlanPro, Remaining: rules.ProRemainingSentinel}, nil
	}

	msgCount, err := s.users.ConsumeMessage(ctx, id, dayKey, s.cfg.FreeMessagesPerDay)
	if err != nil {
		if errors.Is(err, pgrepo.ErrDailyLimitReached) {
			return Decision{Allowed: false, Plan: enums.PlanFree, Reason: DenyDailyLimit}, nil
		}
		return Decision{}, err
	}

	if _, err := s.stats.IncrementTotal(ctx, dayKey, s.cfg.GlobalDailyCap); err != nil {
		if errors.Is(err, pgrepo.ErrGlobalCapReached) {
			// The per-identity count was already taken; give it back so the
			// denial does not burn a free message.
			if rerr := s.users.RefundMessage(ctx, id, dayKey); rerr != nil {
				s.logger.Warn("refund after global cap denial failed", zap.Error(rerr))
			}
			return Decision{Allowed: false, Plan: enums.PlanFree, Reason: DenyGlobalCap}, nil
		}
		return Decision{}, err
	}

	remaining := s.cfg.FreeMessagesPerDay - msgCount
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Plan: enums.PlanFree, Remaining: remaining}, nil
}

// Snapshot reports the current allowance without consuming a message. The row
// is still created lazily for unseen identities.
type Snapshot struct {
	Plan      enums.Plan
	Remaining int
	ResetAt   time.Time
}

func (s *Service) GetSnapshot(ctx context.Context, id model.Identity) (Snapshot, error) {
	if !id.Valid() {
		id = model.ByIP(rules.UnknownIPBucket)
	}
	now := s.now()
	dayKey := rules.DayKey(now)

	rec, err := s.users.GetOrCreate(ctx, id, dayKey)
	if err != nil {
		return Snapshot{}, err
	}
	plan, ok := enums.ParsePlan(rec.Plan)
	if !ok {
		plan = enums.PlanFree
	}

	snapshot := Snapshot{
		Plan:    plan,
		ResetAt: rules.NextResetAt(now),
	}
	if plan == enums.PlanPro {
		snapshot.Remaining = rules.ProRemainingSentinel
		return snapshot, nil
	}

	remaining := s.cfg.FreeMessagesPerDay
	if rules.DayKey(rec.LastActiveDate) == dayKey {
		remaining -= rec.MsgCount
	}
	if remaining < 0 {
		remaining = 0
	}
	snapshot.Remaining = remaining
	return snapshot, nil
}
