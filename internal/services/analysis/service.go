package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
	"github.com/kmish9685/Persona-AI-sub000/internal/infra/llm"
	pgrepo "github.com/kmish9685/Persona-AI-sub000/internal/repo/postgres"
	"github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
	ratesvc "github.com/kmish9685/Persona-AI-sub000/internal/services/rate"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("analysis not found")
	ErrCompletionFailed = errors.New("completion provider failed")
	ErrDependenciesNil  = errors.New("analysis dependencies are not configured")
)

type Gate interface {
	Evaluate(ctx context.Context, id model.Identity) quota.Decision
}

type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type Store interface {
	Insert(ctx context.Context, rec pgrepo.AnalysisRecord) error
	ListByIdentity(ctx context.Context, id model.Identity, limit int) ([]pgrepo.AnalysisRecord, error)
	FindByID(ctx context.Context, id model.Identity, analysisID string) (pgrepo.AnalysisRecord, error)
	InsertCheckpoint(ctx context.Context, rec pgrepo.CheckpointRecord) error
	ListCheckpoints(ctx context.Context, analysisID string) ([]pgrepo.CheckpointRecord, error)
}

// Archive receives full analysis transcripts for cold storage. Failures are
// logged and swallowed; archival never gates the response.
type Archive interface {
	Store(ctx context.Context, key string, payload []byte) error
}

type Config struct {
	SystemPrompt string
	Model        string
	MaxOptions   int
}

type Service struct {
	gate      Gate
	completer Completer
	store     Store
	archive   Archive
	limiter   *ratesvc.Limiter
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

type Result struct {
	Record        pgrepo.AnalysisRecord
	Plan          string
	RemainingFree int
	Degraded      bool
}

func NewService(gate Gate, completer Completer, store Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxOptions <= 0 {
		cfg.MaxOptions = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		gate:      gate,
		completer: completer,
		store:     store,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Service) AttachArchive(archive Archive) {
	s.archive = archive
}

func (s *Service) AttachLimiter(limiter *ratesvc.Limiter) {
	s.limiter = limiter
}

// Create runs one gated decision analysis and persists the result. The gate
// decision is final before the provider is called; a provider failure after an
// allowed decision does not refund the consumed message.
func (s *Service) Create(ctx context.Context, id model.Identity, situation string, options []string) (Result, error) {
	if strings.TrimSpace(situation) == "" {
		return Result{}, ErrValidation
	}
	if s.gate == nil || s.completer == nil {
		return Result{}, ErrDependenciesNil
	}

	if len(options) > s.cfg.MaxOptions {
		options = options[:s.cfg.MaxOptions]
	}
	cleaned := make([]string, 0, len(options))
	for _, opt := range options {
		if strings.TrimSpace(opt) != "" {
			cleaned = append(cleaned, strings.TrimSpace(opt))
		}
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.Allow(ctx, id)
		if err == nil && !allowed {
			return Result{}, ratesvc.TooFastError{RetryAfterSec: retryAfter}
		}
	}

	decision := s.gate.Evaluate(ctx, id)
	if !decision.Allowed {
		return Result{}, quota.DeniedError{Reason: decision.Reason}
	}

	text, err := s.completer.Complete(ctx, s.buildMessages(situation, cleaned))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	rec := pgrepo.AnalysisRecord{
		ID:            uuid.NewString(),
		IdentityKind:  string(id.Kind),
		IdentityValue: id.Value,
		Situation:     situation,
		Options:       cleaned,
		Analysis:      text,
		Model:         s.cfg.Model,
		CreatedAt:     s.now().UTC(),
	}

	// Persistence is best effort: a lost record never costs the user the
	// analysis they already paid a quota message for.
	if s.store != nil {
		if err := s.store.Insert(ctx, rec); err != nil {
			s.logger.Warn("persist analysis record failed", zap.Error(err), zap.String("analysis_id", rec.ID))
		}
	}
	s.archiveTranscript(ctx, rec)

	return Result{
		Record:        rec,
		Plan:          decision.Plan.String(),
		RemainingFree: decision.Remaining,
		Degraded:      decision.Degraded,
	}, nil
}

func (s *Service) List(ctx context.Context, id model.Identity, limit int) ([]pgrepo.AnalysisRecord, error) {
	if !id.Valid() {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, ErrDependenciesNil
	}
	return s.store.ListByIdentity(ctx, id, limit)
}

func (s *Service) AddCheckpoint(ctx context.Context, id model.Identity, analysisID, note string) (pgrepo.CheckpointRecord, error) {
	if !id.Valid() || strings.TrimSpace(analysisID) == "" || strings.TrimSpace(note) == "" {
		return pgrepo.CheckpointRecord{}, ErrValidation
	}
	if s.store == nil {
		return pgrepo.CheckpointRecord{}, ErrDependenciesNil
	}

	if _, err := s.store.FindByID(ctx, id, analysisID); err != nil {
		if errors.Is(err, pgrepo.ErrAnalysisNotFound) {
			return pgrepo.CheckpointRecord{}, ErrNotFound
		}
		return pgrepo.CheckpointRecord{}, err
	}

	rec := pgrepo.CheckpointRecord{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		Note:       strings.TrimSpace(note),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertCheckpoint(ctx, rec); err != nil {
		return pgrepo.CheckpointRecord{}, err
	}

	return rec, nil
}

func (s *Service) ListCheckpoints(ctx context.Context, id model.Identity, analysisID string) ([]pgrepo.CheckpointRecord, error) {
	if !id.Valid() || strings.TrimSpace(analysisID) == "" {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, ErrDependenciesNil
	}

	if _, err := s.store.FindByID(ctx, id, analysisID); err != nil {
		if errors.Is(err, pgrepo.ErrAnalysisNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.store.ListCheckpoints(ctx, analysisID)
}

func (s *Service) buildMessages(situation string, options []string) []llm.Message {
	var prompt strings.Builder
	prompt.WriteString("Situation:\n")
	prompt.WriteString(situation)
	if len(options) > 0 {
		prompt.WriteString("\n\nOptions under consideration:\n")
		for i, opt := range options {
			fmt.Fprintf(&prompt, "%d. %s\n", i+1, opt)
		}
	}

	messages := make([]llm.Message, 0, 2)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: s.cfg.SystemPrompt})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt.String()})
	return messages
}

func (s *Service) archiveTranscript(ctx context.Context, rec pgrepo.AnalysisRecord) {
	if s.archive == nil {
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("marshal analysis transcript failed", zap.Error(err), zap.String("analysis_id", rec.ID))
		return
	}

	key := fmt.Sprintf("analyses/%s/%s.json", rec.CreatedAt.Format("2006-01-02"), rec.ID)
	if err := s.archive.Store(ctx, key, payload); err != nil {
		s.logger.Warn("archive analysis transcript failed", zap.Error(err), zap.String("analysis_id", rec.ID))
	}
}
