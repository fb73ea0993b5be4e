package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/enums"
	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
	"github.com/kmish9685/Persona-AI-sub000/internal/infra/llm"
	"github.com/kmish9685/Persona-AI-sub000/internal/services/quota"
	ratesvc "github.com/kmish9685/Persona-AI-sub000/internal/services/rate"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrCompletionFailed = errors.New("completion provider failed")
	ErrDependenciesNil  = errors.New("chat dependencies are not configured")
)

type Gate interface {
	Evaluate(ctx context.Context, id model.Identity) quota.Decision
}

type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Turn is one prior exchange supplied by the client as rolling context.
type Turn struct {
	Role    string
	Content string
}

type Config struct {
	SystemPrompt    string
	MaxHistoryTurns int
	MaxReplyWords   int
	DenylistPhrases []string
}

type Result struct {
	Reply         string
	Plan          enums.Plan
	RemainingFree int
	Degraded      bool
}

type Service struct {
	gate      Gate
	completer Completer
	limiter   *ratesvc.Limiter
	cfg       Config
}

func NewService(gate Gate, completer Completer, limiter *ratesvc.Limiter, cfg Config) *Service {
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 6
	}
	if cfg.MaxReplyWords <= 0 {
		cfg.MaxReplyWords = 400
	}

	return &Service{
		gate:      gate,
		completer: completer,
		limiter:   limiter,
		cfg:       cfg,
	}
}

// Send relays one user message through the quota gate to the completion
// provider. A message that clears the gate stays consumed even when the
// provider call fails afterwards; there is deliberately no refund or retry,
// so a flapping provider cannot double-spend the daily allowance.
func (s *Service) Send(ctx context.Context, id model.Identity, message string, history []Turn) (Result, error) {
	if strings.TrimSpace(message) == "" {
		return Result{}, ErrValidation
	}
	if s.gate == nil || s.completer == nil {
		return Result{}, ErrDependenciesNil
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.Allow(ctx, id)
		if err == nil && !allowed {
			return Result{}, ratesvc.TooFastError{RetryAfterSec: retryAfter}
		}
		// A broken burst limiter never blocks the request path.
	}

	decision := s.gate.Evaluate(ctx, id)
	if !decision.Allowed {
		return Result{}, quota.DeniedError{Reason: decision.Reason}
	}

	reply, err := s.completer.Complete(ctx, s.buildMessages(message, history))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	return Result{
		Reply:         s.sanitize(reply),
		Plan:          decision.Plan,
		RemainingFree: decision.Remaining,
		Degraded:      decision.Degraded,
	}, nil
}

func (s *Service) buildMessages(message string, history []Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: s.cfg.SystemPrompt})
	}

	if len(history) > s.cfg.MaxHistoryTurns {
		history = history[len(history)-s.cfg.MaxHistoryTurns:]
	}
	for _, turn := range history {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		if role != "user" && role != "assistant" {
			continue
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}

	messages = append(messages, llm.Message{Role: "user", Content: message})
	return messages
}

func (s *Service) sanitize(reply string) string {
	reply = truncateWords(reply, s.cfg.MaxReplyWords)
	for _, phrase := range s.cfg.DenylistPhrases {
		reply = stripPhrase(reply, phrase)
	}
	return strings.TrimSpace(reply)
}

func truncateWords(s string, max int) string {
	if max <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}

// stripPhrase removes case-insensitive occurrences of phrase. Purely
// cosmetic substring surgery; no attempt at semantic cleanup.
func stripPhrase(s, phrase string) string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return s
	}
	lowerPhrase := strings.ToLower(phrase)

	var b strings.Builder
	for {
		idx := strings.Index(strings.ToLower(s), lowerPhrase)
		if idx < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:idx])
		s = s[idx+len(lowerPhrase):]
	}
	return b.String()
}
