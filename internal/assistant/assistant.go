// Package assistant is the voice/chat loop: it turns a member's transcript
// into an assistant reply, extracts the embedded directive and hands it to
// the orchestrator, then returns the message to speak back.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"homeflow/internal/intent"
	"homeflow/internal/model"
	"homeflow/internal/orchestrator"
	"homeflow/internal/policy"
	"homeflow/internal/reply"
)

var (
	ErrVoiceNotAllowed  = errors.New("voice control not permitted")
	ErrTooManyRequests  = errors.New("too many assistant requests")
	ErrAssistantOffline = errors.New("assistant unavailable")
)

// TextSource produces a raw reply for a transcript. Real speech and LLM
// backends live behind this boundary; the simulated source ships with the
// service.
type TextSource interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

type Service struct {
	logger  *slog.Logger
	source  TextSource
	policy  *policy.Engine
	orch    *orchestrator.Orchestrator
	limiter *RateLimiter
}

func NewService(logger *slog.Logger, source TextSource, engine *policy.Engine, orch *orchestrator.Orchestrator, limiter *RateLimiter) *Service {
	return &Service{
		logger:  logger.With("component", "assistant"),
		source:  source,
		policy:  engine,
		orch:    orch,
		limiter: limiter,
	}
}

// Handle runs one transcript through the full pipeline on behalf of the
// acting member and returns the message to present. Retrying a failed
// command is the caller's concern; Handle executes each transcript exactly
// once.
func (s *Service) Handle(ctx context.Context, actor *model.Member, transcript string) (string, error) {
	if !s.policy.Can(actor, model.ControlVoice) {
		return "", ErrVoiceNotAllowed
	}
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, actor.ID.String()); err != nil {
			return "", err
		}
	}

	raw, err := s.source.Reply(ctx, transcript)
	if err != nil {
		s.logger.Warn("Assistant source failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrAssistantOffline, err)
	}

	res := reply.Parse(raw)
	if res.Payload == nil {
		return reply.Utterance(raw, res), nil
	}

	cmd := intent.NormalizeCommand(*res.Payload)
	if cmd.Action == model.ActionNone {
		return reply.Utterance(raw, res), nil
	}
	// Prefer the conversational remainder over the payload's say field, but
	// leave Say empty when the assistant supplied neither: the orchestrator
	// synthesizes its own sentence then.
	if remainder := strings.TrimSpace(res.Remainder); remainder != "" {
		cmd.Say = remainder
	}
	return s.orch.Execute(ctx, actor, cmd), nil
}
