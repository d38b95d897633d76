package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/PabloGalante/chat-relay/internal/domain"
	"github.com/PabloGalante/chat-relay/internal/observability"
)

const DefaultAITimeout = 30 * time.Second

type Options struct {
	// AITimeout bounds each call to the AI service.
	AITimeout time.Duration
	// MaxTurns caps stored history; 0 keeps everything.
	MaxTurns int
}

type Service struct {
	ai     domain.AIClient
	store  domain.SessionStore
	locker *Locker
	opts   Options
}

func NewService(ai domain.AIClient, store domain.SessionStore, opts Options) *Service {
	if opts.AITimeout <= 0 {
		opts.AITimeout = DefaultAITimeout
	}
	if opts.MaxTurns < 0 {
		opts.MaxTurns = 0
	}

	return &Service{
		ai:     ai,
		store:  store,
		locker: NewLocker(),
		opts:   opts,
	}
}

type SendMessageInput struct {
	Identity domain.Identity
	Text     string
}

type SendMessageOutput struct {
	Reply string
	// Turns is the stored conversation length after this exchange.
	Turns int
}

// SendMessage relays one user message to the AI service and persists the
// resulting user/assistant pair. On any failure nothing is persisted.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (_ *SendMessageOutput, err error) {
	ctx, span := observability.Tracer().Start(ctx, "relay.handle")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "send message failed")
		}
		span.End()
	}()

	log := observability.LoggerFromContext(ctx).With(
		"identity", observability.Redact(string(in.Identity)),
	)
	log.Debug("message received")

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	log.Debug("message validated")

	unlock, err := s.locker.Lock(ctx, in.Identity)
	if err != nil {
		return nil, fmt.Errorf("waiting for conversation lock: %w", err)
	}
	defer unlock()

	history, err := s.loadHistory(ctx, in.Identity)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("history.turns", len(history)))
	log.Debug("history loaded", "turns", len(history))

	pending := history.Append(domain.UserTurn(text))

	log.Debug("dispatching to ai service")
	reply, err := s.reply(ctx, pending)
	if err != nil {
		log.Error("ai service failed", "error", err)
		return nil, err
	}

	updated := pending.Append(domain.AssistantTurn(reply)).Trim(s.opts.MaxTurns)
	if err := s.store.Save(ctx, in.Identity, updated); err != nil {
		log.Error("failed to save conversation", "error", err)
		return nil, err
	}

	log.Info("send message completed", "turns", len(updated))

	return &SendMessageOutput{Reply: reply, Turns: len(updated)}, nil
}

func (s *Service) reply(ctx context.Context, pending domain.Conversation) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()

	ctx, span := observability.Tracer().Start(ctx, "ai.reply")
	defer span.End()

	reply, err := s.ai.Reply(ctx, pending)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ai reply failed")
		return "", fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if strings.TrimSpace(reply) == "" {
		span.SetStatus(codes.Error, "empty reply")
		return "", fmt.Errorf("%w: empty reply", domain.ErrUpstream)
	}
	return reply, nil
}

// loadHistory returns the stored conversation. A corrupted conversation is
// reset and replaced by an empty one.
func (s *Service) loadHistory(ctx context.Context, id domain.Identity) (domain.Conversation, error) {
	conv, err := s.store.Load(ctx, id)
	if err == nil {
		err = conv.Validate()
	}
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrSessionCorrupted) {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Warn("resetting corrupted conversation",
		"identity", observability.Redact(string(id)),
		"error", err,
	)
	if err := s.store.Expire(ctx, id); err != nil {
		return nil, err
	}
	return domain.Conversation{}, nil
}

// History returns the stored conversation for id.
func (s *Service) History(ctx context.Context, id domain.Identity) (domain.Conversation, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("waiting for conversation lock: %w", err)
	}
	defer unlock()

	return s.loadHistory(ctx, id)
}

// Reset forgets the conversation for id.
func (s *Service) Reset(ctx context.Context, id domain.Identity) error {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("waiting for conversation lock: %w", err)
	}
	defer unlock()

	if err := s.store.Expire(ctx, id); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Info("conversation reset",
		"identity", observability.Redact(string(id)),
	)
	return nil
}
