package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/apierr"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/types"
)

const (
	turnTemperature     = 0.8
	turnMaxOutputTokens = 400
)

// TurnResult is the payload returned to the chat caller after one
// completed turn.
type TurnResult struct {
	PersonaStatus   string           `json:"personaStatus"`
	RemainingMs     *int64           `json:"remainingMs"`
	Messages        []*types.Message `json:"messages"`
	SummaryAppended bool             `json:"summaryAppended"`
}

// TurnInput is one inbound chat message. Synthetic marks a hidden client
// instruction (the persona greets the user on entry): it drives the
// completion like any user text but is stored as a synthetic-trigger
// message, which every visible surface filters out.
type TurnInput struct {
	Text            string
	ClientMessageID string
	Synthetic       bool
}

// ChatService runs the per-message state machine: resolve, expiry checks,
// timer start, prompt build, completion, atomic persist, guidance refresh,
// compaction.
type ChatService interface {
	HandleTurn(ctx context.Context, personaID, ownerID uuid.UUID, input TurnInput) (*TurnResult, error)
	ListMessages(ctx context.Context, personaID, ownerID uuid.UUID, limit int) ([]*types.Message, error)
}

type chatService struct {
	db            *gorm.DB
	log           *logger.Logger
	personas      PersonaService
	timer         TimerService
	guidance      GuidanceService
	conversations ConversationService
	completer     GeminiClient
	now           func() time.Time
}

func NewChatService(
	db *gorm.DB,
	baseLog *logger.Logger,
	personaService PersonaService,
	timerService TimerService,
	guidanceService GuidanceService,
	conversationService ConversationService,
	completer GeminiClient,
) ChatService {
	return &chatService{
		db:            db,
		log:           baseLog.With("service", "ChatService"),
		personas:      personaService,
		timer:         timerService,
		guidance:      guidanceService,
		conversations: conversationService,
		completer:     completer,
		now:           time.Now,
	}
}

// expiredAtReadTime reports whether the persona must refuse further turns.
// Expiry is detected at read time so a chat sent before the sweep runs
// still comes back 410.
func (s *chatService) expiredAtReadTime(persona *types.Persona) bool {
	if persona.Status == types.PersonaStatusExpired {
		return true
	}
	return persona.ExpiresAt != nil && !persona.ExpiresAt.After(s.now())
}

func (s *chatService) HandleTurn(ctx context.Context, personaID, ownerID uuid.UUID, input TurnInput) (*TurnResult, error) {
	persona, err := s.personas.ResolveOwned(ctx, personaID, ownerID)
	if err != nil {
		return nil, err
	}
	if s.expiredAtReadTime(persona) {
		s.markExpired(ctx, persona)
		return nil, apierr.Expired(fmt.Errorf("persona %s session has ended", personaID))
	}

	if err := s.timer.StartSessionIfNeeded(ctx, personaID); err != nil {
		return nil, err
	}

	// Re-resolve: the timer call may have just populated expires_at.
	persona, err = s.personas.ResolveOwned(ctx, personaID, ownerID)
	if err != nil {
		return nil, err
	}
	if s.expiredAtReadTime(persona) {
		s.markExpired(ctx, persona)
		return nil, apierr.Expired(fmt.Errorf("persona %s session has ended", personaID))
	}

	window, err := s.conversations.SelectPromptWindow(ctx, personaID)
	if err != nil {
		return nil, err
	}

	systemPrompt := BuildPersonaSystemPrompt(persona, persona.GuidanceLevel, window.Summary, s.now())
	completion, err := s.completer.CompleteChat(ctx, ChatCompletionRequest{
		SystemPrompt:    systemPrompt,
		History:         window.History,
		UserMessage:     input.Text,
		Temperature:     turnTemperature,
		MaxOutputTokens: turnMaxOutputTokens,
	})
	if err != nil {
		// No partial write: nothing has been persisted for this turn yet.
		return nil, apierr.Upstream(fmt.Errorf("completion call failed: %w", err))
	}

	now := s.now().UTC()
	userKind := types.MessageKindChat
	if input.Synthetic {
		userKind = types.MessageKindSyntheticTrigger
	}
	userMsg := &types.Message{
		ID:        uuid.New(),
		PersonaID: personaID,
		Sender:    types.SenderUser,
		Kind:      userKind,
		Text:      input.Text,
		Timestamp: now,
		Meta: datatypes.JSONMap{
			"clientMessageId": input.ClientMessageID,
			"clientCreated":   now.Format(time.RFC3339),
		},
	}
	// The reply sits one tick after the user message so (timestamp, id)
	// ordering never interleaves the halves of a turn.
	aiMsg := &types.Message{
		ID:        uuid.New(),
		PersonaID: personaID,
		Sender:    types.SenderAI,
		Kind:      types.MessageKindChat,
		Text:      completion.Text,
		Timestamp: now.Add(time.Millisecond),
		Meta: datatypes.JSONMap{
			"llmModel":  completion.Model,
			"llmTokens": completion.TotalTokens,
		},
	}

	// Both turn halves land in one batch write.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.conversations.AppendMessages(ctx, tx, []*types.Message{userMsg, aiMsg})
	})
	if err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}

	if _, err := s.guidance.ApplyEscalation(ctx, persona); err != nil {
		s.log.Warn("Guidance escalation failed", "persona_id", personaID, "error", err)
	}

	summaryAppended, err := s.conversations.CompactIfNeeded(ctx, personaID)
	if err != nil {
		// Fail open: compaction must never fail the turn.
		s.log.Warn("Compaction failed", "persona_id", personaID, "error", err)
	}

	return &TurnResult{
		PersonaStatus:   persona.Status,
		RemainingMs:     ComputeRemainingMs(persona.ExpiresAt, s.now()),
		Messages:        []*types.Message{userMsg, aiMsg},
		SummaryAppended: summaryAppended,
	}, nil
}

// markExpired flips a past-expiry persona to expired without waiting for
// the sweep. Failures are logged only; the caller already refuses the turn.
func (s *chatService) markExpired(ctx context.Context, persona *types.Persona) {
	if persona.Status == types.PersonaStatusExpired {
		return
	}
	if err := s.personas.MarkExpired(ctx, persona.ID); err != nil {
		s.log.Warn("Failed to mark persona expired", "persona_id", persona.ID, "error", err)
		return
	}
	persona.Status = types.PersonaStatusExpired
}

func (s *chatService) ListMessages(ctx context.Context, personaID, ownerID uuid.UUID, limit int) ([]*types.Message, error) {
	if _, err := s.personas.ResolveOwned(ctx, personaID, ownerID); err != nil {
		return nil, err
	}
	return s.conversations.ListMessages(ctx, personaID, limit)
}
