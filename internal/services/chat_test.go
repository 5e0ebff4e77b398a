package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/apierr"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

func newChatService(t *testing.T, gdb *gorm.DB, completer GeminiClient, now func() time.Time) ChatService {
	t.Helper()
	nop := logger.NewNop()
	personaRepo := repos.NewPersonaRepo(gdb, nop)
	messageRepo := repos.NewMessageRepo(gdb, nop)
	summaryRepo := repos.NewSummaryRepo(gdb, nop)

	personaService := NewPersonaService(gdb, nop, personaRepo, messageRepo, summaryRepo, repos.NewDeletionAuditRepo(gdb, nop))
	timerService := NewTimerService(gdb, nop, personaRepo).(*timerService)
	timerService.now = now
	guidanceService := NewGuidanceService(gdb, nop, personaRepo, messageRepo).(*guidanceService)
	guidanceService.now = now
	conversationService := NewConversationService(gdb, nop, messageRepo, summaryRepo, completer)

	svc := NewChatService(gdb, nop, personaService, timerService, guidanceService, conversationService, completer).(*chatService)
	svc.now = now
	return svc
}

func TestHandleTurn_FirstMessageStartsTimer(t *testing.T) {
	gdb := newTestDB(t)
	persona := seedPersona(t, gdb, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completer := &fakeCompleter{reply: "Hello, dear."}
	svc := newChatService(t, gdb, completer, func() time.Time { return fixed })

	result, err := svc.HandleTurn(context.Background(), persona.ID, persona.OwnerID, TurnInput{Text: "Hi grandma", ClientMessageID: "client-1"})
	require.NoError(t, err)

	require.Equal(t, types.PersonaStatusActive, result.PersonaStatus)
	require.NotNil(t, result.RemainingMs)
	require.Equal(t, SessionWindow.Milliseconds(), *result.RemainingMs)
	require.Len(t, result.Messages, 2)
	require.Equal(t, types.SenderUser, result.Messages[0].Sender)
	require.Equal(t, "Hi grandma", result.Messages[0].Text)
	require.Equal(t, types.SenderAI, result.Messages[1].Sender)
	require.Equal(t, "Hello, dear.", result.Messages[1].Text)
	require.False(t, result.SummaryAppended)
	require.Equal(t, 1, completer.chatCalls)

	var got types.Persona
	require.NoError(t, gdb.First(&got, "id = ?", persona.ID).Error)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.ExpiresAt)
}

func TestHandleTurn_UserMessagePrecedesReply(t *testing.T) {
	gdb := newTestDB(t)
	persona := seedPersona(t, gdb, nil)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newChatService(t, gdb, &fakeCompleter{reply: "Of course I remember."}, func() time.Time { return current })

	// Several turns so unlucky UUID draws would surface an ordering bug.
	for i := 0; i < 5; i++ {
		_, err := svc.HandleTurn(context.Background(), persona.ID, persona.OwnerID, TurnInput{Text: "do you remember?", ClientMessageID: "client-1"})
		require.NoError(t, err)
		current = current.Add(time.Minute)
	}

	msgs, err := repos.NewMessageRepo(gdb, logger.NewNop()).ListAsc(context.Background(), nil, persona.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i := 0; i < len(msgs); i += 2 {
		require.Equal(t, types.SenderUser, msgs[i].Sender, "turn %d", i/2)
		require.Equal(t, types.SenderAI, msgs[i+1].Sender, "turn %d", i/2)
		require.True(t, msgs[i+1].Timestamp.After(msgs[i].Timestamp))
	}
}

func TestHandleTurn_SyntheticTriggerHiddenFromVisibleSurfaces(t *testing.T) {
	gdb := newTestDB(t)
	persona := seedPersona(t, gdb, nil)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completer := &fakeCompleter{reply: "Hello, it's so good to see you."}
	svc := newChatService(t, gdb, completer, func() time.Time { return current })

	// The client opens the session with a hidden greet instruction.
	opener := "Greet the user warmly as if they just walked in."
	_, err := svc.HandleTurn(context.Background(), persona.ID, persona.OwnerID, TurnInput{Text: opener, ClientMessageID: "client-0", Synthetic: true})
	require.NoError(t, err)

	current = current.Add(time.Minute)
	_, err = svc.HandleTurn(context.Background(), persona.ID, persona.OwnerID, TurnInput{Text: "hi grandma", ClientMessageID: "client-1"})
	require.NoError(t, err)

	// The raw log keeps the trigger, marked by kind.
	raw, err := repos.NewMessageRepo(gdb, logger.NewNop()).ListAsc(context.Background(), nil, persona.ID, 0)
	require.NoError(t, err)
	require.Len(t, raw, 4)
	require.Equal(t, types.MessageKindSyntheticTrigger, raw[0].Kind)
	require.Equal(t, opener, raw[0].Text)

	// The visible listing drops it.
	visible, err := svc.ListMessages(context.Background(), persona.ID, persona.OwnerID, 0)
	require.NoError(t, err)
	require.Len(t, visible, 3)
	for _, msg := range visible {
		require.NotEqual(t, types.MessageKindSyntheticTrigger, msg.Kind)
	}

	// The second turn's prompt history carries the greeting reply but never
	// the instruction itself.
	require.Len(t, completer.lastRequest.History, 1)
	require.Equal(t, "model", completer.lastRequest.History[0].Role)
	require.Equal(t, "Hello, it's so good to see you.", completer.lastRequest.History[0].Content)
}

func TestHandleTurn_ExpiredPersonaRefusedWithoutCompletion(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-31 * 24 * time.Hour)
	expires := started.Add(SessionWindow)
	persona := seedPersona(t, gdb, func(p *types.Persona) {
		p.StartedAt = &started
		p.ExpiresAt = &expires
	})

	completer := &fakeCompleter{reply: "unused"}
	svc := newChatService(t, gdb, completer, func() time.Time { return now })

	_, err := svc.HandleTurn(context.Background(), persona.ID, persona.OwnerID, TurnInput{Text: "hello?", ClientMessageID: "client-1"})
	require.Error(t, err)
	require.Equal(t, apierr.CodePersonaExpired, apierr.From(err).Code)
	require.Zero(t, completer.chatCalls, "no completion call for an expired session")

	// Read-time detection also flips the stored status ahead of the sweep.
	var got types.Persona
	require.NoError(t, gdb.First(&got, "id = ?", persona.ID).Error)
	require.Equal(t, types.PersonaStatusExpired, got.Status)

	// No message was written.
	count, err := repos.NewMessageRepo(gdb, logger.NewNop()).Count(context.Background(), nil, persona.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestHandleTurn_UpstreamFailureWritesNothing(t *testing.T) {
	gdb := newTestDB(t)
	persona := seedPersona(t, gdb, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completer := &fakeCompleter{err: errors.New("model unavailable")}
	svc := newChatService(t, gdb, completer, func() time.Time { return now })

	_, err := svc.HandleTurn(context.Background(), persona.ID, persona.OwnerID, TurnInput{Text: "hello", ClientMessageID: "client-1"})
	require.Error(t, err)
	require.Equal(t, apierr.CodeUpstreamUnavailable, apierr.From(err).Code)

	count, err := repos.NewMessageRepo(gdb, logger.NewNop()).Count(context.Background(), nil, persona.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestHandleTurn_EscalationNoticeInClosureZone(t *testing.T) {
	gdb := newTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-26 * 24 * time.Hour)
	expires := started.Add(SessionWindow)
	persona := seedPersona(t, gdb, func(p *types.Persona) {
		p.StartedAt = &started
		p.ExpiresAt = &expires
	})

	completer := &fakeCompleter{reply: "I am still here."}
	svc := newChatService(t, gdb, completer, func() time.Time { return now })

	result, err := svc.HandleTurn(context.Background(), persona.ID, persona.OwnerID, TurnInput{Text: "hi", ClientMessageID: "client-1"})
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)

	// 4 days remaining: the turn plus the one-time closure notice.
	count, err := repos.NewMessageRepo(gdb, logger.NewNop()).Count(context.Background(), nil, persona.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	var got types.Persona
	require.NoError(t, gdb.First(&got, "id = ?", persona.ID).Error)
	require.Equal(t, 2, got.GuidanceLevel)
}

func TestListMessages_OwnershipEnforced(t *testing.T) {
	gdb := newTestDB(t)
	persona := seedPersona(t, gdb, nil)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedMessages(t, gdb, persona.ID, 3, base)

	svc := newChatService(t, gdb, &fakeCompleter{}, time.Now)

	msgs, err := svc.ListMessages(context.Background(), persona.ID, persona.OwnerID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	_, err = svc.ListMessages(context.Background(), persona.ID, uuid.New(), 0)
	require.Error(t, err)
	require.Equal(t, apierr.CodePersonaNotFound, apierr.From(err).Code)
}
