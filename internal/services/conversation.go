package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

const (
	// promptWindowSize is the trailing message count handed to the model.
	promptWindowSize = 12
	// compactionHighWater triggers compaction once the log grows past it.
	compactionHighWater = 300
	// compactionSummarizeCount is how many of the oldest messages are
	// distilled into a summary.
	compactionSummarizeCount = 200
	// compactionDeleteCount is how many of the oldest messages are pruned
	// afterwards. The 50-message overlap keeps a buffer so an interrupted
	// compaction loses nothing.
	compactionDeleteCount = 150
)

// PromptWindow is the context handed to the completion call for one turn:
// the latest summary plus the trailing role-mapped history.
type PromptWindow struct {
	Summary string
	History []ChatTurn
}

// ConversationService maintains the ordered message log, selects the
// trailing prompt window, and compacts the log once it crosses the
// high-water mark.
type ConversationService interface {
	SelectPromptWindow(ctx context.Context, personaID uuid.UUID) (*PromptWindow, error)
	// CompactIfNeeded summarizes then prunes the oldest messages when the
	// log exceeds the high-water mark. Returns true when a summary was
	// written. A summarization failure leaves the log untouched.
	CompactIfNeeded(ctx context.Context, personaID uuid.UUID) (bool, error)
	// ListMessages returns the first limit visible messages in
	// chronological order for the chat page. Synthetic triggers are
	// excluded, and the limit is applied in the query.
	ListMessages(ctx context.Context, personaID uuid.UUID, limit int) ([]*types.Message, error)
	AppendMessages(ctx context.Context, tx *gorm.DB, messages []*types.Message) error
}

type conversationService struct {
	db        *gorm.DB
	log       *logger.Logger
	messages  repos.MessageRepo
	summaries repos.SummaryRepo
	completer GeminiClient
	now       func() time.Time
}

func NewConversationService(db *gorm.DB, baseLog *logger.Logger, messageRepo repos.MessageRepo, summaryRepo repos.SummaryRepo, completer GeminiClient) ConversationService {
	return &conversationService{
		db:        db,
		log:       baseLog.With("service", "ConversationService"),
		messages:  messageRepo,
		summaries: summaryRepo,
		completer: completer,
		now:       time.Now,
	}
}

func (cs *conversationService) SelectPromptWindow(ctx context.Context, personaID uuid.UUID) (*PromptWindow, error) {
	tail, err := cs.messages.ListTail(ctx, nil, personaID, promptWindowSize)
	if err != nil {
		return nil, fmt.Errorf("load message tail: %w", err)
	}

	window := &PromptWindow{}
	for _, msg := range tail {
		switch msg.Sender {
		case types.SenderUser:
			window.History = append(window.History, ChatTurn{Role: "user", Content: msg.Text})
		case types.SenderAI:
			window.History = append(window.History, ChatTurn{Role: "model", Content: msg.Text})
		default:
			// System notices are context, not dialogue; the system prompt
			// already reflects the guidance state they announce.
		}
	}

	latest, err := cs.summaries.Latest(ctx, nil, personaID)
	if err != nil {
		return nil, fmt.Errorf("load latest summary: %w", err)
	}
	if latest != nil {
		window.Summary = latest.Content
	}
	return window, nil
}

func (cs *conversationService) CompactIfNeeded(ctx context.Context, personaID uuid.UUID) (bool, error) {
	count, err := cs.messages.Count(ctx, nil, personaID)
	if err != nil {
		return false, fmt.Errorf("count messages: %w", err)
	}
	if count <= compactionHighWater {
		return false, nil
	}

	oldest, err := cs.messages.ListOldest(ctx, nil, personaID, compactionSummarizeCount)
	if err != nil {
		return false, fmt.Errorf("load oldest messages: %w", err)
	}
	if len(oldest) == 0 {
		return false, nil
	}

	var transcript strings.Builder
	for _, msg := range oldest {
		fmt.Fprintf(&transcript, "%s: %s\n", strings.ToUpper(msg.Sender), msg.Text)
	}

	content, err := cs.completer.SummarizeTranscript(ctx, BuildSummaryPrompt(transcript.String()))
	if err != nil {
		// Fail open: the log keeps growing and chat keeps working.
		return false, fmt.Errorf("summarize transcript: %w", err)
	}

	summary := &types.Summary{
		ID:        uuid.New(),
		PersonaID: personaID,
		Content:   content,
		CreatedAt: cs.now().UTC(),
	}
	if _, err := cs.summaries.Create(ctx, nil, summary); err != nil {
		return false, fmt.Errorf("write summary: %w", err)
	}

	pruneCount := compactionDeleteCount
	if pruneCount > len(oldest) {
		pruneCount = len(oldest)
	}
	pruneIDs := make([]uuid.UUID, 0, pruneCount)
	for _, msg := range oldest[:pruneCount] {
		pruneIDs = append(pruneIDs, msg.ID)
	}
	if err := cs.messages.DeleteByIDs(ctx, nil, pruneIDs); err != nil {
		// The summary is already durable; stale messages get pruned by the
		// next compaction pass.
		cs.log.Warn("Compaction prune failed", "persona_id", personaID, "error", err)
		return true, nil
	}

	cs.log.Info("Conversation compacted", "persona_id", personaID, "summarized", len(oldest), "pruned", pruneCount)
	return true, nil
}

func (cs *conversationService) ListMessages(ctx context.Context, personaID uuid.UUID, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = 25
	}
	return cs.messages.ListVisibleAsc(ctx, nil, personaID, limit)
}

func (cs *conversationService) AppendMessages(ctx context.Context, tx *gorm.DB, messages []*types.Message) error {
	_, err := cs.messages.Append(ctx, tx, messages)
	return err
}
