package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/db"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection keeps the shared in-memory database alive for the
	// whole test.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrateAll(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedPersona(t *testing.T, gdb *gorm.DB, mutate func(*types.Persona)) *types.Persona {
	t.Helper()
	persona := &types.Persona{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		OwnerEmail:   "owner@example.com",
		Name:         "Margaret",
		Relationship: "grandmother",
		Status:       types.PersonaStatusActive,
	}
	if mutate != nil {
		mutate(persona)
	}
	if err := gdb.Create(persona).Error; err != nil {
		t.Fatalf("seed persona: %v", err)
	}
	return persona
}

func seedMessages(t *testing.T, gdb *gorm.DB, personaID uuid.UUID, n int, base time.Time) {
	t.Helper()
	repo := repos.NewMessageRepo(gdb, logger.NewNop())
	batch := make([]*types.Message, 0, n)
	for i := 0; i < n; i++ {
		sender := types.SenderUser
		if i%2 == 1 {
			sender = types.SenderAI
		}
		batch = append(batch, &types.Message{
			ID:        uuid.New(),
			PersonaID: personaID,
			Sender:    sender,
			Kind:      types.MessageKindChat,
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	if _, err := repo.Append(context.Background(), nil, batch); err != nil {
		t.Fatalf("seed messages: %v", err)
	}
}

// fakeCompleter is a scripted GeminiClient for service tests.
type fakeCompleter struct {
	reply          string
	summary        string
	err            error
	chatCalls      int
	summarizeCalls int
	lastRequest    ChatCompletionRequest
}

func (f *fakeCompleter) CompleteChat(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResult, error) {
	f.chatCalls++
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return &ChatCompletionResult{Text: f.reply, Model: "fake-model", TotalTokens: 42}, nil
}

func (f *fakeCompleter) SummarizeTranscript(ctx context.Context, prompt string) (string, error) {
	f.summarizeCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}
