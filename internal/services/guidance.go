package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

// GuidanceClosureLevel is the level at or above which the session is in
// the guided-closure zone (7 days or less remaining).
const GuidanceClosureLevel = 2

const closureReminderText = "Guided closure reminder: take a moment to reflect on a cherished memory together."

// GuidanceService maps time-to-expiry onto a discrete guidance level and
// appends the closure notice when a session escalates to a level inside
// the closure zone.
type GuidanceService interface {
	// ApplyEscalation recomputes the guidance level and persists it when it
	// changed. The system notice fires on each upward crossing that lands
	// at level >= GuidanceClosureLevel, never repeatedly at the same level.
	// Returns the level now in effect.
	ApplyEscalation(ctx context.Context, persona *types.Persona) (int, error)
}

type guidanceService struct {
	db       *gorm.DB
	log      *logger.Logger
	personas repos.PersonaRepo
	messages repos.MessageRepo
	now      func() time.Time
}

func NewGuidanceService(db *gorm.DB, baseLog *logger.Logger, personaRepo repos.PersonaRepo, messageRepo repos.MessageRepo) GuidanceService {
	return &guidanceService{
		db:       db,
		log:      baseLog.With("service", "GuidanceService"),
		personas: personaRepo,
		messages: messageRepo,
		now:      time.Now,
	}
}

// DeriveGuidanceLevel is a pure function of days remaining until expiry.
// Boundary values resolve to the more urgent bracket.
func DeriveGuidanceLevel(expiresAt *time.Time, now time.Time) int {
	if expiresAt == nil {
		return 0
	}
	daysRemaining := float64(expiresAt.Sub(now)) / float64(24*time.Hour)
	switch {
	case daysRemaining <= 1:
		return 3
	case daysRemaining <= 7:
		return 2
	case daysRemaining <= 14:
		return 1
	default:
		return 0
	}
}

func (gs *guidanceService) ApplyEscalation(ctx context.Context, persona *types.Persona) (int, error) {
	if persona == nil {
		return 0, fmt.Errorf("persona required")
	}

	newLevel := DeriveGuidanceLevel(persona.ExpiresAt, gs.now())
	if newLevel == persona.GuidanceLevel {
		return newLevel, nil
	}

	err := gs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := gs.personas.UpdateFields(ctx, tx, persona.ID, map[string]any{"guidance_level": newLevel}); err != nil {
			return fmt.Errorf("persist guidance level: %w", err)
		}

		if newLevel > persona.GuidanceLevel && newLevel >= GuidanceClosureLevel {
			notice := &types.Message{
				ID:        uuid.New(),
				PersonaID: persona.ID,
				Sender:    types.SenderSystem,
				Kind:      types.MessageKindChat,
				Text:      closureReminderText,
				Timestamp: gs.now().UTC(),
			}
			if _, err := gs.messages.Append(ctx, tx, []*types.Message{notice}); err != nil {
				return fmt.Errorf("append closure notice: %w", err)
			}
			gs.log.Info("Guidance escalated into closure zone", "persona_id", persona.ID, "from", persona.GuidanceLevel, "to", newLevel)
		}
		return nil
	})
	if err != nil {
		return persona.GuidanceLevel, err
	}

	persona.GuidanceLevel = newLevel
	return newLevel, nil
}
