package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/apierr"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
)

// SessionWindow is how long a persona's conversation stays open once the
// first message arrives.
const SessionWindow = 30 * 24 * time.Hour

// TimerService owns the one-time transition from "created" to "running"
// and the remaining-time computation every read path uses.
type TimerService interface {
	// StartSessionIfNeeded sets started_at/expires_at exactly once. Safe to
	// call on every turn; concurrent callers agree on a single expiry.
	StartSessionIfNeeded(ctx context.Context, personaID uuid.UUID) error
}

type timerService struct {
	db       *gorm.DB
	log      *logger.Logger
	personas repos.PersonaRepo
	now      func() time.Time
}

func NewTimerService(db *gorm.DB, baseLog *logger.Logger, personaRepo repos.PersonaRepo) TimerService {
	return &timerService{
		db:       db,
		log:      baseLog.With("service", "TimerService"),
		personas: personaRepo,
		now:      time.Now,
	}
}

func (ts *timerService) StartSessionIfNeeded(ctx context.Context, personaID uuid.UUID) error {
	return ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		persona, err := ts.personas.GetByID(ctx, tx, personaID)
		if err != nil {
			return fmt.Errorf("load persona: %w", err)
		}
		if persona == nil {
			return apierr.NotFound(fmt.Errorf("persona %s not found", personaID))
		}
		if persona.StartedAt != nil {
			return nil
		}

		now := ts.now().UTC()
		set, err := ts.personas.SetTimerOnce(ctx, tx, personaID, now, now.Add(SessionWindow))
		if err != nil {
			return fmt.Errorf("set timer: %w", err)
		}
		if set {
			ts.log.Info("Session timer started", "persona_id", personaID, "expires_at", now.Add(SessionWindow))
		}
		return nil
	})
}

// ComputeRemainingMs returns nil when no expiry is set, otherwise the
// non-negative number of milliseconds until expiry.
func ComputeRemainingMs(expiresAt *time.Time, now time.Time) *int64 {
	if expiresAt == nil {
		return nil
	}
	remaining := expiresAt.Sub(now).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
