package jobs

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/services"
	"github.com/rememory-app/backend/internal/types"
	"github.com/rememory-app/backend/internal/utils"
)

const reminderWindow = 3 * 24 * time.Hour

// ExpirationSweep periodically scans for personas that have crossed their
// expiry, and for personas entering the final 3 days that still need a
// reminder. A failure on one persona never blocks the rest of the sweep.
type ExpirationSweep struct {
	db       *gorm.DB
	log      *logger.Logger
	personas repos.PersonaRepo
	notifier services.NotifierService
	interval time.Duration
	now      func() time.Time
}

func NewExpirationSweep(db *gorm.DB, baseLog *logger.Logger, personaRepo repos.PersonaRepo, notifier services.NotifierService) *ExpirationSweep {
	log := baseLog.With("job", "ExpirationSweep")
	intervalMinutes := utils.GetEnvAsInt("SWEEP_INTERVAL_MINUTES", 360, log)
	return &ExpirationSweep{
		db:       db,
		log:      log,
		personas: personaRepo,
		notifier: notifier,
		interval: time.Duration(intervalMinutes) * time.Minute,
		now:      time.Now,
	}
}

func (s *ExpirationSweep) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run once at startup so a long interval does not delay overdue
		// expirations after a restart.
		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single sweep pass. Errors are logged per persona and
// never returned; the next tick retries anything left undone.
func (s *ExpirationSweep) RunOnce(ctx context.Context) {
	now := s.now()
	candidates, err := s.personas.ListExpiringBefore(ctx, nil, now.Add(reminderWindow))
	if err != nil {
		s.log.Error("Sweep listing failed", "error", err.Error())
		return
	}
	if len(candidates) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, persona := range candidates {
		g.Go(func() error {
			if err := s.sweepOne(gctx, persona, now); err != nil {
				s.log.Error("Sweep failed for persona", "persona_id", persona.ID, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ExpirationSweep) sweepOne(ctx context.Context, persona *types.Persona, now time.Time) error {
	if persona.ExpiresAt == nil || persona.Status != types.PersonaStatusActive {
		return nil
	}

	if !persona.ExpiresAt.After(now) {
		if err := s.personas.UpdateStatus(ctx, nil, persona.ID, types.PersonaStatusExpired); err != nil {
			return err
		}
		s.log.Info("Persona expired", "persona_id", persona.ID)
		return s.notifier.NotifyExpired(ctx, persona)
	}

	if persona.ReminderSent {
		return nil
	}
	if err := s.personas.MarkReminderSent(ctx, nil, persona.ID); err != nil {
		return err
	}
	s.log.Info("Reminder sent", "persona_id", persona.ID)
	return s.notifier.NotifyReminder(ctx, persona)
}
