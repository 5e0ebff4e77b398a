package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rememory-app/backend/internal/logger"
  "github.com/rememory-app/backend/internal/types"
)

type PersonaRepo interface {
  Create(ctx context.Context, tx *gorm.DB, persona *types.Persona) (*types.Persona, error)
  GetByID(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (*types.Persona, error)
  // GetLiveByOwner returns the owner's persona with status != deleted, or
  // nil when the owner has none.
  GetLiveByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*types.Persona, error)
  // SetTimerOnce sets started_at/expires_at/status/guidance_level in a
  // single conditional write guarded by "started_at IS NULL". Returns true
  // when this call performed the set, false when the timer was already
  // running.
  SetTimerOnce(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, startedAt, expiresAt time.Time) (bool, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, fields map[string]any) error
  UpdateStatus(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, status string) error
  MarkReminderSent(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error
  // ListExpiringBefore returns active personas whose expiry falls at or
  // before the cutoff.
  ListExpiringBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Persona, error)
  Delete(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error
}

type personaRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPersonaRepo(db *gorm.DB, baseLog *logger.Logger) PersonaRepo {
  return &personaRepo{db: db, log: baseLog.With("repo", "PersonaRepo")}
}

func (pr *personaRepo) Create(ctx context.Context, tx *gorm.DB, persona *types.Persona) (*types.Persona, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  if err := transaction.WithContext(ctx).Create(persona).Error; err != nil {
    return nil, err
  }
  return persona, nil
}

func (pr *personaRepo) GetByID(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (*types.Persona, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var persona types.Persona
  err := transaction.WithContext(ctx).
    Where("id = ?", personaID).
    First(&persona).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &persona, nil
}

func (pr *personaRepo) GetLiveByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*types.Persona, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var persona types.Persona
  err := transaction.WithContext(ctx).
    Where("owner_id = ? AND status <> ?", ownerID, types.PersonaStatusDeleted).
    Limit(1).
    First(&persona).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &persona, nil
}

func (pr *personaRepo) SetTimerOnce(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, startedAt, expiresAt time.Time) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  res := transaction.WithContext(ctx).
    Model(&types.Persona{}).
    Where("id = ? AND started_at IS NULL", personaID).
    Updates(map[string]any{
      "started_at":     startedAt,
      "expires_at":     expiresAt,
      "status":         types.PersonaStatusActive,
      "guidance_level": 0,
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (pr *personaRepo) UpdateFields(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, fields map[string]any) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  if len(fields) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.Persona{}).
    Where("id = ?", personaID).
    Updates(fields).Error
}

func (pr *personaRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, status string) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.Persona{}).
    Where("id = ?", personaID).
    Update("status", status).Error
}

func (pr *personaRepo) MarkReminderSent(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.Persona{}).
    Where("id = ?", personaID).
    Update("reminder_sent", true).Error
}

func (pr *personaRepo) ListExpiringBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Persona, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  var results []*types.Persona
  if err := transaction.WithContext(ctx).
    Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", types.PersonaStatusActive, cutoff).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (pr *personaRepo) Delete(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }

  return transaction.WithContext(ctx).
    Where("id = ?", personaID).
    Delete(&types.Persona{}).Error
}
