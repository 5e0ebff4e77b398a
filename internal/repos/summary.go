package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rememory-app/backend/internal/logger"
  "github.com/rememory-app/backend/internal/types"
)

type SummaryRepo interface {
  Create(ctx context.Context, tx *gorm.DB, summary *types.Summary) (*types.Summary, error)
  // Latest returns the most recent summary for the persona, or nil when
  // none exists yet.
  Latest(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (*types.Summary, error)
  Count(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (int64, error)
  DeleteAllByPersona(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error
}

type summaryRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSummaryRepo(db *gorm.DB, baseLog *logger.Logger) SummaryRepo {
  return &summaryRepo{db: db, log: baseLog.With("repo", "SummaryRepo")}
}

func (sr *summaryRepo) Create(ctx context.Context, tx *gorm.DB, summary *types.Summary) (*types.Summary, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  if err := transaction.WithContext(ctx).Create(summary).Error; err != nil {
    return nil, err
  }
  return summary, nil
}

func (sr *summaryRepo) Latest(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (*types.Summary, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var summary types.Summary
  err := transaction.WithContext(ctx).
    Where("persona_id = ?", personaID).
    Order("created_at DESC, id DESC").
    First(&summary).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &summary, nil
}

func (sr *summaryRepo) Count(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Summary{}).
    Where("persona_id = ?", personaID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (sr *summaryRepo) DeleteAllByPersona(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  return transaction.WithContext(ctx).
    Where("persona_id = ?", personaID).
    Delete(&types.Summary{}).Error
}
