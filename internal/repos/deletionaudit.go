package repos

import (
  "context"

  "gorm.io/gorm"

  "github.com/rememory-app/backend/internal/logger"
  "github.com/rememory-app/backend/internal/types"
)

type DeletionAuditRepo interface {
  Create(ctx context.Context, tx *gorm.DB, audit *types.DeletionAudit) (*types.DeletionAudit, error)
}

type deletionAuditRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDeletionAuditRepo(db *gorm.DB, baseLog *logger.Logger) DeletionAuditRepo {
  return &deletionAuditRepo{db: db, log: baseLog.With("repo", "DeletionAuditRepo")}
}

func (dr *deletionAuditRepo) Create(ctx context.Context, tx *gorm.DB, audit *types.DeletionAudit) (*types.DeletionAudit, error) {
  transaction := tx
  if transaction == nil {
    transaction = dr.db
  }

  if err := transaction.WithContext(ctx).Create(audit).Error; err != nil {
    return nil, err
  }
  return audit, nil
}
