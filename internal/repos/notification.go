package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rememory-app/backend/internal/logger"
  "github.com/rememory-app/backend/internal/types"
)

type NotificationRepo interface {
  Create(ctx context.Context, tx *gorm.DB, notification *types.Notification) (*types.Notification, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Notification, error)
}

type notificationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
  return &notificationRepo{db: db, log: baseLog.With("repo", "NotificationRepo")}
}

func (nr *notificationRepo) Create(ctx context.Context, tx *gorm.DB, notification *types.Notification) (*types.Notification, error) {
  transaction := tx
  if transaction == nil {
    transaction = nr.db
  }

  if err := transaction.WithContext(ctx).Create(notification).Error; err != nil {
    return nil, err
  }
  return notification, nil
}

func (nr *notificationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Notification, error) {
  transaction := tx
  if transaction == nil {
    transaction = nr.db
  }

  var results []*types.Notification
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("sent_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
