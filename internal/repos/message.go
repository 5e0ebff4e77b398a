package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rememory-app/backend/internal/logger"
  "github.com/rememory-app/backend/internal/types"
)

type MessageRepo interface {
  // Append inserts the given messages as one batch. Callers persisting a
  // full turn (user + ai) rely on this being a single INSERT so the turn is
  // recorded completely or not at all.
  Append(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error)
  // ListAsc returns up to limit messages in (timestamp, id) ascending
  // order. limit <= 0 means no limit.
  ListAsc(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, limit int) ([]*types.Message, error)
  // ListVisibleAsc returns up to limit messages in (timestamp, id)
  // ascending order, excluding synthetic-trigger messages. limit <= 0
  // means no limit.
  ListVisibleAsc(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, limit int) ([]*types.Message, error)
  // ListTail returns the most recent n messages in chronological order,
  // excluding synthetic-trigger messages.
  ListTail(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, n int) ([]*types.Message, error)
  // ListOldest returns the oldest n messages in chronological order.
  ListOldest(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, n int) ([]*types.Message, error)
  Count(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (int64, error)
  DeleteByIDs(ctx context.Context, tx *gorm.DB, messageIDs []uuid.UUID) error
  DeleteAllByPersona(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error
}

type messageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
  return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (mr *messageRepo) Append(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  if len(messages) == 0 {
    return []*types.Message{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&messages).Error; err != nil {
    return nil, err
  }
  return messages, nil
}

func (mr *messageRepo) ListAsc(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, limit int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  q := transaction.WithContext(ctx).
    Where("persona_id = ?", personaID).
    Order("timestamp ASC, id ASC")
  if limit > 0 {
    q = q.Limit(limit)
  }

  var results []*types.Message
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (mr *messageRepo) ListVisibleAsc(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, limit int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  q := transaction.WithContext(ctx).
    Where("persona_id = ? AND kind <> ?", personaID, types.MessageKindSyntheticTrigger).
    Order("timestamp ASC, id ASC")
  if limit > 0 {
    q = q.Limit(limit)
  }

  var results []*types.Message
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (mr *messageRepo) ListTail(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, n int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var results []*types.Message
  if err := transaction.WithContext(ctx).
    Where("persona_id = ? AND kind <> ?", personaID, types.MessageKindSyntheticTrigger).
    Order("timestamp DESC, id DESC").
    Limit(n).
    Find(&results).Error; err != nil {
    return nil, err
  }

  // Reverse into chronological order.
  for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
    results[i], results[j] = results[j], results[i]
  }
  return results, nil
}

func (mr *messageRepo) ListOldest(ctx context.Context, tx *gorm.DB, personaID uuid.UUID, n int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var results []*types.Message
  if err := transaction.WithContext(ctx).
    Where("persona_id = ?", personaID).
    Order("timestamp ASC, id ASC").
    Limit(n).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (mr *messageRepo) Count(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Message{}).
    Where("persona_id = ?", personaID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (mr *messageRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, messageIDs []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  if len(messageIDs) == 0 {
    return nil
  }

  // Chunked so a large compaction never produces an oversized IN clause.
  const chunkSize = 100
  for start := 0; start < len(messageIDs); start += chunkSize {
    end := start + chunkSize
    if end > len(messageIDs) {
      end = len(messageIDs)
    }
    if err := transaction.WithContext(ctx).
      Where("id IN ?", messageIDs[start:end]).
      Delete(&types.Message{}).Error; err != nil {
      return err
    }
  }
  return nil
}

func (mr *messageRepo) DeleteAllByPersona(ctx context.Context, tx *gorm.DB, personaID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  return transaction.WithContext(ctx).
    Where("persona_id = ?", personaID).
    Delete(&types.Message{}).Error
}
