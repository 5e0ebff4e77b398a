package types

import (
  "time"

  "github.com/google/uuid"
)

// Summary is an append-only distillation of compacted older messages.
// Summaries are never edited or deleted; only the most recent one is used
// when building prompt context.
type Summary struct {
  ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  PersonaID uuid.UUID `gorm:"type:uuid;not null;index;column:persona_id" json:"persona_id"`
  Content   string    `gorm:"not null;column:content" json:"content"`
  CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (Summary) TableName() string {
  return "summaries"
}
