package types

import (
  "time"

  "github.com/google/uuid"
)

// DeletionAudit records a confirmed deletion request before the cascade
// runs, so a crash mid-cascade leaves a trail for manual follow-up.
type DeletionAudit struct {
  ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  UserID           uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
  PersonaID        uuid.UUID `gorm:"type:uuid;not null;column:persona_id" json:"persona_id"`
  ConfirmationText string    `gorm:"not null;column:confirmation_text" json:"confirmation_text"`
  Type             string    `gorm:"not null;default:'persona';column:type" json:"type"`
  CreatedAt        time.Time `gorm:"not null" json:"created_at"`
}

func (DeletionAudit) TableName() string {
  return "deletion_audits"
}
