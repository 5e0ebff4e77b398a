package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  NotificationTypeReminder = "3day_reminder"
  NotificationTypeExpired  = "expired"
)

// Notification is an audit record of an outbound notification. Never
// mutated or deleted.
type Notification struct {
  ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  UserID    uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
  PersonaID uuid.UUID `gorm:"type:uuid;not null;index;column:persona_id" json:"persona_id"`
  Type      string    `gorm:"not null;column:type" json:"type"`
  SentAt    time.Time `gorm:"not null;column:sent_at" json:"sent_at"`
  Delivered bool      `gorm:"not null;column:delivered" json:"delivered"`
}

func (Notification) TableName() string {
  return "notifications"
}
