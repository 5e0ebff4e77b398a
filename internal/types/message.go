package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  SenderUser   = "user"
  SenderAI     = "ai"
  SenderSystem = "system"
)

const (
  // MessageKindChat is a normal conversational message.
  MessageKindChat = "chat"
  // MessageKindSyntheticTrigger marks a hidden instruction used to start a
  // conversation. It never appears in prompt history or chat pages.
  MessageKindSyntheticTrigger = "synthetic_trigger"
)

// Message is one entry in a persona's conversation log. Messages are
// append-only; they are removed only by compaction or cascade deletion.
// Total order is (timestamp, id) ascending.
type Message struct {
  ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
  PersonaID uuid.UUID         `gorm:"type:uuid;not null;index:idx_messages_persona_ts,priority:1;column:persona_id" json:"persona_id"`
  Sender    string            `gorm:"not null;column:sender" json:"sender"`
  Kind      string            `gorm:"not null;default:'chat';column:kind" json:"kind"`
  Text      string            `gorm:"not null;column:text" json:"text"`
  Meta      datatypes.JSONMap `gorm:"column:meta" json:"meta,omitempty"`
  Timestamp time.Time         `gorm:"not null;index:idx_messages_persona_ts,priority:2" json:"timestamp"`
}

func (Message) TableName() string {
  return "messages"
}
