package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  PersonaStatusActive  = "active"
  PersonaStatusExpired = "expired"
  PersonaStatusDeleted = "deleted"
)

// Persona is the simulated-loved-one profile and its session state.
// Name and Relationship are identity-locked after creation. StartedAt and
// ExpiresAt are set together exactly once when the session timer starts.
type Persona struct {
  ID             uuid.UUID                  `gorm:"type:uuid;primaryKey" json:"id"`
  OwnerID        uuid.UUID                  `gorm:"type:uuid;not null;index:idx_personas_owner_live,unique,where:status <> 'deleted';column:owner_id" json:"owner_id"`
  OwnerEmail     string                     `gorm:"column:owner_email" json:"-"`
  Name           string                     `gorm:"not null;column:name" json:"name"`
  Relationship   string                     `gorm:"not null;column:relationship" json:"relationship"`
  UserNickname   string                     `gorm:"column:user_nickname" json:"user_nickname"`
  Biography      string                     `gorm:"column:biography" json:"biography"`
  SpeakingStyle  string                     `gorm:"column:speaking_style" json:"speaking_style"`
  Traits         datatypes.JSONSlice[string] `gorm:"column:traits" json:"traits"`
  KeyMemories    datatypes.JSONSlice[string] `gorm:"column:key_memories" json:"key_memories"`
  CommonPhrases  datatypes.JSONSlice[string] `gorm:"column:common_phrases" json:"common_phrases"`
  VoiceSampleURL string                     `gorm:"column:voice_sample_url" json:"voice_sample_url,omitempty"`
  Status         string                     `gorm:"not null;default:'active';column:status" json:"status"`
  GuidanceLevel  int                        `gorm:"not null;default:0;column:guidance_level" json:"guidance_level"`
  ReminderSent   bool                       `gorm:"not null;default:false;column:reminder_sent" json:"reminder_sent"`
  CreatedAt      time.Time                  `gorm:"not null" json:"created_at"`
  UpdatedAt      time.Time                  `gorm:"not null" json:"updated_at"`
  StartedAt      *time.Time                 `gorm:"column:started_at" json:"started_at,omitempty"`
  ExpiresAt      *time.Time                 `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
}

func (Persona) TableName() string {
  return "personas"
}
