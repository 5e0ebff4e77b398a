package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/apierr"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

// ConfirmationSentence must be supplied verbatim before a cascade delete
// is permitted.
const ConfirmationSentence = "I understand this will permanently delete my persona and messages."

const (
	maxTraits        = 8
	maxKeyMemories   = 10
	maxCommonPhrases = 10
)

type CreatePersonaInput struct {
	Name           string   `json:"name" binding:"required,max=120"`
	Relationship   string   `json:"relationship" binding:"required,max=120"`
	UserNickname   string   `json:"user_nickname"`
	Biography      string   `json:"biography"`
	SpeakingStyle  string   `json:"speaking_style"`
	Traits         []string `json:"traits"`
	KeyMemories    []string `json:"key_memories"`
	CommonPhrases  []string `json:"common_phrases"`
	VoiceSampleURL string   `json:"voice_sample_url"`
}

// UpdatePersonaInput carries only mutable profile fields as pointers, so a
// present-but-empty value is distinguishable from an absent one. Name and
// Relationship are included solely to detect and reject identity edits.
type UpdatePersonaInput struct {
	Name           *string   `json:"name"`
	Relationship   *string   `json:"relationship"`
	UserNickname   *string   `json:"user_nickname"`
	Biography      *string   `json:"biography"`
	SpeakingStyle  *string   `json:"speaking_style"`
	Traits         *[]string `json:"traits"`
	KeyMemories    *[]string `json:"key_memories"`
	CommonPhrases  *[]string `json:"common_phrases"`
	VoiceSampleURL *string   `json:"voice_sample_url"`
}

// PersonaService orchestrates persona creation, profile updates and the
// cascading delete.
type PersonaService interface {
	Create(ctx context.Context, ownerID uuid.UUID, ownerEmail string, input CreatePersonaInput) (uuid.UUID, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*types.Persona, error)
	// ResolveOwned returns the persona only when it exists and belongs to
	// ownerID; any mismatch is reported as not-found.
	ResolveOwned(ctx context.Context, personaID, ownerID uuid.UUID) (*types.Persona, error)
	Update(ctx context.Context, personaID, ownerID uuid.UUID, input UpdatePersonaInput) error
	// DeleteCascade verifies the confirmation sentence, records a deletion
	// audit, then removes the persona together with all of its messages and
	// summaries.
	DeleteCascade(ctx context.Context, personaID, ownerID uuid.UUID, confirmation string) error
	// MarkExpired flips the persona's status to expired. Terminal: nothing
	// transitions out of expired except deletion.
	MarkExpired(ctx context.Context, personaID uuid.UUID) error
}

type personaService struct {
	db        *gorm.DB
	log       *logger.Logger
	personas  repos.PersonaRepo
	messages  repos.MessageRepo
	summaries repos.SummaryRepo
	audits    repos.DeletionAuditRepo
	now       func() time.Time
}

func NewPersonaService(db *gorm.DB, baseLog *logger.Logger, personaRepo repos.PersonaRepo, messageRepo repos.MessageRepo, summaryRepo repos.SummaryRepo, auditRepo repos.DeletionAuditRepo) PersonaService {
	return &personaService{
		db:        db,
		log:       baseLog.With("service", "PersonaService"),
		personas:  personaRepo,
		messages:  messageRepo,
		summaries: summaryRepo,
		audits:    auditRepo,
		now:       time.Now,
	}
}

func validateProfileLists(traits, keyMemories, commonPhrases []string) error {
	if len(traits) > maxTraits {
		return apierr.Validation(fmt.Errorf("at most %d traits allowed", maxTraits))
	}
	if len(keyMemories) > maxKeyMemories {
		return apierr.Validation(fmt.Errorf("at most %d key memories allowed", maxKeyMemories))
	}
	if len(commonPhrases) > maxCommonPhrases {
		return apierr.Validation(fmt.Errorf("at most %d common phrases allowed", maxCommonPhrases))
	}
	return nil
}

func (ps *personaService) Create(ctx context.Context, ownerID uuid.UUID, ownerEmail string, input CreatePersonaInput) (uuid.UUID, error) {
	if err := validateProfileLists(input.Traits, input.KeyMemories, input.CommonPhrases); err != nil {
		return uuid.Nil, err
	}

	persona := &types.Persona{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		OwnerEmail:     ownerEmail,
		Name:           input.Name,
		Relationship:   input.Relationship,
		UserNickname:   input.UserNickname,
		Biography:      input.Biography,
		SpeakingStyle:  input.SpeakingStyle,
		Traits:         datatypes.JSONSlice[string](input.Traits),
		KeyMemories:    datatypes.JSONSlice[string](input.KeyMemories),
		CommonPhrases:  datatypes.JSONSlice[string](input.CommonPhrases),
		VoiceSampleURL: input.VoiceSampleURL,
		Status:         types.PersonaStatusActive,
		GuidanceLevel:  0,
		CreatedAt:      ps.now().UTC(),
	}

	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := ps.personas.GetLiveByOwner(ctx, tx, ownerID)
		if err != nil {
			return fmt.Errorf("check existing persona: %w", err)
		}
		if existing != nil {
			return apierr.AlreadyExists(fmt.Errorf("owner %s already has a persona", ownerID))
		}
		// The partial unique index on owner_id backs this check up against
		// the query-then-insert race.
		if _, err := ps.personas.Create(ctx, tx, persona); err != nil {
			return fmt.Errorf("create persona: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	ps.log.Info("Persona created", "persona_id", persona.ID, "owner_id", ownerID)
	return persona.ID, nil
}

// GetByOwner returns nil with no error when the owner has no live persona.
func (ps *personaService) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*types.Persona, error) {
	return ps.personas.GetLiveByOwner(ctx, nil, ownerID)
}

func (ps *personaService) ResolveOwned(ctx context.Context, personaID, ownerID uuid.UUID) (*types.Persona, error) {
	persona, err := ps.personas.GetByID(ctx, nil, personaID)
	if err != nil {
		return nil, err
	}
	if persona == nil || persona.OwnerID != ownerID || persona.Status == types.PersonaStatusDeleted {
		return nil, apierr.NotFound(fmt.Errorf("persona %s not found", personaID))
	}
	return persona, nil
}

func (ps *personaService) Update(ctx context.Context, personaID, ownerID uuid.UUID, input UpdatePersonaInput) error {
	if input.Name != nil || input.Relationship != nil {
		return apierr.IdentityLocked(fmt.Errorf("name and relationship are immutable after creation"))
	}

	if _, err := ps.ResolveOwned(ctx, personaID, ownerID); err != nil {
		return err
	}

	fields := map[string]any{}
	if input.UserNickname != nil {
		fields["user_nickname"] = *input.UserNickname
	}
	if input.Biography != nil {
		fields["biography"] = *input.Biography
	}
	if input.SpeakingStyle != nil {
		fields["speaking_style"] = *input.SpeakingStyle
	}
	if input.Traits != nil {
		if err := validateProfileLists(*input.Traits, nil, nil); err != nil {
			return err
		}
		fields["traits"] = datatypes.JSONSlice[string](*input.Traits)
	}
	if input.KeyMemories != nil {
		if err := validateProfileLists(nil, *input.KeyMemories, nil); err != nil {
			return err
		}
		fields["key_memories"] = datatypes.JSONSlice[string](*input.KeyMemories)
	}
	if input.CommonPhrases != nil {
		if err := validateProfileLists(nil, nil, *input.CommonPhrases); err != nil {
			return err
		}
		fields["common_phrases"] = datatypes.JSONSlice[string](*input.CommonPhrases)
	}
	if input.VoiceSampleURL != nil {
		fields["voice_sample_url"] = *input.VoiceSampleURL
	}

	if len(fields) == 0 {
		return nil
	}
	return ps.personas.UpdateFields(ctx, nil, personaID, fields)
}

func (ps *personaService) DeleteCascade(ctx context.Context, personaID, ownerID uuid.UUID, confirmation string) error {
	if confirmation != ConfirmationSentence {
		return apierr.ConfirmationMismatch(fmt.Errorf("confirmation sentence mismatch"))
	}

	if _, err := ps.ResolveOwned(ctx, personaID, ownerID); err != nil {
		return err
	}

	audit := &types.DeletionAudit{
		ID:               uuid.New(),
		UserID:           ownerID,
		PersonaID:        personaID,
		ConfirmationText: confirmation,
		Type:             "persona",
		CreatedAt:        ps.now().UTC(),
	}
	if _, err := ps.audits.Create(ctx, nil, audit); err != nil {
		return fmt.Errorf("record deletion audit: %w", err)
	}

	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ps.personas.Delete(ctx, tx, personaID); err != nil {
			return fmt.Errorf("delete persona: %w", err)
		}
		if err := ps.messages.DeleteAllByPersona(ctx, tx, personaID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := ps.summaries.DeleteAllByPersona(ctx, tx, personaID); err != nil {
			return fmt.Errorf("delete summaries: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ps.log.Info("Persona cascade deleted", "persona_id", personaID, "owner_id", ownerID)
	return nil
}

func (ps *personaService) MarkExpired(ctx context.Context, personaID uuid.UUID) error {
	return ps.personas.UpdateStatus(ctx, nil, personaID, types.PersonaStatusExpired)
}
