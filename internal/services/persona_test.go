package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rememory-app/backend/internal/apierr"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

func newPersonaService(t *testing.T, gdb *gorm.DB) PersonaService {
	t.Helper()
	nop := logger.NewNop()
	return NewPersonaService(
		gdb,
		nop,
		repos.NewPersonaRepo(gdb, nop),
		repos.NewMessageRepo(gdb, nop),
		repos.NewSummaryRepo(gdb, nop),
		repos.NewDeletionAuditRepo(gdb, nop),
	)
}

func TestPersonaCreate_SecondLivePersonaRejected(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPersonaService(t, gdb)
	ownerID := uuid.New()

	input := CreatePersonaInput{Name: "Margaret", Relationship: "grandmother"}
	firstID, err := svc.Create(context.Background(), ownerID, "owner@example.com", input)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, firstID)

	_, err = svc.Create(context.Background(), ownerID, "owner@example.com", input)
	require.Error(t, err)
	require.Equal(t, apierr.CodePersonaExists, apierr.From(err).Code)

	// After a cascade delete the slot frees up.
	require.NoError(t, svc.DeleteCascade(context.Background(), firstID, ownerID, ConfirmationSentence))
	secondID, err := svc.Create(context.Background(), ownerID, "owner@example.com", input)
	require.NoError(t, err)
	require.NotEqual(t, firstID, secondID)
}

func TestPersonaCreate_ListLimits(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPersonaService(t, gdb)

	traits := make([]string, 9)
	for i := range traits {
		traits[i] = "kind"
	}
	_, err := svc.Create(context.Background(), uuid.New(), "owner@example.com", CreatePersonaInput{
		Name:         "Margaret",
		Relationship: "grandmother",
		Traits:       traits,
	})
	require.Error(t, err)
	require.Equal(t, apierr.CodeValidationFailed, apierr.From(err).Code)
}

func TestPersonaUpdate_IdentityLocked(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPersonaService(t, gdb)
	persona := seedPersona(t, gdb, nil)

	newName := "Someone Else"
	err := svc.Update(context.Background(), persona.ID, persona.OwnerID, UpdatePersonaInput{Name: &newName})
	require.Error(t, err)
	require.Equal(t, apierr.CodeIdentityLocked, apierr.From(err).Code)

	// Mutable fields still update.
	bio := "She loved her garden."
	require.NoError(t, svc.Update(context.Background(), persona.ID, persona.OwnerID, UpdatePersonaInput{Biography: &bio}))

	var got types.Persona
	require.NoError(t, gdb.First(&got, "id = ?", persona.ID).Error)
	require.Equal(t, bio, got.Biography)
	require.Equal(t, persona.Name, got.Name)
}

func TestPersonaResolveOwned(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPersonaService(t, gdb)
	persona := seedPersona(t, gdb, nil)

	got, err := svc.ResolveOwned(context.Background(), persona.ID, persona.OwnerID)
	require.NoError(t, err)
	require.Equal(t, persona.ID, got.ID)

	// Another owner sees not-found, not forbidden.
	_, err = svc.ResolveOwned(context.Background(), persona.ID, uuid.New())
	require.Error(t, err)
	require.Equal(t, apierr.CodePersonaNotFound, apierr.From(err).Code)
}

func TestPersonaDeleteCascade(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPersonaService(t, gdb)
	persona := seedPersona(t, gdb, nil)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedMessages(t, gdb, persona.ID, 6, base)

	nop := logger.NewNop()
	summaryRepo := repos.NewSummaryRepo(gdb, nop)
	_, err := summaryRepo.Create(context.Background(), nil, &types.Summary{
		ID:        uuid.New(),
		PersonaID: persona.ID,
		Content:   "summary",
		CreatedAt: base,
	})
	require.NoError(t, err)

	t.Run("wrong confirmation refused", func(t *testing.T) {
		err := svc.DeleteCascade(context.Background(), persona.ID, persona.OwnerID, "delete it")
		require.Error(t, err)
		require.Equal(t, apierr.CodeConfirmationMismatch, apierr.From(err).Code)
	})

	t.Run("exact confirmation cascades", func(t *testing.T) {
		require.NoError(t, svc.DeleteCascade(context.Background(), persona.ID, persona.OwnerID, ConfirmationSentence))

		messageRepo := repos.NewMessageRepo(gdb, nop)
		count, err := messageRepo.Count(context.Background(), nil, persona.ID)
		require.NoError(t, err)
		require.Zero(t, count)

		latest, err := summaryRepo.Latest(context.Background(), nil, persona.ID)
		require.NoError(t, err)
		require.Nil(t, latest)

		_, err = svc.ResolveOwned(context.Background(), persona.ID, persona.OwnerID)
		require.Equal(t, apierr.CodePersonaNotFound, apierr.From(err).Code)

		var audits []types.DeletionAudit
		require.NoError(t, gdb.Find(&audits).Error)
		require.Len(t, audits, 1)
		require.Equal(t, persona.ID, audits[0].PersonaID)
	})
}
