package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rememory-app/backend/internal/apierr"
	"github.com/rememory-app/backend/internal/logger"
	"github.com/rememory-app/backend/internal/repos"
	"github.com/rememory-app/backend/internal/types"
)

func TestStartSessionIfNeeded_SetsTimerOnce(t *testing.T) {
	gdb := newTestDB(t)
	persona := seedPersona(t, gdb, nil)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTimerService(gdb, logger.NewNop(), repos.NewPersonaRepo(gdb, logger.NewNop())).(*timerService)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.StartSessionIfNeeded(context.Background(), persona.ID))

	var got types.Persona
	require.NoError(t, gdb.First(&got, "id = ?", persona.ID).Error)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.ExpiresAt)
	require.Equal(t, fixed, got.StartedAt.UTC())
	require.Equal(t, fixed.Add(SessionWindow), got.ExpiresAt.UTC())

	// A second call with a later clock must not move the window.
	svc.now = func() time.Time { return fixed.Add(48 * time.Hour) }
	require.NoError(t, svc.StartSessionIfNeeded(context.Background(), persona.ID))

	var again types.Persona
	require.NoError(t, gdb.First(&again, "id = ?", persona.ID).Error)
	require.Equal(t, fixed, again.StartedAt.UTC())
	require.Equal(t, fixed.Add(SessionWindow), again.ExpiresAt.UTC())
}

func TestStartSessionIfNeeded_UnknownPersona(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewTimerService(gdb, logger.NewNop(), repos.NewPersonaRepo(gdb, logger.NewNop()))

	err := svc.StartSessionIfNeeded(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, apierr.CodePersonaNotFound, apierr.From(err).Code)
}

func TestComputeRemainingMs(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no expiry", func(t *testing.T) {
		require.Nil(t, ComputeRemainingMs(nil, now))
	})

	t.Run("future expiry", func(t *testing.T) {
		expires := now.Add(90 * time.Minute)
		got := ComputeRemainingMs(&expires, now)
		require.NotNil(t, got)
		require.Equal(t, int64(90*60*1000), *got)
	})

	t.Run("past expiry clamps to zero", func(t *testing.T) {
		expires := now.Add(-time.Hour)
		got := ComputeRemainingMs(&expires, now)
		require.NotNil(t, got)
		require.Equal(t, int64(0), *got)
	})
}
