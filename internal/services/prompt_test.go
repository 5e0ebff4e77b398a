package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rememory-app/backend/internal/types"
)

func TestBuildPersonaSystemPrompt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	persona := &types.Persona{
		Name:          "Margaret",
		Relationship:  "grandmother",
		UserNickname:  "sweetpea",
		SpeakingStyle: "warm and unhurried",
		Traits:        []string{"patient", "wry"},
		CommonPhrases: []string{"oh honestly"},
	}

	prompt := BuildPersonaSystemPrompt(persona, 2, "They spoke about the garden.", now)

	require.Contains(t, prompt, "named Margaret")
	require.Contains(t, prompt, "grandmother")
	require.Contains(t, prompt, "sweetpea")
	require.Contains(t, prompt, "patient, wry")
	require.Contains(t, prompt, "oh honestly")
	require.Contains(t, prompt, "Guidance level: 2")
	require.Contains(t, prompt, "They spoke about the garden.")
	require.Contains(t, prompt, now.Format(time.RFC3339))
	require.Contains(t, prompt, "compassionate simulation")
}

func TestBuildPersonaSystemPrompt_SkipsEmptySections(t *testing.T) {
	persona := &types.Persona{Name: "Sam", Relationship: "father"}
	prompt := BuildPersonaSystemPrompt(persona, 0, "", time.Now())

	require.NotContains(t, prompt, "Conversation summary")
	require.NotContains(t, prompt, "You know the user as")
	require.False(t, strings.Contains(prompt, "Background:"))
}
