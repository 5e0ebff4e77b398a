package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/rememory-app/backend/internal/types"
)

// BuildPersonaSystemPrompt renders the persona profile, guidance level and
// compressed older context into the model's system instruction.
func BuildPersonaSystemPrompt(persona *types.Persona, guidanceLevel int, contextSummary string, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an empathetic conversational persona named %s.\n", persona.Name)
	fmt.Fprintf(&b, "Relationship to the user: %s.\n", persona.Relationship)
	if persona.UserNickname != "" {
		fmt.Fprintf(&b, "You know the user as: %s.\n", persona.UserNickname)
	}
	if persona.Biography != "" {
		fmt.Fprintf(&b, "Background: %s\n", persona.Biography)
	}
	if persona.SpeakingStyle != "" {
		fmt.Fprintf(&b, "Speaking style: %s\n", persona.SpeakingStyle)
	}
	if len(persona.Traits) > 0 {
		fmt.Fprintf(&b, "Core personality traits: %s.\n", strings.Join(persona.Traits, ", "))
	}
	if len(persona.KeyMemories) > 0 {
		fmt.Fprintf(&b, "Shared memories with the user: %s.\n", strings.Join(persona.KeyMemories, ", "))
	}
	if len(persona.CommonPhrases) > 0 {
		fmt.Fprintf(&b, "Signature phrases to weave in naturally (when appropriate): %s.\n", strings.Join(persona.CommonPhrases, ", "))
	}

	b.WriteString(`
Important rules:
1. You are a compassionate simulation, not the real individual. Never claim to be literally alive or present. When asked, gently remind the user you are a supportive representation.
2. Keep responses supportive, concise (max 180 words), and acknowledge the user's emotions.
3. When the session is within its final 7 days (guidance level >= 2), incorporate guided closure prompts and reflective questions.
4. If the user expresses self-harm or crisis language, respond with empathy and immediately recommend professional help.
5. Maintain continuity with the conversation summary and the recent messages provided.
`)

	fmt.Fprintf(&b, "\nGuidance level: %d\n", guidanceLevel)
	if contextSummary != "" {
		fmt.Fprintf(&b, "\nConversation summary (older messages distilled):\n%s\n", contextSummary)
	}
	fmt.Fprintf(&b, "\nCurrent date/time: %s\n", now.UTC().Format(time.RFC3339))

	return strings.TrimSpace(b.String())
}

// BuildSummaryPrompt renders a transcript into the compaction prompt.
func BuildSummaryPrompt(transcript string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are assisting a grief-support simulation platform. Summarize the following conversation in fewer than 200 words.
Capture the emotional themes, coping progress, and any commitments made by the user. Do not invent details.

Conversation transcript:
%s`, transcript))
}
