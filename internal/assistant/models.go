package assistant

import (
	"time"

	"voiceai-platform/internal/provider"
)

// ProviderAssignment names the provider and settings an assistant uses for
// one service type. A zero Priority means "use as configured".
type ProviderAssignment struct {
	Provider provider.ID `json:"provider" db:"provider"`
	Model    string      `json:"model,omitempty" db:"model"`
	Voice    string      `json:"voice,omitempty" db:"voice"`
	Language string      `json:"language,omitempty" db:"language"`
}

// Assistant is the configuration a call runs under. The orchestrator takes a
// snapshot at call start; later edits never affect live calls.
type Assistant struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`

	SystemPrompt string `json:"system_prompt" db:"system_prompt"`

	// FirstMessage, when set, is spoken by the assistant as soon as the call
	// connects.
	FirstMessage string `json:"first_message,omitempty" db:"first_message"`

	STT ProviderAssignment `json:"stt" db:"-"`
	LLM ProviderAssignment `json:"llm" db:"-"`
	TTS ProviderAssignment `json:"tts" db:"-"`

	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
