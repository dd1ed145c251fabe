package provider

import (
	"context"
	"fmt"
)

// ServiceType identifies which stage of the voice pipeline a provider serves.
type ServiceType string

const (
	ServiceSTT ServiceType = "stt"
	ServiceLLM ServiceType = "llm"
	ServiceTTS ServiceType = "tts"
)

// Validate enforces supported service types.
func (s ServiceType) Validate() error {
	switch s {
	case ServiceSTT, ServiceLLM, ServiceTTS:
		return nil
	default:
		return fmt.Errorf("unsupported service type: %q", s)
	}
}

// ID is a typed provider identifier. Unknown vendor strings must be rejected
// at configuration time, never at call time.
type ID string

const (
	Deepgram   ID = "deepgram"
	OpenAI     ID = "openai"
	Anthropic  ID = "anthropic"
	ElevenLabs ID = "elevenlabs"
)

// Validate enforces known vendor identifiers.
func (id ID) Validate() error {
	switch id {
	case Deepgram, OpenAI, Anthropic, ElevenLabs:
		return nil
	default:
		return fmt.Errorf("unknown provider: %q", id)
	}
}

// Role is a conversation turn role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn handed to an LLM provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Config carries per-invocation provider options (model, voice, language).
// Adapters read the keys they understand and ignore the rest.
type Config struct {
	Model    string `json:"model,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`

	// Temperature and MaxTokens apply to LLM generation only.
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Word is one word-level timing hint from an STT provider, when available.
type Word struct {
	Word       string  `json:"word"`
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	Confidence float64 `json:"confidence"`
}

// Transcription is the normalized STT result.
type Transcription struct {
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Language   string            `json:"language,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	AudioSec   float64           `json:"audio_sec"`
	Words      []Word            `json:"words,omitempty"`
	Model      string            `json:"model,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// TokenUsage is the normalized LLM token accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is the normalized LLM result.
type Generation struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	Model        string     `json:"model,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
}

// Synthesis is the normalized TTS result.
type Synthesis struct {
	Audio      []byte            `json:"audio_data"`
	Characters int               `json:"characters"`
	Model      string            `json:"model,omitempty"`
	Voice      string            `json:"voice,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// STTProvider transcribes raw audio bytes.
type STTProvider interface {
	Name() ID
	Transcribe(ctx context.Context, audio []byte, cfg Config) (Transcription, error)
	HealthCheck(ctx context.Context) error
}

// LLMProvider generates an assistant reply from an ordered message list.
type LLMProvider interface {
	Name() ID
	Generate(ctx context.Context, messages []Message, cfg Config) (Generation, error)
	HealthCheck(ctx context.Context) error
}

// TTSProvider synthesizes speech audio from text.
type TTSProvider interface {
	Name() ID
	Synthesize(ctx context.Context, text string, cfg Config) (Synthesis, error)
	HealthCheck(ctx context.Context) error
}
