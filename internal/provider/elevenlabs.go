package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	elevenLabsDefaultEndpoint = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultModel    = "eleven_turbo_v2_5"
	elevenLabsDefaultVoice    = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabsConfig configures the ElevenLabs TTS adapter.
type ElevenLabsConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// ElevenLabsTTS synthesizes speech through the text-to-speech endpoint.
type ElevenLabsTTS struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

var _ TTSProvider = (*ElevenLabsTTS)(nil)

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabsTTS {
	if cfg.Endpoint == "" {
		cfg.Endpoint = elevenLabsDefaultEndpoint
	}
	return &ElevenLabsTTS{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (e *ElevenLabsTTS) Name() ID { return ElevenLabs }

type elevenLabsSpeechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string, cfg Config) (Synthesis, error) {
	model := cfg.Model
	if model == "" {
		model = elevenLabsDefaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = elevenLabsDefaultVoice
	}

	body, err := json.Marshal(elevenLabsSpeechRequest{Text: text, ModelID: model})
	if err != nil {
		return Synthesis{}, err
	}

	started := time.Now()
	audio, err := doRaw(ctx, e.client, http.MethodPost, e.cfg.Endpoint+"/text-to-speech/"+voice, "application/json", map[string]string{
		"xi-api-key": e.cfg.APIKey,
		"Accept":     "audio/mpeg",
	}, body)
	if err != nil {
		return Synthesis{}, err
	}

	return Synthesis{
		Audio:      audio,
		Characters: utf8.RuneCountInString(text),
		Model:      model,
		Voice:      voice,
		DurationMS: time.Since(started).Milliseconds(),
	}, nil
}

func (e *ElevenLabsTTS) HealthCheck(ctx context.Context) error {
	return doJSON(ctx, e.client, http.MethodGet, e.cfg.Endpoint+"/user", map[string]string{
		"xi-api-key": e.cfg.APIKey,
	}, nil, nil)
}
