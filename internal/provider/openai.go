package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	openAIDefaultEndpoint = "https://api.openai.com/v1"
	openAIDefaultLLMModel = "gpt-4o-mini"
	openAIDefaultSTTModel = "whisper-1"
	openAIDefaultTTSModel = "tts-1"
	openAIDefaultVoice    = "alloy"
)

// OpenAIConfig configures the OpenAI adapter family.
type OpenAIConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// OpenAIAdapter serves all three pipeline stages: Whisper STT, chat-completion
// LLM, and speech synthesis TTS.
type OpenAIAdapter struct {
	cfg    OpenAIConfig
	client *http.Client
}

var (
	_ STTProvider = (*OpenAIAdapter)(nil)
	_ LLMProvider = (*OpenAIAdapter)(nil)
	_ TTSProvider = (*OpenAIAdapter)(nil)
)

func NewOpenAI(cfg OpenAIConfig) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = openAIDefaultEndpoint
	}
	return &OpenAIAdapter{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (o *OpenAIAdapter) Name() ID { return OpenAI }

func (o *OpenAIAdapter) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + o.cfg.APIKey}
}

/* ===================== LLM ===================== */

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (o *OpenAIAdapter) Generate(ctx context.Context, messages []Message, cfg Config) (Generation, error) {
	model := cfg.Model
	if model == "" {
		model = openAIDefaultLLMModel
	}

	req := openAIChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	started := time.Now()
	var resp openAIChatResponse
	if err := doJSON(ctx, o.client, http.MethodPost, o.cfg.Endpoint+"/chat/completions", o.authHeaders(), req, &resp); err != nil {
		return Generation{}, err
	}
	if len(resp.Choices) == 0 {
		return Generation{}, fmt.Errorf("openai: no choices returned")
	}

	return Generation{
		Content: resp.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		DurationMS:   time.Since(started).Milliseconds(),
	}, nil
}

/* ===================== STT (Whisper) ===================== */

type openAITranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (o *OpenAIAdapter) Transcribe(ctx context.Context, audio []byte, cfg Config) (Transcription, error) {
	model := cfg.Model
	if model == "" {
		model = openAIDefaultSTTModel
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Transcription{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return Transcription{}, err
	}
	if err := mw.WriteField("model", model); err != nil {
		return Transcription{}, err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Transcription{}, err
	}
	if cfg.Language != "" {
		if err := mw.WriteField("language", cfg.Language); err != nil {
			return Transcription{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Transcription{}, err
	}

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Endpoint+"/audio/transcriptions", &buf)
	if err != nil {
		return Transcription{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	httpResp, err := o.client.Do(req)
	if err != nil {
		return Transcription{}, normalizeTransportErr(err)
	}
	defer httpResp.Body.Close()
	if err := normalizeStatus(httpResp); err != nil {
		return Transcription{}, err
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Transcription{}, err
	}
	var resp openAITranscriptionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Transcription{}, fmt.Errorf("openai: decode transcription: %w", err)
	}

	return Transcription{
		Text:       resp.Text,
		Language:   resp.Language,
		DurationMS: time.Since(started).Milliseconds(),
		AudioSec:   resp.Duration,
		Model:      model,
	}, nil
}

/* ===================== TTS ===================== */

type openAISpeechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

func (o *OpenAIAdapter) Synthesize(ctx context.Context, text string, cfg Config) (Synthesis, error) {
	model := cfg.Model
	if model == "" {
		model = openAIDefaultTTSModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = openAIDefaultVoice
	}

	body, err := json.Marshal(openAISpeechRequest{Model: model, Input: text, Voice: voice})
	if err != nil {
		return Synthesis{}, err
	}

	started := time.Now()
	audio, err := doRaw(ctx, o.client, http.MethodPost, o.cfg.Endpoint+"/audio/speech", "application/json", o.authHeaders(), body)
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

func (o *OpenAIAdapter) HealthCheck(ctx context.Context) error {
	return doJSON(ctx, o.client, http.MethodGet, o.cfg.Endpoint+"/models", o.authHeaders(), nil, nil)
}
