package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	anthropicDefaultEndpoint = "https://api.anthropic.com/v1"
	anthropicDefaultModel    = "claude-3-5-haiku-latest"
	anthropicAPIVersion      = "2023-06-01"
	anthropicDefaultMaxTok   = 1024
)

// AnthropicConfig configures the Anthropic LLM adapter.
type AnthropicConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// AnthropicLLM generates replies through the Messages API.
type AnthropicLLM struct {
	cfg    AnthropicConfig
	client *http.Client
}

var _ LLMProvider = (*AnthropicLLM)(nil)

func NewAnthropicLLM(cfg AnthropicConfig) *AnthropicLLM {
	if cfg.Endpoint == "" {
		cfg.Endpoint = anthropicDefaultEndpoint
	}
	return &AnthropicLLM{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (a *AnthropicLLM) Name() ID { return Anthropic }

func (a *AnthropicLLM) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": anthropicAPIVersion,
	}
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicLLM) Generate(ctx context.Context, messages []Message, cfg Config) (Generation, error) {
	model := cfg.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTok
	}

	// The Messages API takes the system prompt out of band.
	req := anthropicRequest{Model: model, MaxTokens: maxTokens}
	for _, m := range messages {
		if m.Role == RoleSystem {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, m)
	}

	started := time.Now()
	var resp anthropicResponse
	if err := doJSON(ctx, a.client, http.MethodPost, a.cfg.Endpoint+"/messages", a.headers(), req, &resp); err != nil {
		return Generation{}, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" && len(resp.Content) == 0 {
		return Generation{}, fmt.Errorf("anthropic: empty content")
	}

	return Generation{
		Content: content,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Model:        resp.Model,
		FinishReason: resp.StopReason,
		DurationMS:   time.Since(started).Milliseconds(),
	}, nil
}

func (a *AnthropicLLM) HealthCheck(ctx context.Context) error {
	return doJSON(ctx, a.client, http.MethodGet, a.cfg.Endpoint+"/models", a.headers(), nil, nil)
}
