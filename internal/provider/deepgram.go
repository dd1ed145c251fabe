package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	deepgramDefaultEndpoint = "https://api.deepgram.com/v1/listen"
	deepgramDefaultModel    = "nova-2"
)

// DeepgramConfig configures the Deepgram STT adapter.
type DeepgramConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// DeepgramSTT transcribes audio through Deepgram's pre-recorded listen API.
type DeepgramSTT struct {
	cfg    DeepgramConfig
	client *http.Client
}

var _ STTProvider = (*DeepgramSTT)(nil)

func NewDeepgram(cfg DeepgramConfig) *DeepgramSTT {
	if cfg.Endpoint == "" {
		cfg.Endpoint = deepgramDefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = deepgramDefaultModel
	}
	return &DeepgramSTT{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (d *DeepgramSTT) Name() ID { return Deepgram }

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
			DetectedLanguage string `json:"detected_language"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *DeepgramSTT) Transcribe(ctx context.Context, audio []byte, cfg Config) (Transcription, error) {
	model := cfg.Model
	if model == "" {
		model = d.cfg.Model
	}

	q := url.Values{}
	q.Set("model", model)
	q.Set("punctuate", "true")
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	endpoint := d.cfg.Endpoint + "?" + q.Encode()

	started := time.Now()
	raw, err := doRaw(ctx, d.client, http.MethodPost, endpoint, "audio/wav", map[string]string{
		"Authorization": "Token " + d.cfg.APIKey,
		"Accept":        "application/json",
	}, audio)
	if err != nil {
		return Transcription{}, err
	}

	var resp deepgramResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Transcription{}, fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return Transcription{}, fmt.Errorf("deepgram: empty result set")
	}

	ch := resp.Results.Channels[0]
	alt := ch.Alternatives[0]
	out := Transcription{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Language:   ch.DetectedLanguage,
		DurationMS: time.Since(started).Milliseconds(),
		AudioSec:   resp.Metadata.Duration,
		Model:      model,
	}
	for _, w := range alt.Words {
		out.Words = append(out.Words, Word{Word: w.Word, StartSec: w.Start, EndSec: w.End, Confidence: w.Confidence})
	}
	return out, nil
}

func (d *DeepgramSTT) HealthCheck(ctx context.Context) error {
	// Deepgram has no dedicated ping; an auth'd projects listing works.
	return doJSON(ctx, d.client, http.MethodGet, "https://api.deepgram.com/v1/projects", map[string]string{
		"Authorization": "Token " + d.cfg.APIKey,
	}, nil, nil)
}
