package provider

import (
	"fmt"

	"voiceai-platform/internal/config"
)

// Registry resolves typed provider IDs to constructed adapters.
//
// Construction fails fast: a vendor that appears in any fallback chain but has
// no credentials configured is a configuration error, surfaced at process
// start rather than mid-call.
type Registry struct {
	stt map[ID]STTProvider
	llm map[ID]LLMProvider
	tts map[ID]TTSProvider
}

// NewRegistry builds adapters for every vendor with configured credentials.
func NewRegistry(cfg config.ProvidersConfig) *Registry {
	r := &Registry{
		stt: map[ID]STTProvider{},
		llm: map[ID]LLMProvider{},
		tts: map[ID]TTSProvider{},
	}

	if cfg.DeepgramAPIKey != "" {
		dg := NewDeepgram(DeepgramConfig{APIKey: cfg.DeepgramAPIKey, Endpoint: cfg.DeepgramEndpoint})
		r.stt[Deepgram] = dg
	}
	if cfg.OpenAIAPIKey != "" {
		oa := NewOpenAI(OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Endpoint: cfg.OpenAIEndpoint})
		r.stt[OpenAI] = oa
		r.llm[OpenAI] = oa
		r.tts[OpenAI] = oa
	}
	if cfg.AnthropicAPIKey != "" {
		an := NewAnthropicLLM(AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Endpoint: cfg.AnthropicEndpoint})
		r.llm[Anthropic] = an
	}
	if cfg.ElevenLabsAPIKey != "" {
		el := NewElevenLabs(ElevenLabsConfig{APIKey: cfg.ElevenLabsAPIKey, Endpoint: cfg.ElevenLabsEndpoint})
		r.tts[ElevenLabs] = el
	}

	return r
}

// RegisterSTT installs an STT adapter. Intended for tests and custom wiring.
func (r *Registry) RegisterSTT(p STTProvider) { r.stt[p.Name()] = p }

// RegisterLLM installs an LLM adapter.
func (r *Registry) RegisterLLM(p LLMProvider) { r.llm[p.Name()] = p }

// RegisterTTS installs a TTS adapter.
func (r *Registry) RegisterTTS(p TTSProvider) { r.tts[p.Name()] = p }

func (r *Registry) STT(id ID) (STTProvider, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	p, ok := r.stt[id]
	if !ok {
		return nil, fmt.Errorf("stt provider %q is not configured", id)
	}
	return p, nil
}

func (r *Registry) LLM(id ID) (LLMProvider, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	p, ok := r.llm[id]
	if !ok {
		return nil, fmt.Errorf("llm provider %q is not configured", id)
	}
	return p, nil
}

func (r *Registry) TTS(id ID) (TTSProvider, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	p, ok := r.tts[id]
	if !ok {
		return nil, fmt.Errorf("tts provider %q is not configured", id)
	}
	return p, nil
}

// Supports reports whether the registry has an adapter for (service, id).
func (r *Registry) Supports(service ServiceType, id ID) bool {
	switch service {
	case ServiceSTT:
		_, ok := r.stt[id]
		return ok
	case ServiceLLM:
		_, ok := r.llm[id]
		return ok
	case ServiceTTS:
		_, ok := r.tts[id]
		return ok
	default:
		return false
	}
}
