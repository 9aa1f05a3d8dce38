package ai

import (
	"fmt"
	"strings"
)

// Backend identifies a document processing backend.
type Backend string

const (
	Mistral   Backend = "mistral"
	OpenAI    Backend = "openai"
	Gemini    Backend = "gemini"
	Anthropic Backend = "anthropic"
	Local     Backend = "local"
)

func (b Backend) String() string { return string(b) }

// ParseBackend normalizes a provider name. Unknown names return ErrUnsupported.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := registry[b]; ok || b == Local {
		return b, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, name)
}

type backendInfo struct {
	newClient    func(Config) Client
	defaultModel string
	ocrModel     string
}

// registry is the single dispatch table from backend to implementation.
var registry = map[Backend]backendInfo{
	OpenAI: {
		newClient:    func(c Config) Client { return NewOpenAIClient(c) },
		defaultModel: "gpt-4.1-mini",
		ocrModel:     "gpt-4.1-mini",
	},
	Mistral: {
		newClient:    func(c Config) Client { return NewMistralClient(c) },
		defaultModel: "mistral-small-latest",
		ocrModel:     "mistral-ocr-latest",
	},
	Gemini: {
		newClient:    func(c Config) Client { return NewGeminiClient(c) },
		defaultModel: "gemini-2.5-flash",
		ocrModel:     "gemini-2.5-flash",
	},
	Anthropic: {
		newClient:    func(c Config) Client { return NewAnthropicClient(c) },
		defaultModel: "claude-3-5-sonnet-latest",
		ocrModel:     "claude-3-5-sonnet-latest",
	},
}

// IsAI reports whether b is served by a remote model.
func (b Backend) IsAI() bool {
	_, ok := registry[b]
	return ok
}

// DefaultModel returns the completion model used when the caller names none.
func (b Backend) DefaultModel() string { return registry[b].defaultModel }

// DefaultOCRModel returns the model used for OCR when the caller names none.
func (b Backend) DefaultOCRModel() string { return registry[b].ocrModel }

// AIBackends lists the remote backends in a stable order.
func AIBackends() []Backend { return []Backend{Mistral, OpenAI, Gemini, Anthropic} }

// New builds a client for b.
func New(b Backend, cfg Config) (Client, error) {
	info, ok := registry[b]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, b)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return info.newClient(cfg), nil
}

// Factory builds clients; tests substitute their own.
type Factory func(b Backend, cfg Config) (Client, error)
