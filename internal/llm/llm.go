// Package llm turns raw transcriptions into structured meeting notes using a
// text-completion service.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	ProviderGenerate = "generate"
	ProviderOpenAI   = "openai"
	ProviderChat     = "chat"

	DefaultEndpoint    = "http://localhost:8081"
	DefaultTimeout     = 10 * time.Second
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.3

	SummaryMaxTokens   = 300
	SummaryTemperature = 0.2
)

// Request is a single completion call. Stop sequences end generation early.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
	Stop        []string
}

// Adapter interface for text completion services
type Adapter interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config holds LLM adapter configuration
type Config struct {
	Provider     string
	Endpoint     string
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float32
	Timeout      time.Duration
	CustomPrompt string
	Keywords     []string
}

func DefaultConfig() Config {
	return Config{
		Provider:    ProviderGenerate,
		Endpoint:    DefaultEndpoint,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
	}
}

// NewAdapter creates an LLM adapter based on the provider
func NewAdapter(cfg Config, client *http.Client) (Adapter, error) {
	switch cfg.Provider {
	case ProviderGenerate, "":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("generate endpoint required")
		}
		return NewGenerateAdapter(cfg, client), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIAdapter(cfg, client), nil
	case ProviderChat:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("chat API key required")
		}
		return NewChatAdapter(cfg, client), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
