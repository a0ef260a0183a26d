package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
)

func openAIClient(cfg Config, httpClient *http.Client) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" && cfg.Endpoint != DefaultEndpoint {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(clientConfig)
}

// OpenAIAdapter implements Adapter using the completions API, which carries
// the same prompt/max_tokens/temperature/stop fields as /generate.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

func NewOpenAIAdapter(cfg Config, httpClient *http.Client) *OpenAIAdapter {
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5TurboInstruct
	}
	return &OpenAIAdapter{
		client: openAIClient(cfg, httpClient),
		model:  model,
	}
}

func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	resp, err := a.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       a.model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	})
	duration := time.Since(start)

	if err != nil {
		log.Debug("openai-llm-adapter: API call failed", "duration", duration, "err", err)
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no response choices")
	}

	log.Debug("openai-llm-adapter: completed", "duration", duration, "chars", len(resp.Choices[0].Text))
	return resp.Choices[0].Text, nil
}
