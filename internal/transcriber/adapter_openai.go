package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements Adapter for OpenAI-compatible
// /audio/transcriptions endpoints (OpenAI, Groq, whisper.cpp server, LocalAI).
type OpenAIAdapter struct {
	client *openai.Client
	config Config
}

func NewOpenAIAdapter(config Config, httpClient *http.Client) *OpenAIAdapter {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.Endpoint != "" && config.Endpoint != DefaultEndpoint {
		clientConfig.BaseURL = config.Endpoint
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	req := openai.AudioRequest{
		Model:    a.config.Model,
		Reader:   audio,
		FilePath: name,
		Language: a.config.Language,
	}

	start := time.Now()
	resp, err := a.client.CreateTranscription(ctx, req)
	duration := time.Since(start)

	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	log.Debug("openai-adapter: transcribed", "file", name, "duration", duration, "text", resp.Text)
	return resp.Text, nil
}
