package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
)

// ChatAdapter implements Adapter with chat completions, for OpenAI-compatible
// servers (Groq, OpenAI, Ollama) that no longer expose /completions.
type ChatAdapter struct {
	client *openai.Client
	model  string
}

func NewChatAdapter(cfg Config, httpClient *http.Client) *ChatAdapter {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &ChatAdapter{
		client: openAIClient(cfg, httpClient),
		model:  model,
	}
}

func (a *ChatAdapter) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		log.Debug("chat-llm-adapter: API call failed", "duration", duration, "err", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no response choices")
	}

	result := resp.Choices[0].Message.Content
	log.Debug("chat-llm-adapter: completed", "duration", duration, "chars", len(result))
	return result, nil
}
