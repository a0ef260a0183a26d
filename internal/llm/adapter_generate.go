package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// GenerateAdapter talks to a llama.cpp style server exposing POST /generate.
type GenerateAdapter struct {
	client *http.Client
	url    string
}

func NewGenerateAdapter(cfg Config, client *http.Client) *GenerateAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &GenerateAdapter{
		client: client,
		url:    strings.TrimRight(cfg.Endpoint, "/") + "/generate",
	}
}

type generateRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float32  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (a *GenerateAdapter) Complete(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	log.Debug("generate-llm-adapter: completed", "duration", time.Since(start), "chars", len(out.Text))
	return out.Text, nil
}
