package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// HTTPAdapter posts the container as multipart form data to a
// whisper.cpp-server style endpoint and reads {"text": "..."} back.
type HTTPAdapter struct {
	client *http.Client
	config Config
}

func NewHTTPAdapter(config Config, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAdapter{client: client, config: config}
}

type httpTranscriptionResponse struct {
	Text *string `json:"text"`
}

func (a *HTTPAdapter) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copy audio to form: %w", err)
	}
	if err := writer.WriteField("model", a.config.Model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if a.config.Language != "" {
		if err := writer.WriteField("language", a.config.Language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if a.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	var parsed httpTranscriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Text == nil {
		return "", fmt.Errorf("%w: missing text field", ErrMalformedResponse)
	}

	log.Debug("http-adapter: transcribed", "file", name, "duration", time.Since(start), "text", *parsed.Text)
	return *parsed.Text, nil
}
