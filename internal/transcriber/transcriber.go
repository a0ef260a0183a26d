// Package transcriber uploads WAV segments to a speech-recognition service.
package transcriber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"

	DefaultTimeout  = 30 * time.Second
	DefaultEndpoint = "http://localhost:8080/transcribe"
	DefaultModel    = "whisper-1"
)

// Adapter performs one upload. name is the filename presented to the service.
type Adapter interface {
	Transcribe(ctx context.Context, name string, audio io.Reader) (string, error)
}

// Configuration for the transcriber
type Config struct {
	Provider string
	Endpoint string
	APIKey   string
	Language string
	Model    string
	Timeout  time.Duration
	// StageDir, when set, stages each segment as a temporary file there
	// before upload. The file never outlives the upload.
	StageDir string
}

func DefaultConfig() Config {
	return Config{
		Provider: ProviderHTTP,
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
	}
}

// Result is the outcome of transcribing one segment. Text is empty when the
// service failed or heard nothing.
type Result struct {
	SegmentID   string
	Text        string
	CapturedAt  time.Time
	CompletedAt time.Time
}

// NewAdapter creates the adapter for config.Provider.
func NewAdapter(config Config, client *http.Client) (Adapter, error) {
	switch config.Provider {
	case ProviderHTTP, "":
		if config.Endpoint == "" {
			return nil, fmt.Errorf("transcription endpoint required")
		}
		return NewHTTPAdapter(config, client), nil

	case ProviderOpenAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		return NewOpenAIAdapter(config, client), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}
