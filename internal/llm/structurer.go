package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrEmptyCompletion is returned when the service answers with blank text.
var ErrEmptyCompletion = errors.New("empty completion")

// Structurer formats transcriptions and session summaries. Callers decide
// what to fall back to on error.
type Structurer struct {
	adapter Adapter
	config  Config
}

func NewStructurer(cfg Config, adapter Adapter) *Structurer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Structurer{adapter: adapter, config: cfg}
}

// Structure returns text rewritten as organized notes.
func (s *Structurer) Structure(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return s.complete(ctx, "structure", Request{
		Prompt:      BuildStructurePrompt(text, s.config.CustomPrompt, s.config.Keywords),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		Stop:        []string{"\n\n\n"},
	})
}

// Summarize condenses a whole session's notes.
func (s *Structurer) Summarize(ctx context.Context, notes string) (string, error) {
	if strings.TrimSpace(notes) == "" {
		return "", ErrEmptyCompletion
	}
	return s.complete(ctx, "summarize", Request{
		Prompt:      BuildSummaryPrompt(notes),
		MaxTokens:   SummaryMaxTokens,
		Temperature: SummaryTemperature,
	})
}

func (s *Structurer) complete(ctx context.Context, op string, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	out, err := s.adapter.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyCompletion)
	}

	log.Debug("llm: completed", "op", op, "duration", time.Since(start), "chars", len(out))
	return out, nil
}
