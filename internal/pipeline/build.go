package pipeline

import (
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/leonardotrapani/hyprscribe/internal/config"
	"github.com/leonardotrapani/hyprscribe/internal/llm"
	"github.com/leonardotrapani/hyprscribe/internal/metrics"
	"github.com/leonardotrapani/hyprscribe/internal/notes"
	"github.com/leonardotrapani/hyprscribe/internal/notify"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

// FromConfig assembles a pipeline for one session from the current config.
func FromConfig(cfg *config.Config, m *metrics.Metrics, clock clockwork.Clock) (*Pipeline, error) {
	device, err := recording.New(cfg.ToRecordingConfig())
	if err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}

	client, err := NewTranscriptionClient(cfg, m, clock)
	if err != nil {
		return nil, err
	}

	captureCfg, err := cfg.ToCaptureConfig()
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	captureCfg.Clock = clock

	orch := OrchestratorConfig{
		Appender:  notes.Discard{},
		Summarize: cfg.LLM.SummarizeOnStop,
		Metrics:   m,
	}

	if cfg.IsLLMEnabled() {
		llmCfg := cfg.ToLLMConfig()
		adapter, err := llm.NewAdapter(llmCfg, &http.Client{})
		if err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
		orch.Structurer = llm.NewStructurer(llmCfg, adapter)
	}

	if cfg.Notes.VaultPath != "" {
		notesCfg := cfg.ToNotesConfig()
		notesCfg.Clock = clock
		appender, err := notes.NewMarkdownAppender(notesCfg)
		if err != nil {
			return nil, fmt.Errorf("notes: %w", err)
		}
		orch.Appender = appender
	}

	if cfg.Notifications.Enabled {
		orch.Notifier = notify.New(cfg.Notifications.Type)
	}

	return New(Deps{
		Device:       device,
		Transcriber:  client,
		Capture:      captureCfg,
		QueueSize:    cfg.Notifications.QueueSize,
		Metrics:      m,
		Orchestrator: orch,
	}), nil
}

// NewTranscriptionClient builds the configured adapter behind a Client.
func NewTranscriptionClient(cfg *config.Config, m *metrics.Metrics, clock clockwork.Clock) (*transcriber.Client, error) {
	trCfg := cfg.ToTranscriberConfig()
	adapter, err := transcriber.NewAdapter(trCfg, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}

	opts := []transcriber.ClientOption{transcriber.WithMetrics(m)}
	if clock != nil {
		opts = append(opts, transcriber.WithClock(clock))
	}
	return transcriber.NewClient(trCfg, adapter, opts...), nil
}
