package config

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/leonardotrapani/hyprscribe/internal/language"
	"github.com/leonardotrapani/hyprscribe/internal/llm"
	"github.com/leonardotrapani/hyprscribe/internal/notify"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.General.LogLevel); err != nil {
		return fmt.Errorf("invalid general.log_level: %s", c.General.LogLevel)
	}

	if err := c.ToRecordingConfig().Validate(); err != nil {
		return fmt.Errorf("invalid recording: %w", err)
	}
	if c.Recording.SegmentInterval <= 0 {
		return fmt.Errorf("invalid recording.segment_interval: %v", c.Recording.SegmentInterval)
	}

	switch c.Transcription.Provider {
	case transcriber.ProviderHTTP:
		if c.Transcription.Endpoint == "" {
			return fmt.Errorf("invalid transcription.endpoint: empty")
		}
	case transcriber.ProviderOpenAI:
		if c.Transcription.APIKey == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (transcription.api_key) or environment variable (%s, %s)", EnvTranscriptionAPIKey, EnvOpenAIAPIKey)
		}
	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be http or openai)", c.Transcription.Provider)
	}
	if c.Transcription.Timeout <= 0 {
		return fmt.Errorf("invalid transcription.timeout: %v", c.Transcription.Timeout)
	}
	if c.Transcription.Language != "" && !language.IsValidCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
	}

	if c.LLM.Enabled {
		switch c.LLM.Provider {
		case llm.ProviderGenerate:
			if c.LLM.Endpoint == "" {
				return fmt.Errorf("llm.endpoint required when llm.provider = generate")
			}
		case llm.ProviderOpenAI, llm.ProviderChat:
			if c.LLM.APIKey == "" {
				return fmt.Errorf("LLM API key required: not found in config (llm.api_key) or environment variable (%s, %s)", EnvLLMAPIKey, EnvOpenAIAPIKey)
			}
		default:
			return fmt.Errorf("invalid llm.provider: %s (must be generate, openai or chat)", c.LLM.Provider)
		}
		if c.LLM.MaxTokens <= 0 {
			return fmt.Errorf("invalid llm.max_tokens: %d", c.LLM.MaxTokens)
		}
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			return fmt.Errorf("invalid llm.temperature: %v (must be between 0 and 2)", c.LLM.Temperature)
		}
		if c.LLM.Timeout <= 0 {
			return fmt.Errorf("invalid llm.timeout: %v", c.LLM.Timeout)
		}
	}

	validTypes := map[string]bool{notify.TypeDesktop: true, notify.TypeLog: true, notify.TypeNone: true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}
	if c.Notifications.QueueSize <= 0 {
		return fmt.Errorf("invalid notifications.queue_size: %d", c.Notifications.QueueSize)
	}

	if c.Recording.Backend == recording.BackendPortAudio && !recording.Available(recording.BackendPortAudio) {
		log.Warn("Config: portaudio backend selected but not compiled in (build with -tags portaudio)")
	}

	return nil
}
