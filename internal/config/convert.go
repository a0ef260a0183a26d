package config

import (
	"github.com/leonardotrapani/hyprscribe/internal/capture"
	"github.com/leonardotrapani/hyprscribe/internal/llm"
	"github.com/leonardotrapani/hyprscribe/internal/logging"
	"github.com/leonardotrapani/hyprscribe/internal/notes"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		Backend:           c.Recording.Backend,
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		BufferSize:        c.Recording.BufferSize,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

// ToCaptureConfig returns the session settings. Clock and metrics are left
// for the caller.
func (c *Config) ToCaptureConfig() (capture.Config, error) {
	format, err := c.ToRecordingConfig().WavFormat()
	if err != nil {
		return capture.Config{}, err
	}
	return capture.Config{
		Format:   format,
		Interval: c.Recording.SegmentInterval,
	}, nil
}

func (c *Config) ToTranscriberConfig() transcriber.Config {
	return transcriber.Config{
		Provider: c.Transcription.Provider,
		Endpoint: c.Transcription.Endpoint,
		APIKey:   c.Transcription.APIKey,
		Language: c.Transcription.Language,
		Model:    c.Transcription.Model,
		Timeout:  c.Transcription.Timeout,
		StageDir: c.Transcription.StageDir,
	}
}

// ToLLMConfig returns the LLM adapter configuration
func (c *Config) ToLLMConfig() llm.Config {
	return llm.Config{
		Provider:     c.LLM.Provider,
		Endpoint:     c.LLM.Endpoint,
		APIKey:       c.LLM.APIKey,
		Model:        c.LLM.Model,
		MaxTokens:    c.LLM.MaxTokens,
		Temperature:  c.LLM.Temperature,
		Timeout:      c.LLM.Timeout,
		CustomPrompt: c.LLM.CustomPrompt,
		Keywords:     c.LLM.Keywords,
	}
}

// IsLLMEnabled returns true if note structuring is enabled and configured
func (c *Config) IsLLMEnabled() bool {
	return c.LLM.Enabled && c.LLM.Provider != ""
}

func (c *Config) ToNotesConfig() notes.Config {
	return notes.Config{
		VaultPath: c.Notes.VaultPath,
		Folder:    c.Notes.Folder,
	}
}

func (c *Config) ToLoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	if c.General.LogLevel != "" {
		lc.Level = c.General.LogLevel
	}
	return lc
}
