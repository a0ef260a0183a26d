package config

import (
	"github.com/leonardotrapani/hyprscribe/internal/capture"
	"github.com/leonardotrapani/hyprscribe/internal/llm"
	"github.com/leonardotrapani/hyprscribe/internal/notes"
	"github.com/leonardotrapani/hyprscribe/internal/recording"
	"github.com/leonardotrapani/hyprscribe/internal/transcriber"
)

const DefaultQueueSize = 16

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	rec := recording.DefaultConfig()
	tr := transcriber.DefaultConfig()
	lc := llm.DefaultConfig()

	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Recording: RecordingConfig{
			Backend:           rec.Backend,
			SampleRate:        rec.SampleRate,
			Channels:          rec.Channels,
			Format:            rec.Format,
			BufferSize:        rec.BufferSize,
			Device:            rec.Device,
			ChannelBufferSize: rec.ChannelBufferSize,
			SegmentInterval:   capture.DefaultInterval,
		},
		Transcription: TranscriptionConfig{
			Provider: tr.Provider,
			Endpoint: tr.Endpoint,
			Model:    tr.Model,
			Timeout:  tr.Timeout,
		},
		LLM: LLMConfig{
			Enabled:     false,
			Provider:    lc.Provider,
			Endpoint:    lc.Endpoint,
			MaxTokens:   lc.MaxTokens,
			Temperature: lc.Temperature,
			Timeout:     lc.Timeout,
		},
		Notes: NotesConfig{
			Folder: notes.DefaultFolder,
		},
		Notifications: NotificationsConfig{
			Enabled:   true,
			Type:      "desktop",
			QueueSize: DefaultQueueSize,
		},
	}
}
