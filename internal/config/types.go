package config

import "time"

type Config struct {
	General       GeneralConfig       `toml:"general"`
	Recording     RecordingConfig     `toml:"recording"`
	Transcription TranscriptionConfig `toml:"transcription"`
	LLM           LLMConfig           `toml:"llm"`
	Notes         NotesConfig         `toml:"notes"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds global settings that apply across the application
type GeneralConfig struct {
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"` // empty disables the /metrics endpoint
}

type RecordingConfig struct {
	Backend           string        `toml:"backend"` // "pipewire" or "portaudio"
	SampleRate        int           `toml:"sample_rate"`
	Channels          int           `toml:"channels"`
	Format            string        `toml:"format"`
	BufferSize        int           `toml:"buffer_size"`
	Device            string        `toml:"device"`
	ChannelBufferSize int           `toml:"channel_buffer_size"`
	SegmentInterval   time.Duration `toml:"segment_interval"`
}

type TranscriptionConfig struct {
	Provider string        `toml:"provider"` // "http" or "openai"
	Endpoint string        `toml:"endpoint"`
	APIKey   string        `toml:"api_key"`
	Model    string        `toml:"model"`
	Language string        `toml:"language"`
	Timeout  time.Duration `toml:"timeout"`
	StageDir string        `toml:"stage_dir"`
}

// LLMConfig configures the note-structuring phase
type LLMConfig struct {
	Enabled         bool          `toml:"enabled"`
	Provider        string        `toml:"provider"` // "generate", "openai" or "chat"
	Endpoint        string        `toml:"endpoint"`
	APIKey          string        `toml:"api_key"`
	Model           string        `toml:"model"`
	MaxTokens       int           `toml:"max_tokens"`
	Temperature     float32       `toml:"temperature"`
	Timeout         time.Duration `toml:"timeout"`
	Keywords        []string      `toml:"keywords"`
	CustomPrompt    string        `toml:"custom_prompt"`
	SummarizeOnStop bool          `toml:"summarize_on_stop"`
}

type NotesConfig struct {
	VaultPath string `toml:"vault_path"` // empty disables note appending
	Folder    string `toml:"folder"`
}

type NotificationsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Type      string `toml:"type"`       // "desktop", "log", "none"
	QueueSize int    `toml:"queue_size"` // transcription results waiting for the orchestrator
}
