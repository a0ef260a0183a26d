package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	return filepath.Join(configDir, "hyprscribe", "config.toml"), nil
}

// Load reads the config from the default location. A missing file yields
// DefaultConfig.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	config, err := LoadFile(configPath)
	if errors.Is(err, ErrConfigNotFound) {
		log.Info("Config: no configuration file, using defaults", "path", configPath)
		config = DefaultConfig()
		config.applyEnv()
		return config, nil
	}
	return config, err
}

// LoadFile decodes path on top of DefaultConfig, so omitted keys keep their
// defaults. It returns ErrConfigNotFound when the file does not exist.
func LoadFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	log.Debug("Config: loading configuration", "path", configPath)
	config := DefaultConfig()
	meta, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warn("Config: unknown keys ignored", "keys", undecoded)
	}

	config.applyEnv()
	config.Notes.VaultPath = expandHome(config.Notes.VaultPath)
	config.Transcription.StageDir = expandHome(config.Transcription.StageDir)

	return config, nil
}

// Save writes config as TOML, creating the directory if needed.
func Save(configPath string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

const (
	EnvTranscriptionAPIKey = "HYPRSCRIBE_TRANSCRIPTION_API_KEY"
	EnvLLMAPIKey           = "HYPRSCRIBE_LLM_API_KEY"
	EnvOpenAIAPIKey        = "OPENAI_API_KEY"
)

// applyEnv fills API keys that the file leaves empty.
func (c *Config) applyEnv() {
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = firstEnv(EnvTranscriptionAPIKey, EnvOpenAIAPIKey)
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = firstEnv(EnvLLMAPIKey, EnvOpenAIAPIKey)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
