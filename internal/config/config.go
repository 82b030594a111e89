// Package config loads, validates and watches the daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/bkomar/voice-to-text-transcriber/internal/audio"
	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
)

type Config struct {
	Storage       StorageConfig       `toml:"storage"`
	Capture       CaptureConfig       `toml:"capture"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Server        ServerConfig        `toml:"server"`
	Notifications NotificationsConfig `toml:"notifications"`
	Logging       LoggingConfig       `toml:"logging"`
}

type StorageConfig struct {
	RecordingsDir   string `toml:"recordings_dir"`
	TranscriptsFile string `toml:"transcripts_file"`
}

type CaptureConfig struct {
	SampleRate int    `toml:"sample_rate"`
	Channels   int    `toml:"channels"`
	Format     string `toml:"format"`
	BufferSize int    `toml:"buffer_size"`
	Device     string `toml:"device"`
}

type TranscriptionConfig struct {
	Provider string `toml:"provider"` // "whisper.cpp" or "openai"
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
	Threads  int    `toml:"threads"`
}

type ServerConfig struct {
	Listen  string `toml:"listen"`
	Metrics bool   `toml:"metrics"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json", "console"
}

// ToCaptureConfig converts to the audio package's capture parameters.
func (c *Config) ToCaptureConfig() audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate: c.Capture.SampleRate,
		Channels:   c.Capture.Channels,
		Format:     c.Capture.Format,
		BufferSize: c.Capture.BufferSize,
		Device:     c.Capture.Device,
	}
}

// ToLoggingConfig converts to the logging package's configuration.
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}

// APIKeyOrEnv returns the configured API key, falling back to
// OPENAI_API_KEY.
func (c *Config) APIKeyOrEnv() string {
	if c.Transcription.APIKey != "" {
		return c.Transcription.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (c *Config) Validate() error {
	// Storage
	if c.Storage.RecordingsDir == "" {
		return fmt.Errorf("invalid storage.recordings_dir: empty")
	}

	// Capture
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture.sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels <= 0 {
		return fmt.Errorf("invalid capture.channels: %d", c.Capture.Channels)
	}
	if c.Capture.BufferSize <= 0 {
		return fmt.Errorf("invalid capture.buffer_size: %d", c.Capture.BufferSize)
	}
	if c.Capture.Format == "" {
		return fmt.Errorf("invalid capture.format: empty")
	}

	// Transcription
	switch c.Transcription.Provider {
	case "whisper.cpp":
	case "openai":
		if c.APIKeyOrEnv() == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (transcription.api_key) or environment variable (OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("invalid transcription.provider: %s (must be whisper.cpp or openai)", c.Transcription.Provider)
	}
	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	if c.Transcription.Language != "" && !isValidLanguageCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
	}

	// Server
	if c.Server.Listen == "" {
		return fmt.Errorf("invalid server.listen: empty")
	}

	// Notifications
	validTypes := map[string]bool{"desktop": true, "log": true, "none": true, "": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

func isValidLanguageCode(code string) bool {
	validCodes := map[string]bool{
		"en": true, "es": true, "fr": true, "de": true, "it": true, "pt": true,
		"ru": true, "ja": true, "ko": true, "zh": true, "ar": true, "hi": true,
		"nl": true, "sv": true, "da": true, "no": true, "fi": true, "pl": true,
		"tr": true, "he": true, "th": true, "vi": true, "id": true, "ms": true,
		"uk": true, "cs": true, "hu": true, "ro": true, "bg": true, "hr": true,
		"el": true, "ca": true, "sk": true, "sl": true, "et": true, "lv": true,
		"lt": true, "fa": true, "ur": true, "bn": true, "ta": true, "te": true,
		"sw": true, "af": true, "is": true, "mk": true, "sq": true, "hy": true,
	}
	return validCodes[code]
}

// GetConfigPath returns the config file location, creating the config
// directory if needed.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config directory: %w", err)
	}

	dir := filepath.Join(configDir, "voiced")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, creating it with defaults on first run.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	logger := logging.WithComponent("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Info().Str("path", configPath).Msg("no config file found, creating with defaults")
		if err := Save(DefaultConfig()); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}

	config.applyDefaults()

	logger.Debug().Str("path", configPath).Msg("configuration loaded")
	return &config, nil
}

// Save writes the config to the config file.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
