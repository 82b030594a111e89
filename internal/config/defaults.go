package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			RecordingsDir:   defaultRecordingsDir(),
			TranscriptsFile: "", // derived from recordings_dir when empty
		},
		Capture: CaptureConfig{
			SampleRate: 16000,
			Channels:   1,
			Format:     "s16",
			BufferSize: 8192,
			Device:     "",
		},
		Transcription: TranscriptionConfig{
			Provider: "whisper.cpp",
			APIKey:   "",
			Model:    "base",
			Language: "en",
			Threads:  0,
		},
		Server: ServerConfig{
			Listen:  "127.0.0.1:5000",
			Metrics: true,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultRecordingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recordings"
	}
	return filepath.Join(home, ".local", "share", "voiced", "recordings")
}

// applyDefaults fills fields that may legitimately be absent from an
// edited config file.
func (c *Config) applyDefaults() {
	if c.Storage.RecordingsDir == "" {
		c.Storage.RecordingsDir = defaultRecordingsDir()
	}
	if c.Storage.TranscriptsFile == "" {
		c.Storage.TranscriptsFile = filepath.Join(c.Storage.RecordingsDir, "transcripts.json")
	}
	if c.Transcription.Threads == 0 {
		threads := runtime.NumCPU() - 1
		if threads < 1 {
			threads = 1
		}
		c.Transcription.Threads = threads
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}
