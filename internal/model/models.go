// Package model owns the transcription model lifecycle: the catalog of
// known whisper models, downloading local model weights, and the
// registry holding the currently loaded model.
package model

import (
	"os"
	"path/filepath"
)

// Info holds metadata for a whisper model.
type Info struct {
	ID           string // model identifier (e.g. "base.en")
	Name         string // display name (e.g. "Base English")
	Filename     string // weight file name (e.g. "ggml-base.en.bin")
	Size         string // human readable size
	SizeBytes    int64  // size in bytes for progress reporting
	Multilingual bool
}

// available whisper models from huggingface.co/ggerganov/whisper.cpp
var catalog = []Info{
	// english-only models (faster, smaller)
	{ID: "tiny.en", Name: "Tiny English", Filename: "ggml-tiny.en.bin", Size: "75MB", SizeBytes: 75_000_000, Multilingual: false},
	{ID: "base.en", Name: "Base English", Filename: "ggml-base.en.bin", Size: "142MB", SizeBytes: 142_000_000, Multilingual: false},
	{ID: "small.en", Name: "Small English", Filename: "ggml-small.en.bin", Size: "466MB", SizeBytes: 466_000_000, Multilingual: false},
	{ID: "medium.en", Name: "Medium English", Filename: "ggml-medium.en.bin", Size: "1.5GB", SizeBytes: 1_500_000_000, Multilingual: false},

	// multilingual models
	{ID: "tiny", Name: "Tiny", Filename: "ggml-tiny.bin", Size: "75MB", SizeBytes: 75_000_000, Multilingual: true},
	{ID: "base", Name: "Base", Filename: "ggml-base.bin", Size: "142MB", SizeBytes: 142_000_000, Multilingual: true},
	{ID: "small", Name: "Small", Filename: "ggml-small.bin", Size: "466MB", SizeBytes: 466_000_000, Multilingual: true},
	{ID: "medium", Name: "Medium", Filename: "ggml-medium.bin", Size: "1.5GB", SizeBytes: 1_500_000_000, Multilingual: true},
	{ID: "large-v3", Name: "Large V3", Filename: "ggml-large-v3.bin", Size: "3GB", SizeBytes: 3_000_000_000, Multilingual: true},
}

var catalogByID = func() map[string]Info {
	m := make(map[string]Info, len(catalog))
	for _, info := range catalog {
		m[info.ID] = info
	}
	return m
}()

const baseDownloadURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// ModelsDir returns the directory where model weights are stored.
func ModelsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "voiced", "models"), nil
}

// Path returns the full path to a model weight file, or empty string if
// the model ID is unknown.
func Path(modelID string) string {
	info, ok := catalogByID[modelID]
	if !ok {
		return ""
	}
	dir, err := ModelsDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, info.Filename)
}

// DownloadURL returns the download URL for a model, or empty string if
// the model ID is unknown.
func DownloadURL(modelID string) string {
	info, ok := catalogByID[modelID]
	if !ok {
		return ""
	}
	return baseDownloadURL + "/" + info.Filename
}

// Get returns catalog info for a model by ID, or nil if unknown.
func Get(modelID string) *Info {
	info, ok := catalogByID[modelID]
	if !ok {
		return nil
	}
	return &info
}

// List returns all catalog models.
func List() []Info {
	result := make([]Info, len(catalog))
	copy(result, catalog)
	return result
}

// IsInstalled returns true if the model weights are downloaded.
func IsInstalled(modelID string) bool {
	path := Path(modelID)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// ListInstalled returns IDs of all installed models.
func ListInstalled() []string {
	var installed []string
	for _, m := range catalog {
		if IsInstalled(m.ID) {
			installed = append(installed, m.ID)
		}
	}
	return installed
}
