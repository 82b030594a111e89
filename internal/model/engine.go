package model

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
)

// Engine is a loaded transcription model instance. A single instance is
// not safe for concurrent inference; the Registry serializes calls.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// WhisperCppEngine runs local inference through the whisper-cli binary.
type WhisperCppEngine struct {
	modelPath string
	threads   int
}

// NewWhisperCppEngine creates an engine for a downloaded model weight file.
func NewWhisperCppEngine(modelPath string, threads int) *WhisperCppEngine {
	return &WhisperCppEngine{modelPath: modelPath, threads: threads}
}

func (e *WhisperCppEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	logger := logging.WithComponent("whisper-cpp")

	if _, err := os.Stat(e.modelPath); os.IsNotExist(err) {
		return "", fmt.Errorf("model file not found: %s", e.modelPath)
	}

	whisperPath, err := exec.LookPath("whisper-cli")
	if err != nil {
		return "", fmt.Errorf("whisper-cli not found: install whisper.cpp first")
	}

	if language == "" {
		language = "auto"
	}

	args := []string{
		"-m", e.modelPath,
		"-l", language,
		"-nt", // no timestamps
		"-np", // no progress
		"-f", audioPath,
	}
	if e.threads > 0 {
		args = append(args, "-t", fmt.Sprintf("%d", e.threads))
	}

	cmd := exec.CommandContext(ctx, whisperPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Error().
			Err(err).
			Dur("elapsed", elapsed).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("whisper-cli failed")
		return "", fmt.Errorf("whisper-cli failed: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	logger.Debug().
		Dur("elapsed", elapsed).
		Str("audio", audioPath).
		Msg("transcription complete")
	return text, nil
}
