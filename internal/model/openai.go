package model

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
)

// OpenAIEngine transcribes through the OpenAI audio transcription API.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an engine calling the given API model
// (e.g. "whisper-1").
func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	logger := logging.WithComponent("openai")

	req := openai.AudioRequest{
		Model:    e.model,
		FilePath: audioPath,
		Language: language,
	}

	start := time.Now()
	resp, err := e.client.CreateTranscription(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("API call failed")
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	logger.Debug().
		Dur("elapsed", elapsed).
		Str("audio", audioPath).
		Msg("transcription complete")
	return resp.Text, nil
}
