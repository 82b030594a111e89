// Package session orchestrates the capture, conversion, transcription
// and persistence workflow. It is the only component the adapters call.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bkomar/voice-to-text-transcriber/internal/audio"
	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
	"github.com/bkomar/voice-to-text-transcriber/internal/metrics"
	"github.com/bkomar/voice-to-text-transcriber/internal/model"
	"github.com/bkomar/voice-to-text-transcriber/internal/notify"
	"github.com/bkomar/voice-to-text-transcriber/internal/store"
)

// ErrNotFound is returned when an operation references a recording
// whose audio file does not exist.
var ErrNotFound = errors.New("recording not found")

// summaryLen is the number of characters of transcript text carried in
// a history entry's summary.
const summaryLen = 50

// Recording describes a canonical audio file created by a capture or
// upload.
type Recording struct {
	ID       string  `json:"filename"`
	Duration float64 `json:"duration"`
}

// HistoryEntry is one row of the history view as presented to adapters.
type HistoryEntry struct {
	ID       string `json:"filename"`
	Duration string `json:"duration"`
	ModTime  string `json:"mtime"`
	Summary  string `json:"summary"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

// Manager owns the end-to-end workflow. All mutations of the recordings
// directory and the transcript store go through it.
type Manager struct {
	ctx       context.Context
	recorder  *audio.Recorder
	converter *audio.Converter
	registry  *model.Registry
	store     *store.Store
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	language  string // default language for implicit transcription

	playMu   sync.Mutex
	playback *playbackSession
}

// Options configures a Manager.
type Options struct {
	Recorder  *audio.Recorder
	Converter *audio.Converter
	Registry  *model.Registry
	Store     *store.Store
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Language  string
}

// New creates a Manager. ctx bounds background work (implicit
// transcriptions, playback) and should live for the process.
func New(ctx context.Context, opts Options) *Manager {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	return &Manager{
		ctx:       ctx,
		recorder:  opts.Recorder,
		converter: opts.Converter,
		registry:  opts.Registry,
		store:     opts.Store,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		language:  opts.Language,
	}
}

// IsRecording reports whether a capture session is active.
func (m *Manager) IsRecording() bool {
	return m.recorder.IsRecording()
}

// RecordStart begins a capture session. Fails with
// audio.ErrAlreadyRecording while one is active. The session's lifetime
// is bound to the Manager's context, not to whatever request triggered
// it; the capture must outlive an HTTP request that returns
// immediately.
func (m *Manager) RecordStart() error {
	if err := m.recorder.Start(m.ctx); err != nil {
		return err
	}
	m.metrics.CapturesStarted.Inc()
	m.metrics.CaptureActive.Set(1)
	go m.notifier.RecordingChanged(true)
	return nil
}

// RecordStop ends the capture session, writes the canonical recording
// and triggers a background transcription in the configured language.
// A session with zero captured frames still produces a valid (empty)
// recording.
func (m *Manager) RecordStop() (Recording, error) {
	pcm, err := m.recorder.Stop()
	if err != nil {
		return Recording{}, err
	}
	m.metrics.CaptureActive.Set(0)
	go m.notifier.RecordingChanged(false)

	id, duration, err := m.converter.SavePCM(pcm)
	if err != nil {
		return Recording{}, err
	}
	m.metrics.RecordingsCreated.Inc()

	logging.WithRecording("session", id).Info().
		Float64("duration", duration).
		Msg("recording saved")

	go m.transcribeInBackground(id)

	return Recording{ID: id, Duration: duration}, nil
}

// transcribeInBackground transcribes a fresh recording with the default
// language. Failures are logged and notified; the recording stays
// listed with an empty transcript until explicitly re-requested.
func (m *Manager) transcribeInBackground(id string) {
	text, err := m.Transcribe(m.ctx, id, m.language)
	if err != nil {
		logging.WithRecording("session", id).Error().Err(err).Msg("background transcription failed")
		m.notifier.Error(fmt.Sprintf("Transcription failed: %v", err))
		return
	}
	m.notifier.TranscriptionDone(truncate(text))
}

// UploadAndNormalize converts an uploaded audio payload into a new
// canonical recording. Fails with audio.ConversionError on an
// undecodable payload, creating nothing.
func (m *Manager) UploadAndNormalize(ctx context.Context, raw []byte) (Recording, error) {
	id, duration, err := m.converter.Normalize(ctx, raw)
	if err != nil {
		if audio.IsConversionError(err) {
			m.metrics.UploadsRejected.Inc()
		}
		return Recording{}, err
	}
	m.metrics.RecordingsCreated.Inc()

	logging.WithRecording("session", id).Info().
		Float64("duration", duration).
		Msg("upload normalized")

	return Recording{ID: id, Duration: duration}, nil
}

// Transcribe runs the active model on a recording and persists the
// transcript on success. On failure any prior record is left untouched.
func (m *Manager) Transcribe(ctx context.Context, id, language string) (string, error) {
	path := m.converter.Path(id)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}

	text, usedModel, err := m.registry.Transcribe(ctx, path, language)
	if err != nil {
		return "", err
	}

	if err := m.store.Put(id, store.Record{
		Text:     text,
		Language: language,
		Model:    usedModel,
	}); err != nil {
		// Transcript is in memory and returned to the caller; only
		// the flush failed.
		logging.WithRecording("session", id).Error().Err(err).Msg("persist transcript")
		return text, err
	}

	return text, nil
}

// History returns the joined filesystem/store view, most recent first.
func (m *Manager) History() ([]HistoryEntry, error) {
	entries, err := m.store.ListWithFilesystem(m.converter.Dir(), m.converter.Duration)
	if err != nil {
		return nil, err
	}

	history := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		history = append(history, HistoryEntry{
			ID:       e.ID,
			Duration: fmt.Sprintf("%.1fs", e.Duration),
			ModTime:  e.ModTime.Format("2006-01-02 15:04:05"),
			Summary:  truncate(e.Text),
			Text:     e.Text,
			Language: e.Language,
			Model:    e.Model,
		})
	}
	return history, nil
}

// Audio returns the raw bytes of a recording's canonical file.
func (m *Manager) Audio(id string) ([]byte, error) {
	data, err := os.ReadFile(m.converter.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return data, nil
}

// Delete removes a recording's audio file and transcript record
// together. Deleting an absent recording succeeds as a no-op.
func (m *Manager) Delete(id string) error {
	path := m.converter.Path(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove recording: %w", err)
	}
	if err := m.store.Remove(id); err != nil {
		return err
	}
	m.metrics.RecordingsDeleted.Inc()
	return nil
}

// SwitchModel delegates to the model registry's asynchronous load.
func (m *Manager) SwitchModel(ctx context.Context, name string) <-chan error {
	return m.registry.Load(ctx, name)
}

// ActiveModel returns the name of the loaded model, if any.
func (m *Manager) ActiveModel() (string, bool) {
	return m.registry.ActiveModel()
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryLen {
		return text
	}
	return string(runes[:summaryLen]) + "..."
}
