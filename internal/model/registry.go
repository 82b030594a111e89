package model

import (
	"context"
	"sync"
	"time"

	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
	"github.com/bkomar/voice-to-text-transcriber/internal/metrics"
)

// State of the active model.
type State string

const (
	Unloaded State = "unloaded"
	Loading  State = "loading"
	Loaded   State = "loaded"
)

// Factory builds an Engine for a model name. Loading may be slow
// (weight download, process warmup) and runs off the caller's path.
type Factory func(ctx context.Context, name string) (Engine, error)

// Registry owns the process-wide active model. It runs model switches
// asynchronously with last-request-wins semantics and serializes all
// inference against the single loaded instance.
type Registry struct {
	factory Factory
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   State
	name    string
	engine  Engine
	loadGen uint64

	inferMu sync.Mutex // at most one inference at a time
}

// NewRegistry creates a Registry in the Unloaded state.
func NewRegistry(factory Factory, m *metrics.Metrics) *Registry {
	if m == nil {
		m = metrics.Nop()
	}
	return &Registry{
		factory: factory,
		metrics: m,
		state:   Unloaded,
	}
}

// State returns the current lifecycle state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ActiveModel returns the name of the loaded model, if any.
func (r *Registry) ActiveModel() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return "", false
	}
	return r.name, true
}

// Load switches the active model to name. If the model is already
// loaded this is an immediate no-op. Otherwise the load runs in the
// background and the result is delivered on the returned channel. A
// load overtaken by a newer request reports ErrSuperseded and never
// installs its engine. On failure the previously active model stays in
// place.
func (r *Registry) Load(ctx context.Context, name string) <-chan error {
	done := make(chan error, 1)
	logger := logging.WithComponent("registry")

	r.mu.Lock()
	if r.engine != nil && r.name == name {
		r.mu.Unlock()
		done <- nil
		return done
	}

	r.loadGen++
	gen := r.loadGen
	if r.engine == nil {
		r.state = Loading
	}
	r.mu.Unlock()

	logger.Info().Str("model", name).Msg("loading model")

	go func() {
		start := time.Now()
		engine, err := r.factory(ctx, name)
		elapsed := time.Since(start)

		r.mu.Lock()
		if gen != r.loadGen {
			r.mu.Unlock()
			logger.Info().Str("model", name).Msg("load superseded, discarding")
			done <- ErrSuperseded
			return
		}

		if err != nil {
			// ActiveModel unchanged.
			if r.engine == nil {
				r.state = Unloaded
			}
			r.mu.Unlock()
			r.metrics.RecordModelLoad(err, elapsed.Seconds())
			logger.Error().Err(err).Str("model", name).Msg("model load failed")
			done <- &LoadError{Model: name, Err: err}
			return
		}

		r.engine = engine
		r.name = name
		r.state = Loaded
		r.mu.Unlock()

		r.metrics.RecordModelLoad(nil, elapsed.Seconds())
		logger.Info().Str("model", name).Dur("elapsed", elapsed).Msg("model loaded")
		done <- nil
	}()

	return done
}

// Transcribe runs inference on a canonical audio file and returns the
// transcript together with the name of the model that produced it.
// Calls are strictly serialized; a transcription started before a model
// switch finishes against the engine it started with, and the returned
// name reflects that engine, not whatever loaded in the meantime. Fails
// with ErrNotLoaded before the first successful load, and with
// InferenceError when the model fails on the input.
func (r *Registry) Transcribe(ctx context.Context, audioPath, language string) (string, string, error) {
	r.mu.Lock()
	engine, name := r.engine, r.name
	r.mu.Unlock()

	if engine == nil {
		return "", "", ErrNotLoaded
	}

	r.inferMu.Lock()
	defer r.inferMu.Unlock()

	start := time.Now()
	text, err := engine.Transcribe(ctx, audioPath, language)
	r.metrics.RecordTranscription(name, err, time.Since(start).Seconds())

	if err != nil {
		return "", name, &InferenceError{Model: name, Err: err}
	}
	return text, name, nil
}

// DefaultFactory builds engines from the configured provider: local
// whisper.cpp inference on downloaded weights, or the OpenAI API.
// Local weights are downloaded on first load, mirroring the lazy
// download behavior of whisper model loading.
func DefaultFactory(provider, apiKey string, threads int) Factory {
	return func(ctx context.Context, name string) (Engine, error) {
		if provider == "openai" {
			return NewOpenAIEngine(apiKey, name), nil
		}

		if !IsInstalled(name) {
			if err := Download(ctx, name, nil); err != nil {
				return nil, err
			}
		}
		return NewWhisperCppEngine(Path(name), threads), nil
	}
}
