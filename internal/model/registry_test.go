package model

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEngine struct {
	name string
	text string
	err  error
}

func (f *fakeEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func instantFactory(calls *atomic.Int64) Factory {
	return func(ctx context.Context, name string) (Engine, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &fakeEngine{name: name, text: "hello from " + name}, nil
	}
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("starts unloaded", func(t *testing.T) {
		r := NewRegistry(instantFactory(nil), nil)
		if r.State() != Unloaded {
			t.Errorf("state = %s, expected %s", r.State(), Unloaded)
		}
		if _, ok := r.ActiveModel(); ok {
			t.Error("no model should be active before the first load")
		}
	})

	t.Run("transcribe before load fails", func(t *testing.T) {
		r := NewRegistry(instantFactory(nil), nil)
		_, _, err := r.Transcribe(ctx, "/tmp/some.wav", "en")
		if !errors.Is(err, ErrNotLoaded) {
			t.Errorf("error = %v, expected ErrNotLoaded", err)
		}
	})

	t.Run("successful load installs model", func(t *testing.T) {
		r := NewRegistry(instantFactory(nil), nil)
		if err := <-r.Load(ctx, "base"); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if r.State() != Loaded {
			t.Errorf("state = %s, expected %s", r.State(), Loaded)
		}
		name, ok := r.ActiveModel()
		if !ok || name != "base" {
			t.Errorf("active model = %q/%v, expected base/true", name, ok)
		}

		text, usedModel, err := r.Transcribe(ctx, "/tmp/some.wav", "en")
		if err != nil {
			t.Fatalf("transcribe failed: %v", err)
		}
		if text != "hello from base" {
			t.Errorf("text = %q", text)
		}
		if usedModel != "base" {
			t.Errorf("model = %q", usedModel)
		}
	})

	t.Run("loading an already loaded model is a no-op", func(t *testing.T) {
		var calls atomic.Int64
		r := NewRegistry(instantFactory(&calls), nil)
		if err := <-r.Load(ctx, "base"); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if err := <-r.Load(ctx, "base"); err != nil {
			t.Fatalf("second load failed: %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("factory called %d times, expected 1", calls.Load())
		}
	})

	t.Run("load failure keeps previous model", func(t *testing.T) {
		fail := false
		factory := func(ctx context.Context, name string) (Engine, error) {
			if fail {
				return nil, fmt.Errorf("weights missing")
			}
			return &fakeEngine{name: name, text: "ok"}, nil
		}
		r := NewRegistry(factory, nil)
		if err := <-r.Load(ctx, "base"); err != nil {
			t.Fatalf("load failed: %v", err)
		}

		fail = true
		err := <-r.Load(ctx, "large-v3")
		var lerr *LoadError
		if !errors.As(err, &lerr) {
			t.Fatalf("error = %v, expected LoadError", err)
		}
		if lerr.Model != "large-v3" {
			t.Errorf("LoadError.Model = %q, expected large-v3", lerr.Model)
		}

		name, ok := r.ActiveModel()
		if !ok || name != "base" {
			t.Errorf("active model = %q/%v, expected base to stay loaded", name, ok)
		}
		if r.State() != Loaded {
			t.Errorf("state = %s, expected %s", r.State(), Loaded)
		}

		// Transcription still works against the surviving model.
		if _, _, err := r.Transcribe(ctx, "/tmp/some.wav", "en"); err != nil {
			t.Errorf("transcribe after failed switch: %v", err)
		}
	})

	t.Run("failed first load returns to unloaded", func(t *testing.T) {
		factory := func(ctx context.Context, name string) (Engine, error) {
			return nil, fmt.Errorf("no such model")
		}
		r := NewRegistry(factory, nil)
		if err := <-r.Load(ctx, "base"); err == nil {
			t.Fatal("expected load error")
		}
		if r.State() != Unloaded {
			t.Errorf("state = %s, expected %s", r.State(), Unloaded)
		}
	})
}

func TestRegistryLastRequestWins(t *testing.T) {
	ctx := context.Background()

	release := make(chan struct{})
	factory := func(ctx context.Context, name string) (Engine, error) {
		if name == "slow" {
			<-release
		}
		return &fakeEngine{name: name, text: name}, nil
	}
	r := NewRegistry(factory, nil)

	slowDone := r.Load(ctx, "slow")
	fastDone := r.Load(ctx, "fast")

	if err := <-fastDone; err != nil {
		t.Fatalf("newer load failed: %v", err)
	}
	close(release)

	if err := <-slowDone; !errors.Is(err, ErrSuperseded) {
		t.Errorf("overtaken load = %v, expected ErrSuperseded", err)
	}

	name, ok := r.ActiveModel()
	if !ok || name != "fast" {
		t.Errorf("active model = %q/%v, expected fast", name, ok)
	}
}

func TestRegistryInFlightTranscriptionSurvivesSwitch(t *testing.T) {
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	first := &blockingEngine{started: started, release: release, text: "from first"}

	engines := []Engine{first, &fakeEngine{text: "from second"}}
	i := 0
	factory := func(ctx context.Context, name string) (Engine, error) {
		e := engines[i]
		i++
		return e, nil
	}
	r := NewRegistry(factory, nil)
	if err := <-r.Load(ctx, "first"); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	type result struct {
		text  string
		model string
	}
	results := make(chan result, 1)
	go func() {
		text, usedModel, _ := r.Transcribe(ctx, "/tmp/some.wav", "en")
		results <- result{text: text, model: usedModel}
	}()

	<-started
	if err := <-r.Load(ctx, "second"); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	close(release)

	select {
	case res := <-results:
		if res.text != "from first" {
			t.Errorf("in-flight transcription returned %q, expected the engine it started with", res.text)
		}
		if res.model != "first" {
			t.Errorf("reported model = %q, expected the engine it started with", res.model)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transcription did not finish")
	}
}

type blockingEngine struct {
	started chan struct{}
	release chan struct{}
	text    string
}

func (b *blockingEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	close(b.started)
	<-b.release
	return b.text, nil
}

func TestRegistryInferenceError(t *testing.T) {
	ctx := context.Background()
	factory := func(ctx context.Context, name string) (Engine, error) {
		return &fakeEngine{err: fmt.Errorf("decode failed")}, nil
	}
	r := NewRegistry(factory, nil)
	if err := <-r.Load(ctx, "base"); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	_, _, err := r.Transcribe(ctx, "/tmp/some.wav", "en")
	if !IsInferenceError(err) {
		t.Fatalf("error = %v, expected InferenceError", err)
	}
	var ierr *InferenceError
	if errors.As(err, &ierr) && ierr.Model != "base" {
		t.Errorf("InferenceError.Model = %q, expected base", ierr.Model)
	}

	// An inference failure never unloads the model.
	if _, ok := r.ActiveModel(); !ok {
		t.Error("model should stay loaded after an inference failure")
	}
}
