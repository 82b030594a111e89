package model

import "errors"

// ErrNotLoaded is returned by Transcribe before any model has
// successfully loaded.
var ErrNotLoaded = errors.New("no model loaded")

// ErrSuperseded is reported to a load request that was overtaken by a
// later one before completing.
var ErrSuperseded = errors.New("model load superseded by a newer request")

// LoadError marks a model that failed to load. The previously active
// model, if any, remains usable.
type LoadError struct {
	Model string
	Err   error
}

func (e *LoadError) Error() string {
	if e == nil || e.Err == nil {
		return "model load error"
	}
	return "load model " + e.Model + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InferenceError marks a model failure on otherwise-valid input audio.
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	if e == nil || e.Err == nil {
		return "inference error"
	}
	return "inference with " + e.Model + ": " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsInferenceError reports whether err wraps an InferenceError.
func IsInferenceError(err error) bool {
	var inferErr *InferenceError
	return errors.As(err, &inferErr)
}
