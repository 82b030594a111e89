package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ext is the canonical audio file extension.
const Ext = ".wav"

// ConversionError marks input audio that could not be decoded.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string {
	if e == nil || e.Err == nil {
		return "conversion error"
	}
	return "conversion error: " + e.Err.Error()
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConversionError reports whether err wraps a ConversionError.
func IsConversionError(err error) bool {
	var convErr *ConversionError
	return errors.As(err, &convErr)
}

// Converter normalizes input audio into the canonical format inside a
// storage directory.
type Converter struct {
	dir string
}

// NewConverter creates a Converter writing canonical files into dir.
// The directory is created if absent.
func NewConverter(dir string) (*Converter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings directory: %w", err)
	}
	return &Converter{dir: dir}, nil
}

// Dir returns the storage directory.
func (c *Converter) Dir() string { return c.dir }

// NewRecordingID generates a timestamp-derived identifier with a random
// suffix. Identifiers sort lexicographically in chronological order;
// the suffix avoids collisions between recordings started within the
// same second.
func NewRecordingID() string {
	return time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8] + Ext
}

// Path returns the canonical file path for a recording identifier.
func (c *Converter) Path(id string) string {
	return filepath.Join(c.dir, filepath.Base(id))
}

// SavePCM writes raw canonical-format PCM samples as a new recording.
// An empty buffer is valid and produces a silent zero-length recording.
func (c *Converter) SavePCM(pcm []byte) (id string, duration float64, err error) {
	wav, err := EncodeWAV(pcm)
	if err != nil {
		return "", 0, &ConversionError{Err: err}
	}

	id = NewRecordingID()
	if err := os.WriteFile(c.Path(id), wav, 0o644); err != nil {
		return "", 0, fmt.Errorf("write recording: %w", err)
	}

	duration = float64(len(pcm)/2) / float64(SampleRate)
	return id, duration, nil
}

// Normalize decodes an uploaded audio payload of arbitrary container or
// codec, downmixes to mono, resamples to 16 kHz and writes the result
// as a new canonical recording. The intermediate upload file is removed
// on both success and failure. Fails with ConversionError when the
// payload cannot be decoded.
func (c *Converter) Normalize(ctx context.Context, raw []byte) (id string, duration float64, err error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", 0, fmt.Errorf("ffmpeg not found: %w", err)
	}

	id = NewRecordingID()
	outPath := c.Path(id)

	tmp, err := os.CreateTemp("", "voiced-upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}

	// ffmpeg -y -i upload -ac 1 -ar 16000 -f wav out
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", tmpPath,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outPath) // never leave a partial recording behind
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		detail := lastLine(stderr.String())
		return "", 0, &ConversionError{Err: fmt.Errorf("ffmpeg: %w: %s", err, detail)}
	}

	return id, c.Duration(id), nil
}

// Duration returns the length in seconds of a recording. Decoding
// failures yield 0.0 rather than an error, since duration is advisory
// and must never block a history listing.
func (c *Converter) Duration(id string) float64 {
	data, err := os.ReadFile(c.Path(id))
	if err != nil {
		return 0.0
	}
	seconds, err := WAVDuration(data)
	if err != nil {
		return 0.0
	}
	return seconds
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
