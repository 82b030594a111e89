package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestNewRecordingID(t *testing.T) {
	idPattern := regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-f]{8}\.wav$`)

	t.Run("format", func(t *testing.T) {
		id := NewRecordingID()
		if !idPattern.MatchString(id) {
			t.Errorf("recording ID %q does not match expected format", id)
		}
	})

	t.Run("unique within the same second", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := NewRecordingID()
			if seen[id] {
				t.Fatalf("duplicate recording ID: %s", id)
			}
			seen[id] = true
		}
	})
}

func TestConverterPath(t *testing.T) {
	dir := t.TempDir()
	c, err := NewConverter(dir)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"plain id", "20250101_120000_abcd1234.wav", filepath.Join(dir, "20250101_120000_abcd1234.wav")},
		{"path traversal stripped", "../../etc/passwd", filepath.Join(dir, "passwd")},
		{"absolute path stripped", "/etc/shadow", filepath.Join(dir, "shadow")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Path(tt.id); got != tt.want {
				t.Errorf("Path(%q) = %q, expected %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestConverterSavePCM(t *testing.T) {
	c, err := NewConverter(t.TempDir())
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}

	t.Run("writes a playable recording", func(t *testing.T) {
		pcm := make([]byte, SampleRate) // half a second

		id, duration, err := c.SavePCM(pcm)
		if err != nil {
			t.Fatalf("SavePCM failed: %v", err)
		}
		if duration != 0.5 {
			t.Errorf("duration = %v, expected 0.5", duration)
		}

		data, err := os.ReadFile(c.Path(id))
		if err != nil {
			t.Fatalf("failed to read recording: %v", err)
		}
		decoded, _, err := DecodeWAV(data)
		if err != nil {
			t.Fatalf("recording is not a valid WAV file: %v", err)
		}
		if len(decoded) != len(pcm) {
			t.Errorf("payload = %d bytes, expected %d", len(decoded), len(pcm))
		}
	})

	t.Run("zero frames still produces a recording", func(t *testing.T) {
		id, duration, err := c.SavePCM(nil)
		if err != nil {
			t.Fatalf("SavePCM failed: %v", err)
		}
		if duration != 0.0 {
			t.Errorf("duration = %v, expected 0.0", duration)
		}
		if _, err := os.Stat(c.Path(id)); err != nil {
			t.Errorf("recording file missing: %v", err)
		}
	})

	t.Run("odd PCM length is a conversion error", func(t *testing.T) {
		_, _, err := c.SavePCM([]byte{0x01})
		if !IsConversionError(err) {
			t.Errorf("expected ConversionError, got %v", err)
		}
	})
}

func TestConverterDuration(t *testing.T) {
	c, err := NewConverter(t.TempDir())
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}

	t.Run("valid recording", func(t *testing.T) {
		id, _, err := c.SavePCM(make([]byte, SampleRate*2))
		if err != nil {
			t.Fatalf("SavePCM failed: %v", err)
		}
		if d := c.Duration(id); d != 1.0 {
			t.Errorf("Duration = %v, expected 1.0", d)
		}
	})

	t.Run("missing file yields zero", func(t *testing.T) {
		if d := c.Duration("20250101_120000_deadbeef.wav"); d != 0.0 {
			t.Errorf("Duration = %v, expected 0.0", d)
		}
	})

	t.Run("corrupt file yields zero", func(t *testing.T) {
		id := NewRecordingID()
		if err := os.WriteFile(c.Path(id), []byte("not a wav"), 0o644); err != nil {
			t.Fatalf("failed to write corrupt file: %v", err)
		}
		if d := c.Duration(id); d != 0.0 {
			t.Errorf("Duration = %v, expected 0.0", d)
		}
	})
}

func TestConverterNormalize(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewConverter(dir)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}

	t.Run("valid wav payload", func(t *testing.T) {
		wav, err := EncodeWAV(make([]byte, SampleRate*2))
		if err != nil {
			t.Fatalf("EncodeWAV failed: %v", err)
		}

		id, duration, err := c.Normalize(ctx, wav)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if duration < 0.9 || duration > 1.1 {
			t.Errorf("duration = %v, expected about 1.0", duration)
		}
		if _, err := os.Stat(c.Path(id)); err != nil {
			t.Errorf("normalized recording missing: %v", err)
		}
	})

	t.Run("corrupt payload creates nothing", func(t *testing.T) {
		before := countFiles(t, dir)

		_, _, err := c.Normalize(ctx, []byte("definitely not audio"))
		if !IsConversionError(err) {
			t.Fatalf("error = %v, expected ConversionError", err)
		}
		if after := countFiles(t, dir); after != before {
			t.Errorf("recordings dir changed from %d to %d files", before, after)
		}
	})
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestConversionError(t *testing.T) {
	inner := fmt.Errorf("undecodable input")
	err := &ConversionError{Err: inner}

	if !strings.Contains(err.Error(), "undecodable input") {
		t.Errorf("error message should contain cause, got %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("ConversionError should unwrap to its cause")
	}
	if !IsConversionError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsConversionError should see through wrapping")
	}
	if IsConversionError(errors.New("other")) {
		t.Error("IsConversionError should reject unrelated errors")
	}
}
