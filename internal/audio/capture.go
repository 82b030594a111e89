package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
)

var (
	// ErrAlreadyRecording is returned by Start while a capture session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when no capture session is active.
	ErrNotRecording = errors.New("not recording")
)

// CaptureConfig holds microphone capture parameters.
type CaptureConfig struct {
	SampleRate int
	Channels   int
	Format     string
	BufferSize int
	Device     string
}

// DefaultCaptureConfig returns capture parameters matching the canonical
// audio format.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate: SampleRate,
		Channels:   Channels,
		Format:     "s16",
		BufferSize: 8192,
		Device:     "",
	}
}

// Recorder captures microphone input into an in-memory PCM buffer.
// At most one capture session may be active at a time.
type Recorder struct {
	config    CaptureConfig
	recording atomic.Bool

	mu     sync.Mutex // guards cmd, cancel and buffer
	cmd    *exec.Cmd
	cancel context.CancelFunc
	buffer []byte

	onBytes func(n int) // optional, reports raw bytes read

	wg sync.WaitGroup
}

// NewRecorder creates a Recorder with the given capture parameters.
func NewRecorder(config CaptureConfig) *Recorder {
	return &Recorder{config: config}
}

func NewDefaultRecorder() *Recorder { return NewRecorder(DefaultCaptureConfig()) }

// SetBytesCallback registers a callback invoked with the size of each
// chunk read from the input stream. Must be set before Start.
func (r *Recorder) SetBytesCallback(fn func(n int)) {
	r.onBytes = fn
}

func (r *Recorder) IsRecording() bool {
	return r.recording.Load()
}

// Start opens the input audio stream and begins appending captured
// frames to the in-memory buffer. Fails with ErrAlreadyRecording if a
// session is already active, and returns the spawn error if the
// capture process cannot be started.
func (r *Recorder) Start(ctx context.Context) error {
	if !r.recording.CompareAndSwap(false, true) {
		return ErrAlreadyRecording
	}

	if err := r.validateConfig(); err != nil {
		r.recording.Store(false)
		return err
	}

	if err := CheckPipeWireAvailable(ctx); err != nil {
		r.recording.Store(false)
		return fmt.Errorf("PipeWire not available: %w", err)
	}

	captureCtx, cancel := context.WithCancel(ctx)

	args := r.buildRecordArgs()
	cmd := exec.CommandContext(captureCtx, "pw-record", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		r.recording.Store(false)
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		r.recording.Store(false)
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		r.recording.Store(false)
		return fmt.Errorf("start pw-record: %w", err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.cancel = cancel
	r.buffer = r.buffer[:0]
	r.mu.Unlock()

	r.wg.Add(1)
	go r.captureLoop(captureCtx, stdout, stderr)

	return nil
}

// Stop halts capture and returns the buffered PCM samples. A session
// that captured zero frames returns an empty buffer, not an error.
// Fails with ErrNotRecording if no session is active.
func (r *Recorder) Stop() ([]byte, error) {
	if !r.recording.Load() {
		return nil, ErrNotRecording
	}

	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	r.mu.Lock()
	pcm := make([]byte, len(r.buffer))
	copy(pcm, r.buffer)
	r.buffer = r.buffer[:0]
	r.mu.Unlock()

	return pcm, nil
}

func (r *Recorder) captureLoop(ctx context.Context, stdout, stderr io.ReadCloser) {
	logger := logging.WithComponent("capture")

	defer func() {
		r.recording.Store(false)

		// Ensure the child process is reaped.
		r.mu.Lock()
		if r.cmd != nil {
			_ = r.cmd.Wait()
			r.cmd = nil
		}
		r.cancel = nil
		r.mu.Unlock()

		r.wg.Done()
	}()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug().Str("stderr", scanner.Text()).Msg("pw-record")
		}
	}()

	chunk := make([]byte, r.config.BufferSize)
	for {
		n, readErr := stdout.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			r.buffer = append(r.buffer, chunk[:n]...)
			r.mu.Unlock()
			if r.onBytes != nil {
				r.onBytes(n)
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && ctx.Err() == nil {
				logger.Error().Err(readErr).Msg("read audio")
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (r *Recorder) buildRecordArgs() []string {
	args := []string{
		"--format", r.config.Format,
		"--rate", strconv.Itoa(r.config.SampleRate),
		"--channels", strconv.Itoa(r.config.Channels),
		"-", // stdout
	}
	if r.config.Device != "" {
		args = append(args, "--target", r.config.Device)
	}
	return args
}

func (r *Recorder) validateConfig() error {
	if r.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", r.config.SampleRate)
	}
	if r.config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", r.config.Channels)
	}
	if r.config.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", r.config.BufferSize)
	}
	if r.config.Format == "" {
		return fmt.Errorf("invalid Format: empty")
	}
	return nil
}

// CheckPipeWireAvailable verifies the pw-record tooling is usable.
func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Short timeout to avoid hangs on misconfigured systems.
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "pw-cli", "info")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}
