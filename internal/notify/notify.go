// Package notify delivers user-facing desktop notifications.
package notify

import (
	"fmt"
	"os/exec"

	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
)

// Notifier reports session events to the user.
type Notifier interface {
	RecordingChanged(on bool)
	TranscriptionDone(summary string)
	Error(msg string)
}

// Desktop sends notifications via notify-send.
type Desktop struct{}

func (Desktop) RecordingChanged(on bool) {
	state := "Stopped"
	if on {
		state = "Started"
	}
	send(fmt.Sprintf("Voiced: %s Recording", state), false)
}

func (Desktop) TranscriptionDone(summary string) {
	if summary == "" {
		summary = "(no speech detected)"
	}
	send("Voiced: "+summary, false)
}

func (Desktop) Error(msg string) {
	send(msg, true)
}

func send(msg string, critical bool) {
	args := []string{"-a", "Voiced"}
	if critical {
		args = append(args, "-u", "critical")
	}
	args = append(args, msg)
	if err := exec.Command("notify-send", args...).Run(); err != nil {
		logging.WithComponent("notify").Warn().Err(err).Msg("send notification")
	}
}

// Log writes events to the logger instead of the desktop.
type Log struct{}

func (Log) RecordingChanged(on bool) {
	logging.WithComponent("notify").Info().Bool("recording", on).Msg("recording state changed")
}

func (Log) TranscriptionDone(summary string) {
	logging.WithComponent("notify").Info().Str("summary", summary).Msg("transcription done")
}

func (Log) Error(msg string) {
	logging.WithComponent("notify").Error().Msg(msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) RecordingChanged(on bool)         {}
func (Nop) TranscriptionDone(summary string) {}
func (Nop) Error(msg string)                 {}

// ForType returns the notifier matching a config type string.
func ForType(kind string, enabled bool) Notifier {
	if !enabled {
		return Nop{}
	}
	switch kind {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}
