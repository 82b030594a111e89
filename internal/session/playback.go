package session

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
)

// PlaybackStatus reports progress of the active playback session.
type PlaybackStatus struct {
	ID      string  `json:"filename"`
	Elapsed float64 `json:"elapsed"`
	Total   float64 `json:"total"`
}

type playbackSession struct {
	id        string
	startedAt time.Time
	total     float64
	cancel    context.CancelFunc
	done      chan struct{}
}

// Play starts playing back a recording through pw-play. At most one
// playback session is active; starting a new one stops any prior one.
func (m *Manager) Play(id string) error {
	path := m.converter.Path(id)
	if _, err := os.Stat(path); err != nil {
		return ErrNotFound
	}

	m.StopPlayback()

	playCtx, cancel := context.WithCancel(m.ctx)
	ps := &playbackSession{
		id:        id,
		startedAt: time.Now(),
		total:     m.converter.Duration(id),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.playMu.Lock()
	m.playback = ps
	m.playMu.Unlock()

	go func() {
		defer close(ps.done)
		defer cancel()

		cmd := exec.CommandContext(playCtx, "pw-play", path)
		if err := cmd.Run(); err != nil && playCtx.Err() == nil {
			logging.WithRecording("playback", id).Warn().Err(err).Msg("pw-play failed")
		}

		m.playMu.Lock()
		if m.playback == ps {
			m.playback = nil
		}
		m.playMu.Unlock()
	}()

	return nil
}

// StopPlayback halts the active playback session, if any.
func (m *Manager) StopPlayback() {
	m.playMu.Lock()
	ps := m.playback
	m.playback = nil
	m.playMu.Unlock()

	if ps == nil {
		return
	}
	ps.cancel()
	<-ps.done
}

// PlaybackStatus returns the active playback session's progress.
func (m *Manager) PlaybackStatus() (PlaybackStatus, bool) {
	m.playMu.Lock()
	ps := m.playback
	m.playMu.Unlock()

	if ps == nil {
		return PlaybackStatus{}, false
	}

	elapsed := time.Since(ps.startedAt).Seconds()
	if ps.total > 0 && elapsed > ps.total {
		elapsed = ps.total
	}
	return PlaybackStatus{ID: ps.id, Elapsed: elapsed, Total: ps.total}, true
}
