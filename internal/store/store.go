// Package store persists the mapping from recording identifiers to
// transcript records.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bkomar/voice-to-text-transcriber/internal/logging"
	"github.com/bkomar/voice-to-text-transcriber/internal/metrics"
)

// Record is the transcript metadata for one recording.
type Record struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

// Entry is one row of the history view: filesystem metadata joined with
// the transcript record, if any.
type Entry struct {
	ID       string
	Duration float64
	ModTime  time.Time
	Record
}

// PersistenceError marks a failed write of the store file. The
// in-memory mapping still reflects the mutation.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil || e.Err == nil {
		return "persistence error"
	}
	return "persist transcripts: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsPersistenceError reports whether err wraps a PersistenceError.
func IsPersistenceError(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}

// Store is a persisted transcript mapping. Every mutation is flushed to
// disk immediately with a write-temp-then-rename discipline, so the
// file never holds a half-written state.
type Store struct {
	path    string
	metrics *metrics.Metrics

	mu      sync.Mutex
	records map[string]Record
}

// Open loads the store from path. A missing, empty or unparsable file
// yields an empty mapping rather than an error, so corrupted persisted
// state never prevents startup.
func Open(path string, m *metrics.Metrics) *Store {
	if m == nil {
		m = metrics.Nop()
	}
	s := &Store{
		path:    path,
		metrics: m,
		records: make(map[string]Record),
	}
	s.load()
	return s
}

func (s *Store) load() {
	logger := logging.WithComponent("store")

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", s.path).Msg("read transcript store, starting empty")
		}
		return
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn().Err(err).Str("path", s.path).Msg("parse transcript store, starting empty")
		return
	}
	if records != nil {
		s.records = records
	}
}

// Get returns the record for id, if present.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Put upserts a record and persists the mapping. On a failed write the
// in-memory mapping keeps the update and a PersistenceError is returned.
func (s *Store) Put(id string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
	return s.persistLocked()
}

// Remove deletes the record for id, if present, and persists. It is a
// no-op returning success when the id is absent.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return nil
	}
	delete(s.records, id)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return &PersistenceError{Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.metrics.StorePersistErrors.Inc()
		return &PersistenceError{Err: err}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.metrics.StorePersistErrors.Inc()
		return &PersistenceError{Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		s.metrics.StorePersistErrors.Inc()
		return &PersistenceError{Err: err}
	}
	return nil
}

// ListWithFilesystem enumerates canonical audio files in dir, most
// recent first, and joins each with its transcript record. Files
// without a record yield entries with empty text/language/model. The
// filesystem is authoritative: stored records whose audio file is gone
// do not appear.
func (s *Store) ListWithFilesystem(dir string, durationOf func(id string) float64) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recordings directory: %w", err)
	}

	var ids []string
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".wav") {
			continue
		}
		ids = append(ids, d.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		info, err := os.Stat(filepath.Join(dir, id))
		if err != nil {
			continue // deleted between ReadDir and Stat
		}

		entry := Entry{
			ID:      id,
			ModTime: info.ModTime(),
		}
		if durationOf != nil {
			entry.Duration = durationOf(id)
		}
		if rec, ok := s.Get(id); ok {
			entry.Record = rec
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
