package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.json")

	s := Open(path, nil)
	rec := Record{Text: "hello world", Language: "en", Model: "base"}
	if err := s.Put("20250101_120000_abcd1234.wav", rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A fresh Open from the same file sees the record.
	s2 := Open(path, nil)
	got, ok := s2.Get("20250101_120000_abcd1234.wav")
	if !ok {
		t.Fatal("record missing after reopen")
	}
	if got != rec {
		t.Errorf("got %+v, expected %+v", got, rec)
	}
}

func TestStoreOpenTolerant(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s := Open(filepath.Join(t.TempDir(), "nope.json"), nil)
		if s.Len() != 0 {
			t.Errorf("Len = %d, expected 0", s.Len())
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "transcripts.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		s := Open(path, nil)
		if s.Len() != 0 {
			t.Errorf("Len = %d, expected 0", s.Len())
		}

		// The store remains writable after a corrupt load.
		if err := s.Put("a.wav", Record{Text: "x"}); err != nil {
			t.Errorf("Put after corrupt load: %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "transcripts.json")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		s := Open(path, nil)
		if s.Len() != 0 {
			t.Errorf("Len = %d, expected 0", s.Len())
		}
	})
}

func TestStorePutOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.json")
	s := Open(path, nil)

	if err := s.Put("a.wav", Record{Text: "first", Language: "en"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put("a.wav", Record{Text: "second", Language: "it"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := s.Get("a.wav")
	if got.Text != "second" || got.Language != "it" {
		t.Errorf("got %+v, expected the re-transcription to win", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, expected 1", s.Len())
	}
}

func TestStoreRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.json")
	s := Open(path, nil)

	if err := s.Put("a.wav", Record{Text: "x"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	t.Run("present record removed and persisted", func(t *testing.T) {
		if err := s.Remove("a.wav"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, ok := s.Get("a.wav"); ok {
			t.Error("record should be gone")
		}
		if _, ok := Open(path, nil).Get("a.wav"); ok {
			t.Error("removal should survive a reopen")
		}
	})

	t.Run("absent record is a no-op", func(t *testing.T) {
		if err := s.Remove("a.wav"); err != nil {
			t.Errorf("Remove of absent id = %v, expected nil", err)
		}
		if err := s.Remove("never-existed.wav"); err != nil {
			t.Errorf("Remove of unknown id = %v, expected nil", err)
		}
	})
}

func TestStorePersistenceFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()

	// The store path's parent is a regular file, so creating it fails.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	s := Open(filepath.Join(blocker, "transcripts.json"), nil)

	err := s.Put("a.wav", Record{Text: "kept in memory"})
	if !IsPersistenceError(err) {
		t.Fatalf("error = %v, expected PersistenceError", err)
	}

	got, ok := s.Get("a.wav")
	if !ok || got.Text != "kept in memory" {
		t.Error("in-memory mapping should keep the update on a failed persist")
	}
}

func TestStoreFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.json")
	s := Open(path, nil)
	if err := s.Put("a.wav", Record{Text: "hi", Language: "en", Model: "base"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}

	var onDisk map[string]map[string]string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("store file is not a JSON object of records: %v", err)
	}
	rec := onDisk["a.wav"]
	if rec["text"] != "hi" || rec["language"] != "en" || rec["model"] != "base" {
		t.Errorf("on-disk record = %v", rec)
	}
}

func TestListWithFilesystem(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(t.TempDir(), "transcripts.json")
	s := Open(storePath, nil)

	write := func(name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write("20250101_100000_aaaaaaaa.wav")
	write("20250102_100000_bbbbbbbb.wav")
	write("notes.txt") // ignored
	if err := os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := s.Put("20250101_100000_aaaaaaaa.wav", Record{Text: "older", Language: "en", Model: "base"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// A record whose file is gone must not appear.
	if err := s.Put("20240101_100000_gone0000.wav", Record{Text: "orphan"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := s.ListWithFilesystem(dir, func(id string) float64 { return 2.5 })
	if err != nil {
		t.Fatalf("ListWithFilesystem failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, expected 2: %+v", len(entries), entries)
	}

	// Most recent first.
	if entries[0].ID != "20250102_100000_bbbbbbbb.wav" {
		t.Errorf("entries[0].ID = %s", entries[0].ID)
	}
	if entries[0].Text != "" {
		t.Errorf("file without a record should have empty text, got %q", entries[0].Text)
	}
	if entries[0].Duration != 2.5 {
		t.Errorf("Duration = %v", entries[0].Duration)
	}
	if entries[0].ModTime.IsZero() {
		t.Error("ModTime should be set")
	}

	if entries[1].ID != "20250101_100000_aaaaaaaa.wav" {
		t.Errorf("entries[1].ID = %s", entries[1].ID)
	}
	if entries[1].Text != "older" || entries[1].Model != "base" {
		t.Errorf("entries[1] record = %+v", entries[1].Record)
	}
}

func TestListWithFilesystemMissingDir(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "transcripts.json"), nil)
	entries, err := s.ListWithFilesystem(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil {
		t.Fatalf("missing dir should not error, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, expected 0", len(entries))
	}
}
