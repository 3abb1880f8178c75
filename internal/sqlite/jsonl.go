package sqlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File names inside DataDir.
const (
	historyJSONL = "history.jsonl"
	cursorJSON   = "cursor.json"
	databaseFile = "history.db"
)

// cursorFile is the on-disk form of the history cursor.
type cursorFile struct {
	CurrentIndex int `json:"currentIndex"`
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	// Snapshots of large compositions exceed the default 64 KiB line limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file, one per line.
func writeJSONL(path string, records []json.RawMessage) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		for _, rec := range records {
			if _, err := w.Write(rec); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("writing newline: %w", err)
			}
		}
		return nil
	})
}

// writeAtomic writes a file using the temp-file, fsync, rename pattern so
// readers never observe a partial file.
func writeAtomic(path string, fill func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".charmsmith-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// initJSONLFile creates an empty history.jsonl if none exists.
func initJSONLFile(dataDir string) error {
	path := filepath.Join(dataDir, historyJSONL)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", historyJSONL, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", historyJSONL, err)
	}
	return f.Close()
}

// readCursor returns the persisted cursor. ok is false when no cursor file
// exists or it cannot be parsed.
func readCursor(dataDir string) (index int, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dataDir, cursorJSON))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading %s: %w", cursorJSON, err)
	}
	var c cursorFile
	if err := json.Unmarshal(data, &c); err != nil {
		return 0, false, nil
	}
	return c.CurrentIndex, true, nil
}

// writeCursor atomically persists the cursor.
func writeCursor(dataDir string, index int) error {
	data, err := json.Marshal(cursorFile{CurrentIndex: index})
	if err != nil {
		return fmt.Errorf("encoding cursor: %w", err)
	}
	return writeAtomic(filepath.Join(dataDir, cursorJSON), func(w *bufio.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
