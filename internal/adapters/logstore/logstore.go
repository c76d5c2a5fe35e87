package logstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/renato0307/maestro/internal/domain"
	"github.com/renato0307/maestro/internal/logging"
	"github.com/renato0307/maestro/internal/ports"
)

// Store persists per-session durable logs as append-only JSONL files,
// one file per session under dir. Appends take an exclusive file lock;
// reads tolerate a file that is concurrently being appended to.
type Store struct {
	dir string
}

// Compile-time interface verification
var _ ports.SessionLog = (*Store)(nil)

// NewStore creates a log store rooted at dir
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the log file path for a session
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".jsonl")
}

// Append writes one entry to the session's log. Entries are written in
// call order; a failed append surfaces as a PersistenceError.
func (s *Store) Append(sessionID string, entry domain.LogEntry) error {
	path := s.Path(sessionID)

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return &domain.PersistenceError{Path: path, Err: fmt.Errorf("failed to encode log entry: %w", err)}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return &domain.PersistenceError{Path: path, Err: fmt.Errorf("failed to lock log file: %w", err)}
	}
	defer unlockFile(file)

	if _, err := file.Write(append(line, '\n')); err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	if err := file.Sync(); err != nil {
		return &domain.PersistenceError{Path: path, Err: err}
	}

	return nil
}

// Read returns the session's log in write order. A missing file reads as
// empty history. A trailing partial line (an append in progress) is
// ignored; a malformed line in the body quarantines the whole file and
// the session reads as empty history.
func (s *Store) Read(sessionID string) ([]domain.LogEntry, error) {
	path := s.Path(sessionID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.LogEntry{}, nil
		}
		return nil, &domain.PersistenceError{Path: path, Err: err}
	}

	// A file not ending in a newline has an append in progress; its last
	// line may be incomplete and is allowed to fail decoding
	completeTail := len(data) == 0 || data[len(data)-1] == '\n'

	lines := bytes.Split(data, []byte("\n"))
	var entries []domain.LogEntry
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var entry domain.LogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			if i == len(lines)-1 && !completeTail {
				logging.Logger.Debug("Ignoring partial trailing log line", "path", path, "line", i+1)
				break
			}
			s.quarantine(path, fmt.Errorf("line %d: %w", i+1, err))
			return []domain.LogEntry{}, nil
		}
		entries = append(entries, entry)
	}

	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return entries, nil
}

// Delete removes the session's log file
func (s *Store) Delete(sessionID string) error {
	path := s.Path(sessionID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &domain.PersistenceError{Path: path, Err: err}
	}
	return nil
}

// quarantine renames an unparseable log aside rather than discarding it
func (s *Store) quarantine(path string, cause error) {
	quarantined := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UTC().Unix())
	logging.Logger.Warn("Quarantining corrupt session log",
		"path", path,
		"quarantined_path", quarantined,
		"error", cause,
	)
	if err := os.Rename(path, quarantined); err != nil {
		logging.Logger.Error("Failed to quarantine session log", "path", path, "error", err)
	}
}
