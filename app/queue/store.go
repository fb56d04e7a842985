package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bookscout/app/fileutil"
)

// Store persists the retry queue and the last-check timestamp as files
// in the state directory. Both are private state: a missing file means
// first run, a corrupt queue file is fatal so a partial state never
// silently resets the schedule.
type Store struct {
	queuePath     string
	lastCheckPath string
}

func NewStore(dataDir string) *Store {
	return &Store{
		queuePath:     filepath.Join(dataDir, "retry_queue.json"),
		lastCheckPath: filepath.Join(dataDir, "last_check.txt"),
	}
}

func (s *Store) Load() ([]Record, error) {
	data, err := os.ReadFile(s.queuePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("queue file %s is corrupt: %w", s.queuePath, err)
	}

	return records, nil
}

func (s *Store) Save(records []Record) error {
	if records == nil {
		records = []Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	return fileutil.WriteAtomic(s.queuePath, data, 0o644)
}

// LoadLastCheck returns the zero time when no last-check file exists,
// which callers treat as "first run within a lookback window".
func (s *Store) LoadLastCheck() (time.Time, error) {
	data, err := os.ReadFile(s.lastCheckPath)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last-check file: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339, string(data))
	if err != nil {
		// A garbled timestamp degrades to first-run behavior.
		return time.Time{}, nil
	}

	return parsed, nil
}

func (s *Store) SaveLastCheck(t time.Time) error {
	return fileutil.WriteAtomic(s.lastCheckPath, []byte(t.UTC().Format(time.RFC3339)), 0o644)
}
