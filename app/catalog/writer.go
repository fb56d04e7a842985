package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"bookscout/app/fileutil"
)

// Load reads the persisted catalog. A missing file is a first run, not
// an error; an unreadable or corrupt file is fatal so the pipeline
// never commits a partial catalog on top of damaged data.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("catalog file %s is corrupt: %w", path, err)
	}

	return entries, nil
}

// Merge appends incoming entries to the existing catalog, dropping any
// whose id is already present. The catalog is append-and-merge only:
// on conflict the existing entry wins, never a silent overwrite.
func Merge(existing, incoming []Entry) (merged []Entry, added []Entry, dropped []Entry) {
	seen := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		seen[entry.ID] = struct{}{}
	}

	merged = append(merged, existing...)
	for _, entry := range incoming {
		if _, ok := seen[entry.ID]; ok {
			slog.Debug("Duplicate catalog id dropped", "id", entry.ID, "title", entry.Title)
			dropped = append(dropped, entry)
			continue
		}
		seen[entry.ID] = struct{}{}
		merged = append(merged, entry)
		added = append(added, entry)
	}

	SortEntries(merged)
	return merged, added, dropped
}

// SortEntries orders the catalog by season descending, then episode
// descending, then addedAt descending. This is the defined output
// order the presentation layer relies on.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Episode.SeasonNumber != b.Episode.SeasonNumber {
			return a.Episode.SeasonNumber > b.Episode.SeasonNumber
		}
		if a.Episode.EpisodeNumber != b.Episode.EpisodeNumber {
			return a.Episode.EpisodeNumber > b.Episode.EpisodeNumber
		}
		return a.AddedAt.After(b.AddedAt)
	})
}

// Save writes the catalog atomically.
func Save(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	return fileutil.WriteAtomic(path, data, 0o644)
}
