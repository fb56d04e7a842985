package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists per-domain fetch outcomes across runs so repeated
// transient failures against the same upstream surface in the run
// summary instead of looking like genuinely absent documents.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DomainHealth summarizes recent failures for one domain.
type DomainHealth struct {
	Domain   string
	Failures int
	LastKind string
}

func Open(dataDir string) (*Store, error) {
	return OpenWithClock(dataDir, time.Now)
}

// OpenWithClock takes an injectable clock so tests can control the
// window and retention math deterministically.
func OpenWithClock(dataDir string, clock func() time.Time) (*Store, error) {
	dbPath := filepath.Join(dataDir, "fetch_history.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: clock}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordOutcome stores the result of one outbound fetch against a
// domain. kind carries the failure taxonomy label for failures and is
// empty for successes.
func (s *Store) RecordOutcome(ctx context.Context, domain string, ok bool, kind string) error {
	okValue := 0
	if ok {
		okValue = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_outcomes (domain, ok, kind, recorded_at) VALUES (?, ?, ?, ?)`,
		domain, okValue, kind, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record fetch outcome: %w", err)
	}

	return nil
}

// FlakyDomains returns domains with at least minFailures failed
// fetches inside the window, most failures first.
func (s *Store) FlakyDomains(ctx context.Context, window time.Duration, minFailures int) ([]DomainHealth, error) {
	cutoff := s.now().UTC().Add(-window).Format(time.RFC3339Nano)

	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, COUNT(*) AS failures, MAX(kind) AS last_kind
		 FROM fetch_outcomes
		 WHERE ok = 0 AND recorded_at > ?
		 GROUP BY domain
		 HAVING COUNT(*) >= ?
		 ORDER BY failures DESC`,
		cutoff, minFailures)
	if err != nil {
		return nil, fmt.Errorf("failed to query flaky domains: %w", err)
	}
	defer rows.Close()

	var result []DomainHealth
	for rows.Next() {
		var dh DomainHealth
		if err := rows.Scan(&dh.Domain, &dh.Failures, &dh.LastKind); err != nil {
			return nil, fmt.Errorf("failed to scan flaky domain row: %w", err)
		}
		result = append(result, dh)
	}

	return result, rows.Err()
}

// Prune drops outcome rows older than the retention window.
func (s *Store) Prune(ctx context.Context, retention time.Duration) error {
	cutoff := s.now().UTC().Add(-retention).Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `DELETE FROM fetch_outcomes WHERE recorded_at <= ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune fetch history: %w", err)
	}

	return nil
}
