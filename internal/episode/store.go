package episode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists episode records in SQLite. Writes are atomic upserts keyed
// by (slug, episode_id), so concurrent workers never observe partial records.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the episode database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "episodes.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

const recordColumns = `slug, episode_id, title, original_url, status, started_at, updated_at,
	processed_at, original_duration, new_duration, ads_removed, failed_at, error_message, ad_markers_json`

// Save upserts a record after validating its status/payload shape.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("save episode: nil record")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	var (
		processedAt      any
		originalDuration any
		newDuration      any
		adsRemoved       any
		failedAt         any
		errorMessage     any
	)
	if rec.Processed != nil {
		processedAt = rec.Processed.ProcessedAt.UTC().Format(time.RFC3339Nano)
		originalDuration = rec.Processed.OriginalDuration
		newDuration = rec.Processed.NewDuration
		adsRemoved = rec.Processed.AdsRemoved
	}
	if rec.Failed != nil {
		failedAt = rec.Failed.FailedAt.UTC().Format(time.RFC3339Nano)
		errorMessage = rec.Failed.Message
	}

	err := s.execWithRetry(ctx,
		`INSERT INTO episodes (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (slug, episode_id) DO UPDATE SET
		   title = excluded.title,
		   original_url = excluded.original_url,
		   status = excluded.status,
		   updated_at = excluded.updated_at,
		   processed_at = excluded.processed_at,
		   original_duration = excluded.original_duration,
		   new_duration = excluded.new_duration,
		   ads_removed = excluded.ads_removed,
		   failed_at = excluded.failed_at,
		   error_message = excluded.error_message,
		   ad_markers_json = excluded.ad_markers_json`,
		rec.Slug,
		rec.EpisodeID,
		rec.Title,
		rec.OriginalURL,
		string(rec.Status),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		processedAt,
		originalDuration,
		newDuration,
		adsRemoved,
		failedAt,
		errorMessage,
		rec.AdMarkersJSON,
	)
	if err != nil {
		return fmt.Errorf("save episode %s:%s: %w", rec.Slug, rec.EpisodeID, err)
	}
	return nil
}

// Get fetches one record, or nil when the episode has never been seen.
func (s *Store) Get(ctx context.Context, slug, episodeID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM episodes WHERE slug = ? AND episode_id = ?`,
		slug, episodeID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return rec, nil
}

// Delete removes a record. Used by the explicit reprocess trigger to reset a
// failed or stale episode back to the never-seen state.
func (s *Store) Delete(ctx context.Context, slug, episodeID string) error {
	if err := s.execWithRetry(ctx,
		`DELETE FROM episodes WHERE slug = ? AND episode_id = ?`, slug, episodeID); err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	return nil
}

// ListBySlug returns all records for one podcast, newest update first.
func (s *Store) ListBySlug(ctx context.Context, slug string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM episodes WHERE slug = ? ORDER BY updated_at DESC`,
		slug)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountsByStatus returns how many records exist per status across all feeds.
func (s *Store) CountsByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count episodes: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		if parsed, ok := ParseStatus(status); ok {
			counts[parsed] = count
		}
	}
	return counts, rows.Err()
}

// ProcessedBefore returns processed records older than cutoff, for retention
// cleanup.
func (s *Store) ProcessedBefore(ctx context.Context, cutoff time.Time) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM episodes
		 WHERE status = ? AND processed_at IS NOT NULL AND processed_at < ?`,
		string(StatusProcessed), cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("list expired episodes: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired episode: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec              Record
		status           string
		startedAt        string
		updatedAt        string
		processedAt      sql.NullString
		originalDuration sql.NullFloat64
		newDuration      sql.NullFloat64
		adsRemoved       sql.NullInt64
		failedAt         sql.NullString
		errorMessage     sql.NullString
	)
	err := row.Scan(
		&rec.Slug,
		&rec.EpisodeID,
		&rec.Title,
		&rec.OriginalURL,
		&status,
		&startedAt,
		&updatedAt,
		&processedAt,
		&originalDuration,
		&newDuration,
		&adsRemoved,
		&failedAt,
		&errorMessage,
		&rec.AdMarkersJSON,
	)
	if err != nil {
		return nil, err
	}

	parsed, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	rec.Status = parsed
	rec.StartedAt = parseTime(startedAt)
	rec.UpdatedAt = parseTime(updatedAt)

	switch parsed {
	case StatusProcessed:
		rec.Processed = &ProcessedInfo{
			ProcessedAt:      parseTime(processedAt.String),
			OriginalDuration: originalDuration.Float64,
			NewDuration:      newDuration.Float64,
			AdsRemoved:       int(adsRemoved.Int64),
		}
	case StatusFailed:
		rec.Failed = &FailureInfo{
			FailedAt: parseTime(failedAt.String),
			Message:  errorMessage.String,
		}
	}
	return &rec, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
