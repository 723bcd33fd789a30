package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"timetable-api/models"
)

// SQLiteStore keeps the current snapshot in a single-row table. The
// captured_at column is read on its own for the rate-limit check.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS timetable_cache (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			captured_at INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			session_token TEXT NOT NULL DEFAULT '',
			class_count INTEGER NOT NULL,
			payload BLOB NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.CacheRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT captured_at, saved_at, session_token, payload
		FROM timetable_cache
		WHERE id = 1
	`)

	var capturedAt, savedAt int64
	var token string
	var payload []byte
	err := row.Scan(&capturedAt, &savedAt, &token, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var entries []models.ClassEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &models.CacheRecord{
		Snapshot: models.TimetableSnapshot{
			Entries:            entries,
			CapturedAt:         time.UnixMilli(capturedAt).UTC(),
			SourceSessionToken: token,
		},
		SavedAt: time.UnixMilli(savedAt).UTC(),
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snapshot models.TimetableSnapshot) error {
	payload, err := json.Marshal(snapshot.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO timetable_cache (id, captured_at, saved_at, session_token, class_count, payload)
		VALUES (1, ?, ?, ?, ?, ?)
	`, snapshot.CapturedAt.UnixMilli(), s.now().UnixMilli(), snapshot.SourceSessionToken, len(snapshot.Entries), payload)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LastUpdatedAt(ctx context.Context) (time.Time, bool, error) {
	var capturedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT captured_at FROM timetable_cache WHERE id = 1`).Scan(&capturedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query captured_at: %w", err)
	}
	return time.UnixMilli(capturedAt).UTC(), true, nil
}
