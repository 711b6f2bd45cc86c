package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle backing the per-room history log. The log is
// append-only: entries are keyed by a lexicographically monotonic timestamp
// key and are never rewritten or deleted.
type Store struct {
	db *sql.DB
}

// HistoryEntry is one persisted broadcast record.
type HistoryEntry struct {
	Key     string
	Payload []byte
}

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "roomchat.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS history (
		room_key TEXT NOT NULL,
		ts_key TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (room_key, ts_key)
	);`)
	return err
}

// AppendBroadcast persists one serialized broadcast under its timestamp key.
// The upsert keeps the overwrite semantics a plain ordered KV put has,
// though callers disambiguate keys so collisions do not happen in practice.
func (s *Store) AppendBroadcast(ctx context.Context, roomKey, tsKey string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history(room_key, ts_key, payload) VALUES(?, ?, ?)
		ON CONFLICT(room_key, ts_key) DO UPDATE SET payload = excluded.payload
	`, roomKey, tsKey, payload)
	if err != nil {
		return fmt.Errorf("append broadcast: %w", err)
	}
	return nil
}

// LastBroadcasts returns up to n history entries for a room, newest first.
// Callers that replay history reverse the slice themselves.
func (s *Store) LastBroadcasts(ctx context.Context, roomKey string, n int) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts_key, payload FROM history
		WHERE room_key = ?
		ORDER BY ts_key DESC
		LIMIT ?
	`, roomKey, n)
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(&entry.Key, &entry.Payload); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
