// Package store persists session history to a local SQLite database,
// giving conversations durable storage beyond the per-session markdown
// export.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_history (
	session_id  TEXT NOT NULL,
	turn_number INTEGER NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (session_id, turn_number)
);
CREATE INDEX IF NOT EXISTS idx_session_history_session
	ON session_history(session_id);
`

// HistoryEntry is one persisted turn.
type HistoryEntry struct {
	SessionID  string
	TurnNumber int
	Role       string
	Content    string
	CreatedAt  time.Time
}

// SessionStore records conversation turns in SQLite.
type SessionStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the session database at path and ensures the
// schema exists.
func Open(path string, logger *zap.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// Single writer is the expected access pattern; WAL keeps readers
	// unblocked during turn persistence.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		logger.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Debug("failed to set busy_timeout", zap.Error(err))
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SessionStore{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// StoreTurn records one conversation turn. Duplicate (session, turn) pairs
// are silently skipped so replayed persistence stays idempotent.
func (s *SessionStore) StoreTurn(sessionID string, turnNumber int, role, content string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_history (session_id, turn_number, role, content)
		 VALUES (?, ?, ?, ?)`,
		sessionID, turnNumber, role, content,
	)
	if err != nil {
		s.logger.Error("failed to store session turn",
			zap.String("session", sessionID),
			zap.Int("turn", turnNumber),
			zap.Error(err))
		return fmt.Errorf("failed to store session turn: %w", err)
	}
	return nil
}

// History returns the most recent turns of a session in ascending turn
// order. A limit of 0 or less defaults to 50.
func (s *SessionStore) History(sessionID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT session_id, turn_number, role, content, created_at
		 FROM (
			SELECT * FROM session_history
			WHERE session_id = ?
			ORDER BY turn_number DESC
			LIMIT ?
		 )
		 ORDER BY turn_number ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.SessionID, &e.TurnNumber, &e.Role, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions lists distinct session IDs, most recently active first.
func (s *SessionStore) Sessions(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}

	// MAX() strips the column's datetime affinity, so last_active is only
	// used for ordering and never scanned.
	rows, err := s.db.Query(
		`SELECT session_id
		 FROM session_history
		 GROUP BY session_id
		 ORDER BY MAX(created_at) DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}
