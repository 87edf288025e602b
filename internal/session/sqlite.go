package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore stores sessions in a SQLite database. Useful when many runs
// accumulate and the JSONL directory becomes unwieldy to query.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		database_path TEXT NOT NULL,
		request TEXT NOT NULL,
		budget INTEGER NOT NULL,
		status TEXT NOT NULL,
		result TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		round INTEGER,
		content TEXT,
		tool TEXT,
		args TEXT,
		error TEXT,
		duration_ms INTEGER,
		model TEXT,
		tokens_in INTEGER,
		tokens_out INTEGER,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save saves a session and its events. The event log is rewritten from the
// in-memory session, which is the source of truth during a run.
func (s *SQLiteStore) Save(sess *Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, database_path, request, budget, status, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		sess.ID, sess.DatabasePath, sess.Request, sess.Budget,
		sess.Status, sess.Result, sess.Error, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM events WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}

	for _, evt := range sess.Events {
		var argsJSON []byte
		if evt.Args != nil {
			argsJSON, _ = json.Marshal(evt.Args)
		}
		_, err := tx.Exec(`
			INSERT INTO events (session_id, seq, type, round, content, tool, args, error, duration_ms, model, tokens_in, tokens_out, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, evt.SeqID, evt.Type, evt.Round, evt.Content, evt.Tool,
			string(argsJSON), evt.Error, evt.DurationMs, evt.Model,
			evt.TokensIn, evt.TokensOut, evt.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
	}

	return tx.Commit()
}

// Load reads a session and its events by ID.
func (s *SQLiteStore) Load(id string) (*Session, error) {
	sess := &Session{Events: []Event{}}

	var created, updated time.Time
	err := s.db.QueryRow(`
		SELECT id, database_path, request, budget, status, result, error, created_at, updated_at
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.DatabasePath, &sess.Request, &sess.Budget,
			&sess.Status, &sess.Result, &sess.Error, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	sess.CreatedAt = created
	sess.UpdatedAt = updated

	rows, err := s.db.Query(`
		SELECT seq, type, round, content, tool, args, error, duration_ms, model, tokens_in, tokens_out, timestamp
		FROM events WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var evt Event
		var argsJSON string
		if err := rows.Scan(&evt.SeqID, &evt.Type, &evt.Round, &evt.Content,
			&evt.Tool, &argsJSON, &evt.Error, &evt.DurationMs, &evt.Model,
			&evt.TokensIn, &evt.TokensOut, &evt.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if argsJSON != "" {
			json.Unmarshal([]byte(argsJSON), &evt.Args)
		}
		sess.Events = append(sess.Events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if n := len(sess.Events); n > 0 {
		sess.seqCounter = sess.Events[n-1].SeqID
	}

	return sess, nil
}
