package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoSessions is returned when the transcript log is empty.
var ErrNoSessions = errors.New("no recorded sessions")

// Session is one run of the interactive client.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Workdir   string    `json:"workdir" yaml:"workdir"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

// Entry is one line of the transcript log.
type Entry struct {
	Kind      string    `json:"kind" yaml:"kind"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Transcript is an append-only log of what was shown during each session.
type Transcript struct {
	db *DB
}

// NewTranscript returns a transcript log backed by db.
func NewTranscript(db *DB) *Transcript {
	return &Transcript{db: db}
}

// Begin starts a new session for workdir and returns it.
func (t *Transcript) Begin(workdir string) (Session, error) {
	s := Session{ID: uuid.NewString(), Workdir: workdir, StartedAt: time.Now()}
	_, err := t.db.conn.Exec(
		"INSERT INTO sessions (id, workdir, started_at) VALUES (?, ?, ?)",
		s.ID, s.Workdir, s.StartedAt.Unix(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to begin session: %w", err)
	}
	return s, nil
}

// Record appends one entry to session.
func (t *Transcript) Record(sessionID, kind, content string) error {
	_, err := t.db.conn.Exec(
		"INSERT INTO transcript (session_id, kind, content, created_at) VALUES (?, ?, ?, ?)",
		sessionID, kind, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record transcript entry: %w", err)
	}
	return nil
}

// List returns the entries of a session in the order they were recorded.
func (t *Transcript) List(sessionID string) ([]Entry, error) {
	rows, err := t.db.conn.Query(
		"SELECT kind, content, created_at FROM transcript WHERE session_id = ? ORDER BY id ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.Kind, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan transcript entry: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript: %w", err)
	}
	return entries, nil
}

// Sessions returns up to limit sessions, newest first.
func (t *Transcript) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := t.db.conn.Query(
		"SELECT id, workdir, started_at FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var ts int64
		if err := rows.Scan(&s.ID, &s.Workdir, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = time.Unix(ts, 0)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// Latest returns the most recently started session.
func (t *Transcript) Latest() (Session, error) {
	var s Session
	var ts int64
	err := t.db.conn.QueryRow(
		"SELECT id, workdir, started_at FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT 1",
	).Scan(&s.ID, &s.Workdir, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSessions
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load latest session: %w", err)
	}
	s.StartedAt = time.Unix(ts, 0)
	return s, nil
}
