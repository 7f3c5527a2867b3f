package storage

import (
	"fmt"
	"time"
)

// HistoryStore persists submitted prompts per working directory.
type HistoryStore struct {
	db         *DB
	workdir    string
	maxEntries int
}

// NewHistoryStore returns a store scoped to workdir. A positive maxEntries
// caps the number of rows kept for that directory.
func NewHistoryStore(db *DB, workdir string, maxEntries int) *HistoryStore {
	return &HistoryStore{db: db, workdir: workdir, maxEntries: maxEntries}
}

// Load returns up to limit prompts, oldest first. A limit of zero or less
// returns every prompt.
func (h *HistoryStore) Load(limit int) ([]string, error) {
	query := `
		SELECT prompt FROM (
			SELECT id, prompt FROM prompt_history
			WHERE workdir = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.conn.Query(query, h.workdir, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt history: %w", err)
	}
	defer rows.Close()

	var prompts []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompts: %w", err)
	}
	return prompts, nil
}

// Append records prompt. A prompt that is already stored keeps its original
// position.
func (h *HistoryStore) Append(prompt string) error {
	_, err := h.db.conn.Exec(`
		INSERT OR IGNORE INTO prompt_history (workdir, prompt, timestamp)
		VALUES (?, ?, ?)`,
		h.workdir, prompt, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append prompt: %w", err)
	}

	if h.maxEntries > 0 {
		_, err = h.db.conn.Exec(`
			DELETE FROM prompt_history
			WHERE workdir = ?
			AND id NOT IN (
				SELECT id FROM prompt_history
				WHERE workdir = ?
				ORDER BY id DESC
				LIMIT ?
			)`,
			h.workdir, h.workdir, h.maxEntries,
		)
		if err != nil {
			return fmt.Errorf("failed to apply prompt history limit: %w", err)
		}
	}
	return nil
}

// Clear removes every prompt for the working directory.
func (h *HistoryStore) Clear() error {
	if _, err := h.db.conn.Exec("DELETE FROM prompt_history WHERE workdir = ?", h.workdir); err != nil {
		return fmt.Errorf("failed to clear prompt history: %w", err)
	}
	return nil
}
