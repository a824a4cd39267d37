package store

import (
	"fmt"
	"time"
)

// ProjectStore is the persistence interface the service layer depends on.
type ProjectStore interface {
	SaveSnapshot(projectID, name string, files map[string]string) error
	LoadSnapshot(projectID string) (map[string]string, error)
	AppendMessage(projectID, role, content string) (int64, error)
	Messages(projectID string) ([]Message, error)
	Close() error
}

// Verify *DB satisfies ProjectStore at compile time.
var _ ProjectStore = (*DB)(nil)

// Message is one chat message riding with a project.
type Message struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveSnapshot replaces the stored file set for a project within one
// transaction: the flat path-to-content map, exactly as the tree serializes
// it, so LoadSnapshot round-trips with no information loss.
func (db *DB) SaveSnapshot(projectID, name string, files map[string]string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO projects (id, name, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, projectID, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: upsert project: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM files WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("store: clear files: %w", err)
	}
	if len(files) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO files (project_id, path, content) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare file insert: %w", err)
		}
		defer stmt.Close()
		for path, content := range files {
			if _, err := stmt.Exec(projectID, path, content); err != nil {
				return fmt.Errorf("store: insert file: %w", err)
			}
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns the stored path-to-content map for a project. An
// unknown project yields an empty map, not an error.
func (db *DB) LoadSnapshot(projectID string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, content FROM files WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, content string
		if err := rows.Scan(&path, &content); err != nil {
			return nil, err
		}
		out[path] = content
	}
	return out, rows.Err()
}

// AppendMessage stores one chat message and returns its id.
func (db *DB) AppendMessage(projectID, role, content string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO messages (project_id, role, content, created_at) VALUES (?, ?, ?, ?)
	`, projectID, role, content, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: append message: %w", err)
	}
	return res.LastInsertId()
}

// Messages returns a project's chat messages in insertion order.
func (db *DB) Messages(projectID string) ([]Message, error) {
	rows, err := db.conn.Query(`
		SELECT id, role, content, created_at FROM messages
		WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
