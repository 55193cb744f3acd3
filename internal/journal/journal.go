// Package journal gives every remote set write an explicit sync status.
// The workout flow is optimistic: a failed remote write never blocks or
// rolls back the local transition, so the journal is the durable record of
// what actually reached the database (pending/committed/failed).
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SyncStatus is the fate of one remote write.
type SyncStatus string

const (
	StatusPending   SyncStatus = "pending"
	StatusCommitted SyncStatus = "committed"
	StatusFailed    SyncStatus = "failed"
)

// Entry is one journaled set write.
type Entry struct {
	ID           int64      `json:"id"`
	SessionID    uuid.UUID  `json:"session_id"`
	ExerciseName string     `json:"exercise_name"`
	SetNumber    int        `json:"set_number"`
	Status       SyncStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Journal tracks set-write outcomes in a local SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at dir/journal.db.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS set_writes (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id    TEXT NOT NULL,
		exercise_name TEXT NOT NULL,
		set_number    INTEGER NOT NULL,
		status        TEXT NOT NULL,
		error         TEXT,
		created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Begin records a write attempt as pending and returns its journal id.
func (j *Journal) Begin(sessionID uuid.UUID, exerciseName string, setNumber int) (int64, error) {
	res, err := j.db.Exec(
		`INSERT INTO set_writes (session_id, exercise_name, set_number, status) VALUES (?, ?, ?, ?)`,
		sessionID.String(), exerciseName, setNumber, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("journaling set write: %w", err)
	}
	return res.LastInsertId()
}

// Commit marks a journaled write as committed.
func (j *Journal) Commit(id int64) error {
	_, err := j.db.Exec(`UPDATE set_writes SET status = ? WHERE id = ?`, StatusCommitted, id)
	return err
}

// Fail marks a journaled write as failed with the write error.
func (j *Journal) Fail(id int64, writeErr error) error {
	msg := ""
	if writeErr != nil {
		msg = writeErr.Error()
	}
	_, err := j.db.Exec(`UPDATE set_writes SET status = ?, error = ? WHERE id = ?`, StatusFailed, msg, id)
	return err
}

// Unsynced returns entries that never reached the database, oldest first.
func (j *Journal) Unsynced(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, session_id, exercise_name, set_number, status, COALESCE(error, ''), created_at
		 FROM set_writes
		 WHERE status != ?
		 ORDER BY created_at ASC
		 LIMIT ?`,
		StatusCommitted, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sid string
		if err := rows.Scan(&e.ID, &sid, &e.ExerciseName, &e.SetNumber, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.SessionID, _ = uuid.Parse(sid)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
