package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Fixed keys in the kv table. The snapshot and the last-selected model are
// stored independently: the model survives a session reset.
const (
	snapshotKey  = "session_snapshot"
	lastModelKey = "last_model"
)

// MaxStoredMessages bounds the history persisted in a snapshot. This is a
// storage-size bound only; the in-memory history sent to the relay is never
// truncated.
const MaxStoredMessages = 20

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Store persists the session snapshot in a local SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the database location under the XDG data directory.
func DefaultDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "relaychat", "relaychat.db"), nil
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save serializes the session, with history truncated to the most recent
// MaxStoredMessages entries, under the snapshot key. Side effect only; the
// session itself is not validated or mutated.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	snapshot := Session{
		Key:       sess.Key,
		SessionID: sess.SessionID,
		Model:     sess.Model,
		History:   sess.History,
	}
	if len(snapshot.History) > MaxStoredMessages {
		snapshot.History = snapshot.History[len(snapshot.History)-MaxStoredMessages:]
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	return s.put(ctx, snapshotKey, string(payload))
}

// Load restores the persisted snapshot. A missing entry returns nil. A
// malformed entry is cleared and also returns nil: a corrupt snapshot must
// never break startup.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	value, err := s.get(ctx, snapshotKey)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(value), &sess); err != nil {
		_ = s.Clear(ctx)
		return nil, nil
	}
	return &sess, nil
}

// Clear deletes the persisted snapshot. The last-model key is untouched.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", snapshotKey)
	if err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// SaveLastModel records the last-selected model name, independent of session
// state.
func (s *Store) SaveLastModel(ctx context.Context, model string) error {
	return s.put(ctx, lastModelKey, model)
}

// LastModel returns the last-selected model name, or "" when none was saved.
func (s *Store) LastModel(ctx context.Context) (string, error) {
	return s.get(ctx, lastModelKey)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}
