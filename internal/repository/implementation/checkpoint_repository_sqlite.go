package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"site-research-be/pkg/agent"

	_ "modernc.org/sqlite"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS agent_checkpoints (
	thread_id  TEXT PRIMARY KEY,
	query      TEXT NOT NULL DEFAULT '',
	phase      TEXT NOT NULL DEFAULT '',
	iterations INTEGER NOT NULL DEFAULT 0,
	state      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// SQLiteCheckpointRepository keeps checkpoints in a local database file.
type SQLiteCheckpointRepository struct {
	db   *sql.DB
	path string
}

var _ agent.CheckpointStore = &SQLiteCheckpointRepository{}

func NewSQLiteCheckpointRepository(path string) (*SQLiteCheckpointRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	// one writer keeps WAL contention out of the picture
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping checkpoint database: %w", err)
	}
	if _, err := db.Exec(checkpointSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}

	return &SQLiteCheckpointRepository{db: db, path: path}, nil
}

func (r *SQLiteCheckpointRepository) Load(ctx context.Context, threadID string) (*agent.SessionState, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT state FROM agent_checkpoints WHERE thread_id = ?`, threadID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}

	var state agent.SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return &state, nil
}

func (r *SQLiteCheckpointRepository) Save(ctx context.Context, threadID string, state *agent.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", threadID, err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO agent_checkpoints (thread_id, query, phase, iterations, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(thread_id) DO UPDATE SET
	query = excluded.query,
	phase = excluded.phase,
	iterations = excluded.iterations,
	state = excluded.state,
	updated_at = excluded.updated_at`,
		threadID, state.Query, string(state.Phase), state.Iterations, string(raw), now, now)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", threadID, err)
	}
	return nil
}

func (r *SQLiteCheckpointRepository) Path() string {
	return r.path
}

func (r *SQLiteCheckpointRepository) Close() error {
	return r.db.Close()
}
