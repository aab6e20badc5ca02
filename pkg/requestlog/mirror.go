package requestlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// schema is the mirror table's DDL. One row per Record; request log entries
// are append-only except for retention pruning.
const schema = `
CREATE TABLE IF NOT EXISTS request_log (
	id                    TEXT PRIMARY KEY,
	request_id            TEXT NOT NULL,
	path                  TEXT NOT NULL,
	requested_model       TEXT NOT NULL,
	effective_model       TEXT NOT NULL,
	provider              TEXT NOT NULL,
	streaming             BOOLEAN NOT NULL,
	translated            BOOLEAN NOT NULL,
	status_code           INTEGER NOT NULL,
	total_latency_ms      INTEGER NOT NULL,
	first_byte_latency_ms INTEGER NOT NULL,
	prompt_tokens         INTEGER NOT NULL,
	completion_tokens     INTEGER NOT NULL,
	total_tokens          INTEGER NOT NULL,
	errors_json           TEXT,
	created_at            TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_log_created_at ON request_log(created_at);
`

// Mirror is a durable, append-only sqlite copy of the request log, kept for
// crash-surviving audit. Nothing in the gateway reads records back from it:
// GET /admin/logs serves the in-memory ring only. The in-memory ring remains
// the source of truth for the live tail: Mirror is purely additive.
type Mirror struct {
	db *sql.DB
}

// OpenMirror opens (creating if necessary) a sqlite database at path and
// ensures its schema exists.
func OpenMirror(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite mirror: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite mirror schema: %w", err)
	}
	return &Mirror{db: db}, nil
}

// Write persists one record. Called from the recorder's async worker, never
// from the request-handling goroutine.
func (m *Mirror) Write(ctx context.Context, rec Record) error {
	var errorsJSON []byte
	if len(rec.Errors) > 0 {
		var err error
		errorsJSON, err = json.Marshal(rec.Errors)
		if err != nil {
			return fmt.Errorf("marshal candidate errors: %w", err)
		}
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO request_log (
			id, request_id, path, requested_model, effective_model, provider,
			streaming, translated, status_code, total_latency_ms,
			first_byte_latency_ms, prompt_tokens, completion_tokens,
			total_tokens, errors_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RequestID, rec.Path, rec.RequestedModel, rec.EffectiveModel, rec.Provider,
		rec.Streaming, rec.Translated, rec.StatusCode, rec.TotalLatencyMs,
		rec.FirstByteLatencyMs, rec.PromptTokens, rec.CompletionTokens,
		rec.TotalTokens, string(errorsJSON), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request log record: %w", err)
	}
	return nil
}

// PruneByAge deletes records older than cutoff and returns the count removed.
func (m *Mirror) PruneByAge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM request_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune by age: %w", err)
	}
	return res.RowsAffected()
}

// PruneByCount deletes the oldest records past the first max rows and
// returns the count removed.
func (m *Mirror) PruneByCount(ctx context.Context, max int64) (int64, error) {
	res, err := m.db.ExecContext(ctx, `
		DELETE FROM request_log WHERE id IN (
			SELECT id FROM request_log ORDER BY created_at DESC
			LIMIT -1 OFFSET ?
		)`, max)
	if err != nil {
		return 0, fmt.Errorf("prune by count: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the total number of mirrored records.
func (m *Mirror) Count(ctx context.Context) (int64, error) {
	var n int64
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_log`).Scan(&n)
	return n, err
}

// Close releases the underlying database handle.
func (m *Mirror) Close() error {
	return m.db.Close()
}
