package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS api_calls (
    id          UUID PRIMARY KEY,
    run_id      UUID NOT NULL,
    api_path    TEXT NOT NULL,
    category    TEXT NOT NULL,
    method      TEXT NOT NULL,
    batched     BOOLEAN NOT NULL DEFAULT FALSE,
    response    TEXT,
    error       TEXT,
    duration_ms BIGINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS api_calls_run_id_idx ON api_calls (run_id);
`

const insertCallSQL = `
INSERT INTO api_calls (id, run_id, api_path, category, method, batched, response, error, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Entry is one journaled call. Response and Error are stored as NULL when
// empty.
type Entry struct {
	RunID     uuid.UUID
	APIPath   string
	Category  string
	Method    string
	Batched   bool
	Response  string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// Record inserts e and returns the generated row id.
func (db *DB) Record(ctx context.Context, e Entry) (uuid.UUID, error) {
	id := uuid.New()
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.pool.Exec(ctx, insertCallSQL, entryArgs(id, e, createdAt)...)
	if err != nil {
		db.logger.Error("Failed to record call",
			zap.String("api_path", e.APIPath),
			zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to record call %s: %w", e.APIPath, err)
	}
	return id, nil
}

func entryArgs(id uuid.UUID, e Entry, createdAt time.Time) []any {
	return []any{
		id,
		e.RunID,
		e.APIPath,
		e.Category,
		e.Method,
		e.Batched,
		pgtype.Text{String: e.Response, Valid: e.Response != ""},
		pgtype.Text{String: e.Error, Valid: e.Error != ""},
		e.Duration.Milliseconds(),
		pgtype.Timestamptz{Time: createdAt, Valid: true},
	}
}
