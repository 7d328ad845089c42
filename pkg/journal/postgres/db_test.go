package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConfigDefaults(t *testing.T) {
	for _, k := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE"} {
		t.Setenv(k, "")
	}

	cfg := NewConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "openapi", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=openapi sslmode=disable", cfg.DSN())
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "runner")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "calls")
	t.Setenv("DB_SSLMODE", "require")

	cfg := NewConfig()
	assert.Equal(t, "host=db.internal port=6543 user=runner password=pw dbname=calls sslmode=require", cfg.DSN())
}

func TestNewConfigIgnoresBadPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	assert.Equal(t, 5432, NewConfig().Port)
}

func TestEntryArgs(t *testing.T) {
	id := uuid.New()
	run := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	args := entryArgs(id, Entry{
		RunID:    run,
		APIPath:  "user/info",
		Category: "rest",
		Method:   "GET",
		Response: `{"name":"x"}`,
		Duration: 1500 * time.Millisecond,
	}, at)

	require.Len(t, args, 10)
	assert.Equal(t, id, args[0])
	assert.Equal(t, run, args[1])
	assert.Equal(t, false, args[5])
	assert.Equal(t, pgtype.Text{String: `{"name":"x"}`, Valid: true}, args[6])
	assert.Equal(t, pgtype.Text{}, args[7])
	assert.Equal(t, int64(1500), args[8])
	assert.Equal(t, pgtype.Timestamptz{Time: at, Valid: true}, args[9])
}

func TestNewFailsWhenPingFails(t *testing.T) {
	cfg := NewConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MinConns = 0

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, cfg, zap.NewNop())
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "failed to ping database")
}
