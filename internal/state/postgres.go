package state

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateTableSQL is the schema PostgresStore expects.
const CreateTableSQL = `CREATE TABLE IF NOT EXISTS provider_state (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore upserts records into the provider_state table.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a store backed by db (pool or transaction).
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the provider_state table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, CreateTableSQL); err != nil {
		return persistenceError("migrate", "provider_state", err)
	}
	return nil
}

// Write implements Store. A repeated write of the same key replaces the record.
func (s *PostgresStore) Write(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	md, err := json.Marshal(metadata)
	if err != nil {
		return persistenceError("encode metadata", key, err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO provider_state (key, value, metadata, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, metadata = EXCLUDED.metadata, updated_at = NOW()`,
		key, value, md,
	)
	if err != nil {
		return persistenceError("write", key, err)
	}
	return nil
}

// Read implements Reader.
func (s *PostgresStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM provider_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistenceError("read", key, err)
	}
	return value, true, nil
}

var _ ReadWriter = (*PostgresStore)(nil)
