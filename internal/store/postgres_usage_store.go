package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const usageSchemaSQL = `
CREATE TABLE IF NOT EXISTS usage_records (
	id TEXT PRIMARY KEY,
	object_uri TEXT NOT NULL,
	instruction TEXT NOT NULL,
	source_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	format TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresUsageStore struct {
	db *sql.DB
}

func NewPostgresUsageStore(ctx context.Context, dsn string) (*PostgresUsageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUsageStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresUsageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchemaSQL); err != nil {
		return fmt.Errorf("ensure usage schema: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUsageStore) CreateUsageRecord(ctx context.Context, record UsageRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO usage_records (id, object_uri, instruction, source_bytes, output_bytes, format, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID,
		record.ObjectURI,
		record.Instruction,
		record.SourceBytes,
		record.OutputBytes,
		record.Format,
		record.DurationMS,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) GetUsageRecord(ctx context.Context, id string) (UsageRecord, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, object_uri, instruction, source_bytes, output_bytes, format, duration_ms, created_at
		 FROM usage_records
		 WHERE id = $1`,
		id,
	)

	var record UsageRecord
	if err := row.Scan(
		&record.ID,
		&record.ObjectURI,
		&record.Instruction,
		&record.SourceBytes,
		&record.OutputBytes,
		&record.Format,
		&record.DurationMS,
		&record.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return UsageRecord{}, false, nil
		}
		return UsageRecord{}, false, fmt.Errorf("query usage record: %w", err)
	}

	return record, true, nil
}
