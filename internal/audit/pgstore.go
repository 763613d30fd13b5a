package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/bazaar/internal/config"
)

// Schema creates the audit table. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS console_audit (
	id          TEXT PRIMARY KEY,
	at          TIMESTAMPTZ NOT NULL,
	subject_id  TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	resource    TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS console_audit_at_idx ON console_audit (at DESC);
CREATE INDEX IF NOT EXISTS console_audit_resource_idx ON console_audit (resource, at DESC);
`

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps an existing pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// OpenPgStore connects to dsn with the pool limits from cfg.
func OpenPgStore(ctx context.Context, dsn string, cfg config.DatabaseConfig) (*PgStore, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

// Migrate creates the audit table if it does not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PgStore) Close() {
	s.pool.Close()
}

// Record inserts e.
func (s *PgStore) Record(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO console_audit (
			id, at, subject_id, email, session_id,
			resource, target_id, action, reason, outcome, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.At, e.SubjectID, e.Email, e.SessionID,
		e.Resource, e.TargetID, e.Action, e.Reason, e.Outcome, e.Error,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// List returns matching entries newest first.
func (s *PgStore) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	where := `WHERE ($1 = '' OR resource = $1) AND ($2 = '' OR subject_id = $2)`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM console_audit `+where,
		f.Resource, f.SubjectID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count entries: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, at, subject_id, email, session_id,
		       resource, target_id, action, reason, outcome, error
		FROM console_audit `+where+`
		ORDER BY at DESC
		LIMIT $3 OFFSET $4`,
		f.Resource, f.SubjectID, f.limit(), max(f.Offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.At, &e.SubjectID, &e.Email, &e.SessionID,
			&e.Resource, &e.TargetID, &e.Action, &e.Reason, &e.Outcome, &e.Error,
		); err != nil {
			return nil, 0, fmt.Errorf("audit: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// HealthCheck pings the database.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
