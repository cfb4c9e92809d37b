// Package postgres provides a [kv.Backend] stored in a PostgreSQL table.
//
// Every namespace lives in the shared kv_entries table, keyed by
// (namespace, key). Values are stored as BYTEA and sealed individually when a
// [kv.Sealer] is configured. The layout version is recorded in
// spellin_schema_version; [Backend.Migrate] creates both tables and refuses to
// run against a database written by a newer version.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/spellin/pkg/kv"
)

// Schema is the SQL DDL for the key/value tables. Execute it via
// [Backend.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS spellin_schema_version (
    version    INTEGER     NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS kv_entries (
    namespace  TEXT        NOT NULL,
    key        TEXT        NOT NULL,
    value      BYTEA       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (namespace, key)
);
`

// DB is the database interface used by [Backend]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Compile-time interface check.
var _ kv.Backend = (*Backend)(nil)

// Backend is a [kv.Backend] for one namespace in PostgreSQL.
type Backend struct {
	db        DB
	namespace string
	sealer    *kv.Sealer
	close     func()
}

// New creates a [Backend] for namespace on top of db. The caller is
// responsible for calling [Backend.Migrate] and for closing db.
func New(db DB, namespace string, sealer *kv.Sealer) *Backend {
	return &Backend{db: db, namespace: namespace, sealer: sealer, close: func() {}}
}

// Open connects to dsn, verifies the connection and applies the schema. Any
// failure is returned so callers can refuse to start without storage.
func Open(ctx context.Context, dsn, namespace string, sealer *kv.Sealer) (*Backend, error) {
	if namespace == "" {
		return nil, errors.New("postgres: namespace is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	b := New(pool, namespace, sealer)
	b.close = pool.Close
	if err := b.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// Migrate executes [Schema] and records [kv.SchemaVersion] on first run.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}

	var version int
	const query = `SELECT COALESCE(MAX(version), 0) FROM spellin_schema_version`
	if err := b.db.QueryRow(ctx, query).Scan(&version); err != nil {
		return fmt.Errorf("postgres: read schema version: %w", err)
	}
	switch {
	case version > kv.SchemaVersion:
		return fmt.Errorf("postgres: schema version %d is newer than supported version %d", version, kv.SchemaVersion)
	case version < kv.SchemaVersion:
		const insert = `INSERT INTO spellin_schema_version (version) VALUES ($1)`
		if _, err := b.db.Exec(ctx, insert, kv.SchemaVersion); err != nil {
			return fmt.Errorf("postgres: record schema version: %w", err)
		}
	}
	return nil
}

// Keys implements [kv.Backend.Keys].
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	const query = `SELECT key FROM kv_entries WHERE namespace = $1 ORDER BY key`
	rows, err := b.db.Query(ctx, query, b.namespace)
	if err != nil {
		return nil, fmt.Errorf("postgres: keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres: keys scan: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: keys: %w", err)
	}
	return keys, nil
}

// Get implements [kv.Backend.Get].
func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`

	var raw []byte
	err := b.db.QueryRow(ctx, query, b.namespace, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("postgres: get %q: %w", key, err)
	}
	plain, err := b.sealer.Open(raw)
	if err != nil {
		return "", false, fmt.Errorf("postgres: get %q: %w", key, err)
	}
	return string(plain), true, nil
}

// Set implements [kv.Backend.Set] as a single upsert. xmax is non-zero only
// for rows that took the ON CONFLICT path.
func (b *Backend) Set(ctx context.Context, key, value string) (bool, error) {
	sealed, err := b.sealer.Seal([]byte(value))
	if err != nil {
		return false, fmt.Errorf("postgres: set %q: %w", key, err)
	}

	const query = `
		INSERT INTO kv_entries (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
		RETURNING (xmax::text <> '0')`

	var replaced bool
	if err := b.db.QueryRow(ctx, query, b.namespace, key, sealed).Scan(&replaced); err != nil {
		return false, fmt.Errorf("postgres: set %q: %w", key, err)
	}
	return replaced, nil
}

// Delete implements [kv.Backend.Delete].
func (b *Backend) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`
	if _, err := b.db.Exec(ctx, query, b.namespace, key); err != nil {
		return fmt.Errorf("postgres: delete %q: %w", key, err)
	}
	return nil
}

// Clear implements [kv.Backend.Clear]. Other namespaces are untouched.
func (b *Backend) Clear(ctx context.Context) error {
	const query = `DELETE FROM kv_entries WHERE namespace = $1`
	if _, err := b.db.Exec(ctx, query, b.namespace); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Snapshot implements [kv.Backend.Snapshot]. A single SELECT sees one
// consistent view of the table.
func (b *Backend) Snapshot(ctx context.Context) (map[string]string, error) {
	const query = `SELECT key, value FROM kv_entries WHERE namespace = $1`
	rows, err := b.db.Query(ctx, query, b.namespace)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var (
			k   string
			raw []byte
		)
		if err := rows.Scan(&k, &raw); err != nil {
			return nil, fmt.Errorf("postgres: snapshot scan: %w", err)
		}
		plain, err := b.sealer.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("postgres: snapshot %q: %w", k, err)
		}
		out[k] = string(plain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot: %w", err)
	}
	return out, nil
}

// Ping implements [kv.Backend.Ping].
func (b *Backend) Ping(ctx context.Context) error {
	var one int
	if err := b.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close implements [kv.Backend.Close]. It closes the pool only when the
// backend was created by [Open].
func (b *Backend) Close() error {
	b.close()
	return nil
}
