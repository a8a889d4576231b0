// Package postgres contains the PostgreSQL back-end: one row per entity with its document
// in a jsonb column.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sharedcode/livepers"
)

func init() {
	livepers.RegisterBackend(livepers.PostgresBackend, func(ctx context.Context, cfg livepers.Config) (livepers.Backend, error) {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewBackend(db, cfg.Postgres.Table), nil
	})
}

// Backend is the PostgreSQL back-end.
type Backend struct {
	db    *sql.DB
	table string
}

// NewBackend returns a Backend storing documents in table. An empty table name means "entities".
func NewBackend(db *sql.DB, table string) *Backend {
	if table == "" {
		table = "entities"
	}
	return &Backend{db: db, table: pq.QuoteIdentifier(table)}
}

// Init checks connectivity and creates the table if needed.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres back-end: %w", err)
	}
	if _, err := b.db.ExecContext(ctx, b.createTableStatement()); err != nil {
		return fmt.Errorf("create table %s: %w", b.table, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	var raw []byte
	err := b.db.QueryRowContext(ctx, b.selectStatement(), string(id)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read %s: %w", id, livepers.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	d, err := livepers.DecodeData(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return d, nil
}

func (b *Backend) Write(ctx context.Context, data livepers.Data) error {
	id := data.ID()
	if id.IsNil() {
		return fmt.Errorf("write: document has no id")
	}
	ba, err := livepers.EncodeData(data)
	if err != nil {
		return err
	}
	// jsonb takes the text form; a []byte argument would be sent as bytea.
	if _, err := b.db.ExecContext(ctx, b.upsertStatement(), string(id), string(ba), time.Now().UTC()); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

// Delete removes the row of id. Deleting a missing row is not an error.
func (b *Backend) Delete(ctx context.Context, id livepers.ID) error {
	if _, err := b.db.ExecContext(ctx, b.deleteStatement(), string(id)); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (b *Backend) createTableStatement() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`, b.table)
}

func (b *Backend) selectStatement() string {
	return fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, b.table)
}

func (b *Backend) upsertStatement() string {
	return fmt.Sprintf(`
		INSERT INTO %s (id, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, b.table)
}

func (b *Backend) deleteStatement() string {
	return fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, b.table)
}
