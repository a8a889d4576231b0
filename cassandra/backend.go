// Package cassandra contains the Cassandra back-end: one row per entity holding its JSON
// document.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"github.com/sharedcode/livepers"
)

func init() {
	livepers.RegisterBackend(livepers.CassandraBackend, func(ctx context.Context, cfg livepers.Config) (livepers.Backend, error) {
		c, err := ConfigFromLivepers(cfg.Cassandra)
		if err != nil {
			return nil, err
		}
		return NewBackend(c), nil
	})
}

var errClosed = errors.New("cassandra connection is closed, call Init to open it")

// Backend is the Cassandra back-end. The session is opened by Init.
type Backend struct {
	config Config
	locker sync.Mutex
	conn   *Connection
}

// NewBackend returns a Backend for config.
func NewBackend(config Config) *Backend {
	config.applyDefaults()
	return &Backend{config: config}
}

// Init opens the session, creating the keyspace and table if needed.
func (b *Backend) Init(ctx context.Context) error {
	b.locker.Lock()
	defer b.locker.Unlock()
	if b.conn != nil {
		return nil
	}
	conn, err := OpenConnection(b.config)
	if err != nil {
		return fmt.Errorf("cassandra back-end: %w", err)
	}
	b.conn = conn
	return nil
}

// Close closes the session.
func (b *Backend) Close() {
	b.locker.Lock()
	defer b.locker.Unlock()
	b.conn.Close()
	b.conn = nil
}

func (b *Backend) connection() (*Connection, error) {
	b.locker.Lock()
	defer b.locker.Unlock()
	if b.conn == nil || b.conn.Session == nil {
		return nil, errClosed
	}
	return b.conn, nil
}

func (b *Backend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	qry := conn.Session.Query(selectStatement(conn.Config), string(id)).WithContext(ctx)
	if conn.ConsistencyBook.Read > gocql.Any {
		qry.Consistency(conn.ConsistencyBook.Read)
	}
	var ba []byte
	if err := qry.Scan(&ba); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, fmt.Errorf("read %s: %w", id, livepers.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	d, err := livepers.DecodeData(ba)
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
	conn, err := b.connection()
	if err != nil {
		return err
	}
	ba, err := livepers.EncodeData(data)
	if err != nil {
		return err
	}
	qry := conn.Session.Query(upsertStatement(conn.Config), string(id), ba, time.Now()).WithContext(ctx)
	if conn.ConsistencyBook.Write > gocql.Any {
		qry.Consistency(conn.ConsistencyBook.Write)
	}
	if err := qry.Exec(); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, id livepers.ID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	qry := conn.Session.Query(deleteStatement(conn.Config), string(id)).WithContext(ctx)
	if conn.ConsistencyBook.Delete > gocql.Any {
		qry.Consistency(conn.ConsistencyBook.Delete)
	}
	if err := qry.Exec(); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func selectStatement(c Config) string {
	return fmt.Sprintf("SELECT doc FROM %s.%s WHERE id = ?;", c.Keyspace, c.Table)
}

// INSERT is an upsert in Cassandra.
func upsertStatement(c Config) string {
	return fmt.Sprintf("INSERT INTO %s.%s (id, doc, updated) VALUES(?,?,?);", c.Keyspace, c.Table)
}

func deleteStatement(c Config) string {
	return fmt.Sprintf("DELETE FROM %s.%s WHERE id = ?;", c.Keyspace, c.Table)
}
