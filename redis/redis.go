package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KeyValue is the subset of Redis commands the back-end uses.
type KeyValue interface {
	Ping(ctx context.Context) error
	// Get returns the value of key; found is false if the key does not exist.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type client struct {
	conn *Connection
}

// NewClient returns a KeyValue executing commands on conn.
func NewClient(conn *Connection) KeyValue {
	return &client{conn: conn}
}

var errNotOpen = errors.New("redis connection is not open")

// keyNotFound will detect whether error signifies key not found by Redis.
func keyNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Ping tests connectivity for redis (PONG should be returned).
func (c client) Ping(ctx context.Context) error {
	if c.conn == nil || c.conn.Client == nil {
		return errNotOpen
	}
	if err := c.conn.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.conn.Options.Address, err)
	}
	return nil
}

// Get executes the redis Get command.
func (c client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.conn == nil || c.conn.Client == nil {
		return nil, false, errNotOpen
	}
	ba, err := c.conn.Client.Get(ctx, key).Bytes()
	if keyNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ba, true, nil
}

// Set executes the redis Set command without expiration.
func (c client) Set(ctx context.Context, key string, value []byte) error {
	if c.conn == nil || c.conn.Client == nil {
		return errNotOpen
	}
	return c.conn.Client.Set(ctx, key, value, 0).Err()
}

// Delete executes the redis Del command.
func (c client) Delete(ctx context.Context, key string) error {
	if c.conn == nil || c.conn.Client == nil {
		return errNotOpen
	}
	err := c.conn.Client.Del(ctx, key).Err()
	if keyNotFound(err) {
		return nil
	}
	return err
}
