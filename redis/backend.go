// Package redis contains the Redis back-end: each entity is stored as a JSON string under
// its ID, prefixed with a configurable key prefix.
package redis

import (
	"context"
	"fmt"

	"github.com/sharedcode/livepers"
)

func init() {
	livepers.RegisterBackend(livepers.RedisBackend, func(ctx context.Context, cfg livepers.Config) (livepers.Backend, error) {
		var conn *Connection
		if cfg.Redis.URL != "" {
			var err error
			if conn, err = OpenConnectionWithURL(cfg.Redis.URL); err != nil {
				return nil, err
			}
		} else {
			conn = OpenConnection(OptionsFromConfig(cfg.Redis))
		}
		return NewBackend(NewClient(conn), cfg.Redis.KeyPrefix), nil
	})
}

// Backend is the Redis back-end.
type Backend struct {
	kv        KeyValue
	keyPrefix string
}

// NewBackend returns a Backend storing documents in kv under keyPrefix + ID.
func NewBackend(kv KeyValue, keyPrefix string) *Backend {
	return &Backend{kv: kv, keyPrefix: keyPrefix}
}

// FormatKey returns the Redis key of id.
func (b *Backend) FormatKey(id livepers.ID) string {
	return b.keyPrefix + string(id)
}

// Init checks connectivity.
func (b *Backend) Init(ctx context.Context) error {
	return b.kv.Ping(ctx)
}

func (b *Backend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	ba, found, err := b.kv.Get(ctx, b.FormatKey(id))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("read %s: %w", id, livepers.ErrNotFound)
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
	ba, err := livepers.EncodeData(data)
	if err != nil {
		return err
	}
	if err := b.kv.Set(ctx, b.FormatKey(id), ba); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, id livepers.ID) error {
	if err := b.kv.Delete(ctx, b.FormatKey(id)); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}
