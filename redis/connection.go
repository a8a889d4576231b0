package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	log "log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sharedcode/livepers"
)

// Options holds configuration for connecting to a Redis server.
type Options struct {
	// Address is the host:port of the Redis server.
	Address string
	// Password is the password used to authenticate.
	Password string
	// DB is the database index to select.
	DB int
	// TLSConfig contains TLS configuration for secure connections.
	TLSConfig *tls.Config
}

// Connection wraps a redis.Client and the Options used to create it.
type Connection struct {
	Client  *redis.Client
	Options Options
}

// DefaultOptions returns an Options with localhost defaults (no password, DB 0).
func DefaultOptions() Options {
	return Options{
		Address:  "localhost:6379",
		Password: "", // no password set
		DB:       0,  // use default DB
	}
}

// OptionsFromConfig maps the redis section of the configuration.
func OptionsFromConfig(cfg livepers.RedisConfig) Options {
	o := DefaultOptions()
	if cfg.Address != "" {
		o.Address = cfg.Address
	}
	o.Password = cfg.Password
	o.DB = cfg.DB
	return o
}

// OpenConnection returns a new connection built from options.
func OpenConnection(options Options) *Connection {
	log.Info("Opening Redis connection", "address", options.Address, "db", options.DB)
	return openConnectionFromRedisOptions(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
	})
}

// OpenConnectionWithURL returns a new connection built from a Redis URI.
func OpenConnectionWithURL(url string) (*Connection, error) {
	log.Info("Opening Redis connection with URL")
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return openConnectionFromRedisOptions(opts), nil
}

func openConnectionFromRedisOptions(opts *redis.Options) *Connection {
	opts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
		log.Debug("Redis connected")
		return nil
	}
	return &Connection{
		Client: redis.NewClient(opts),
		Options: Options{
			Address:   opts.Addr,
			Password:  opts.Password,
			DB:        opts.DB,
			TLSConfig: opts.TLSConfig,
		},
	}
}

// Close closes the underlying client, if not already closed.
func (c *Connection) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	log.Debug("Closing underlying Redis client")
	err := c.Client.Close()
	c.Client = nil
	return err
}
