package cassandra

import (
	"fmt"
	log "log/slog"
	"time"

	"github.com/gocql/gocql"

	"github.com/sharedcode/livepers"
)

// Config contains configuration for connecting to a Cassandra cluster and the entity table.
type Config struct {
	// ClusterHosts lists contact points for the Cassandra cluster.
	ClusterHosts []string
	// Keyspace is the keyspace of the entity table.
	Keyspace string
	// Table is the entity table name.
	Table string
	// Consistency is the default consistency level for queries.
	Consistency gocql.Consistency
	// ConnectionTimeout is the session connection timeout.
	ConnectionTimeout time.Duration
	// Authenticator is used when the cluster requires authentication.
	Authenticator gocql.Authenticator
	// ReplicationClause defines the keyspace replication (e.g., SimpleStrategy).
	ReplicationClause string

	// ConsistencyBook allows overriding per-API consistency levels.
	ConsistencyBook ConsistencyBook
}

// ConsistencyBook enumerates per-API consistency levels used by this package.
type ConsistencyBook struct {
	Read   gocql.Consistency
	Write  gocql.Consistency
	Delete gocql.Consistency
}

// ConfigFromLivepers maps the cassandra section of the configuration.
func ConfigFromLivepers(cfg livepers.CassandraConfig) (Config, error) {
	c := Config{
		ClusterHosts: cfg.Hosts,
		Keyspace:     cfg.Keyspace,
		Table:        cfg.Table,
	}
	if cfg.Consistency != "" {
		cl, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
		if err != nil {
			return Config{}, fmt.Errorf("cassandra consistency %q: %w", cfg.Consistency, err)
		}
		c.Consistency = cl
	}
	if cfg.ConnectTimeoutSeconds > 0 {
		c.ConnectionTimeout = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if len(c.ClusterHosts) == 0 {
		c.ClusterHosts = []string{"localhost:9042"}
	}
	if c.Keyspace == "" {
		c.Keyspace = "livepers"
	}
	if c.Table == "" {
		c.Table = "entities"
	}
	if c.Consistency == gocql.Any {
		// Defaults to LocalQuorum consistency. You should set it to an appropriate level.
		c.Consistency = gocql.LocalQuorum
	}
	if c.ReplicationClause == "" {
		// Specify an appropriate replication feature.
		c.ReplicationClause = "{'class':'SimpleStrategy', 'replication_factor':1}"
	}
}

// Connection wraps a Cassandra session and its configuration.
type Connection struct {
	Session *gocql.Session
	Config
}

// OpenConnection opens a session and creates the keyspace and entity table if missing.
func OpenConnection(config Config) (*Connection, error) {
	config.applyDefaults()
	cluster := gocql.NewCluster(config.ClusterHosts...)
	cluster.Consistency = config.Consistency
	if config.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = config.ConnectionTimeout
	}
	if config.Authenticator != nil {
		cluster.Authenticator = config.Authenticator
		// Clear the authenticator just to be safer, we don't need to keep it hanging around.
		config.Authenticator = nil
	}
	log.Info("Opening Cassandra connection", "hosts", config.ClusterHosts, "keyspace", config.Keyspace)
	s, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	if err := s.Query(createKeyspaceStatement(config)).Exec(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Query(createTableStatement(config)).Exec(); err != nil {
		s.Close()
		return nil, err
	}
	return &Connection{Session: s, Config: config}, nil
}

// Close closes the session.
func (c *Connection) Close() {
	if c != nil && c.Session != nil {
		c.Session.Close()
		c.Session = nil
	}
}

func createKeyspaceStatement(c Config) string {
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", c.Keyspace, c.ReplicationClause)
}

func createTableStatement(c Config) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (id text PRIMARY KEY, doc blob, updated timestamp);", c.Keyspace, c.Table)
}
