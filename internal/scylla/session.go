package scylla

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/bridgelet/bridgelet/internal/config"
)

// NewSession connects to the Scylla/Cassandra cluster holding the queue
// tables and the per-room message log.
func NewSession(cfg config.ScyllaConfig) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}
