package logstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
)

const insertRecordCQL = `INSERT INTO analysis_logs (id, ts, train_percentage, f1_validation, top_10_features, full_results) VALUES (?, ?, ?, ?, ?, ?)`

// ScyllaStore writes records to a Scylla/Cassandra table:
//
//	CREATE TABLE analysis_logs (
//	    id uuid PRIMARY KEY, ts timestamp, train_percentage double,
//	    f1_validation double, top_10_features list<text>, full_results text)
type ScyllaStore struct {
	session *gocql.Session
}

// ClusterConfig builds the gocql cluster configuration for cfg.
func ClusterConfig(cfg Config) (*gocql.ClusterConfig, error) {
	if len(cfg.ScyllaContactPoints) == 0 {
		return nil, errors.New("scylla contact points not set")
	}
	if cfg.ScyllaKeyspace == "" {
		return nil, errors.New("scylla keyspace not set")
	}

	cluster := gocql.NewCluster(cfg.ScyllaContactPoints...)
	cluster.Keyspace = cfg.ScyllaKeyspace
	cluster.Consistency = gocql.LocalQuorum
	if cfg.ScyllaPort > 0 {
		cluster.Port = cfg.ScyllaPort
	}
	if cfg.ScyllaTimeout > 0 {
		cluster.Timeout = cfg.ScyllaTimeout
		cluster.ConnectTimeout = cfg.ScyllaTimeout
	}
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
	}
	return cluster, nil
}

// NewScyllaStore opens a session against the configured cluster.
func NewScyllaStore(cfg Config) (*ScyllaStore, error) {
	cluster, err := ClusterConfig(cfg)
	if err != nil {
		return nil, err
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}
	return &ScyllaStore{session: session}, nil
}

// Insert writes rec; the full result is stored as JSON text.
func (s *ScyllaStore) Insert(ctx context.Context, rec Record) error {
	id, err := gocql.ParseUUID(rec.ID)
	if err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	full, err := json.Marshal(rec.Results)
	if err != nil {
		return err
	}

	err = s.session.Query(insertRecordCQL,
		id,
		rec.Timestamp,
		rec.TrainPercentage,
		rec.Summary.F1Validation,
		rec.Summary.Top10Features,
		string(full),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("scylla insert: %w", err)
	}
	return nil
}

// Close closes the session.
func (s *ScyllaStore) Close(context.Context) error {
	s.session.Close()
	return nil
}
