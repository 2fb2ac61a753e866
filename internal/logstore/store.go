package logstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Backends understood by New.
const (
	BackendMongo  = "mongo"
	BackendScylla = "scylla"
	BackendNone   = "none"
)

// Store appends analysis records.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Config selects and addresses a backend.
type Config struct {
	Backend string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	ScyllaContactPoints []string
	ScyllaPort          int
	ScyllaKeyspace      string
	ScyllaTimeout       time.Duration
	ScyllaUsername      string
	ScyllaPassword      string
}

// New opens the configured backend. A backend without an address yields a
// NopStore so requests keep succeeding.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMongo:
		if cfg.MongoURI == "" {
			return NewNopStore("MONGO_URI is not configured"), nil
		}
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case BackendScylla:
		if len(cfg.ScyllaContactPoints) == 0 {
			return NewNopStore("STORAGE_SCYLLA_CONTACT_POINTS is not configured"), nil
		}
		return NewScyllaStore(cfg)
	case BackendNone:
		return NewNopStore("log store disabled"), nil
	default:
		return nil, fmt.Errorf("unsupported log store backend: %q", cfg.Backend)
	}
}

// NopStore discards records, warning once.
type NopStore struct {
	reason string
	once   sync.Once
}

// NewNopStore creates a store that drops everything.
func NewNopStore(reason string) *NopStore {
	return &NopStore{reason: reason}
}

func (n *NopStore) Insert(context.Context, Record) error {
	n.once.Do(func() {
		log.Warn().Msgf("%s, analysis logs will not be stored", n.reason)
	})
	return nil
}

func (n *NopStore) Close(context.Context) error {
	return nil
}
