package logstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/flowselect/pkg/selection"
)

type memoryStore struct {
	mu      sync.Mutex
	records []Record
	err     error
	block   chan struct{}
	closed  bool
}

func (m *memoryStore) Insert(ctx context.Context, rec Record) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryStore) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memoryStore) snapshot() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

func sampleResult() selection.Result {
	return selection.Result{
		F1Validation:    0.9731,
		F1Training:      0.9999,
		FeaturesAsc:     []string{"urg_flag_count", "flow_duration"},
		TopFeaturesDesc: []string{"flow_duration", "urg_flag_count"},
		TrainSize:       80,
		ValidationSize:  10,
	}
}

func TestNewRecord(t *testing.T) {
	before := time.Now().UTC()
	rec := NewRecord(80, sampleResult())

	_, err := uuid.Parse(rec.ID)
	assert.NoError(t, err)
	assert.False(t, rec.Timestamp.Before(before))
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.Equal(t, 80.0, rec.TrainPercentage)
	assert.Equal(t, 0.9731, rec.Summary.F1Validation)
	assert.Equal(t, []string{"flow_duration", "urg_flag_count"}, rec.Summary.Top10Features)
	assert.Equal(t, sampleResult(), rec.Results)
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	store := &memoryStore{}
	d := NewDispatcher(store, "memory", 16, time.Second)

	for i := 0; i < 10; i++ {
		assert.True(t, d.Publish(NewRecord(float64(i+1), sampleResult())))
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, store.snapshot(), 10)
	assert.True(t, store.closed)
	assert.Equal(t, int64(10), d.Stats().Published.Load())
	assert.Equal(t, int64(10), d.Stats().Inserted.Load())

	assert.False(t, d.Publish(NewRecord(50, sampleResult())))
	assert.Equal(t, int64(1), d.Stats().Dropped.Load())
}

func TestDispatcherCountsFailures(t *testing.T) {
	store := &memoryStore{err: errors.New("connection refused")}
	d := NewDispatcher(store, "memory", 4, time.Second)

	assert.True(t, d.Publish(NewRecord(70, sampleResult())))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int64(1), d.Stats().Failed.Load())
	assert.Zero(t, d.Stats().Inserted.Load())
}

func TestDispatcherNeverBlocks(t *testing.T) {
	store := &memoryStore{block: make(chan struct{})}
	d := NewDispatcher(store, "memory", 1, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			d.Publish(NewRecord(60, sampleResult()))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled store")
	}
	assert.Positive(t, d.Stats().Dropped.Load())

	close(store.block)
	require.NoError(t, d.Close(context.Background()))
	stats := d.Stats()
	assert.Equal(t, int64(20), stats.Published.Load()+stats.Dropped.Load())
	assert.Equal(t, stats.Published.Load(), stats.Inserted.Load())
}

func TestDispatcherCloseHonoursContext(t *testing.T) {
	store := &memoryStore{block: make(chan struct{})}
	defer close(store.block)
	d := NewDispatcher(store, "memory", 1, time.Minute)
	d.Publish(NewRecord(60, sampleResult()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantNop bool
		wantErr bool
	}{
		{name: "mongo without uri", cfg: Config{Backend: BackendMongo}, wantNop: true},
		{name: "default backend without uri", cfg: Config{}, wantNop: true},
		{name: "scylla without contact points", cfg: Config{Backend: BackendScylla}, wantNop: true},
		{name: "disabled", cfg: Config{Backend: BackendNone}, wantNop: true},
		{name: "unknown", cfg: Config{Backend: "dynamodb"}, wantErr: true},
		{name: "malformed mongo uri", cfg: Config{MongoURI: "not-a-uri"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(ctx, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNop {
				assert.IsType(t, &NopStore{}, store)
				assert.NoError(t, store.Insert(ctx, NewRecord(80, sampleResult())))
			}
		})
	}
}

func TestClusterConfig(t *testing.T) {
	_, err := ClusterConfig(Config{ScyllaContactPoints: []string{"10.0.0.1"}})
	assert.Error(t, err)

	cluster, err := ClusterConfig(Config{
		ScyllaContactPoints: []string{"10.0.0.1", "10.0.0.2"},
		ScyllaKeyspace:      "flowselect",
		ScyllaPort:          9142,
		ScyllaTimeout:       time.Second,
		ScyllaUsername:      "app",
		ScyllaPassword:      "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cluster.Hosts)
	assert.Equal(t, "flowselect", cluster.Keyspace)
	assert.Equal(t, 9142, cluster.Port)
	assert.Equal(t, time.Second, cluster.Timeout)
	assert.Equal(t, gocql.PasswordAuthenticator{Username: "app", Password: "secret"}, cluster.Authenticator)
}
