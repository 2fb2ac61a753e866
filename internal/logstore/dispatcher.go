package logstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hed1ad/flowselect/internal/metric"
)

// Statistics counts dispatcher outcomes.
type Statistics struct {
	Published atomic.Int64 // records accepted into the queue
	Inserted  atomic.Int64 // records the store acknowledged
	Failed    atomic.Int64 // inserts that returned an error
	Dropped   atomic.Int64 // records rejected because the queue was full or closed
}

// Dispatcher hands records to a Store on a background goroutine so that a
// slow or failing store never delays or fails the caller.
type Dispatcher struct {
	store   Store
	backend string
	timeout time.Duration
	queue   chan Record

	stats Statistics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a worker draining a queue of size queueSize into store.
// Each insert is bounded by timeout.
func NewDispatcher(store Store, backend string, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		store:   store,
		backend: backend,
		timeout: timeout,
		queue:   make(chan Record, queueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues rec without blocking. It reports whether rec was accepted.
func (d *Dispatcher) Publish(rec Record) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(rec, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- rec:
		d.stats.Published.Add(1)
		return true
	default:
		d.drop(rec, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(rec Record, reason string) {
	d.stats.Dropped.Add(1)
	metric.Incr(metric.LogStoreDropCount, metric.BuildTag(metric.TagBackend, d.backend))
	log.Warn().Str("record", rec.ID).Msgf("analysis log dropped: %s", reason)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for rec := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.store.Insert(ctx, rec)
		cancel()

		metric.Incr(metric.LogStoreInsertCount, []string{
			metric.TagAsString(metric.TagBackend, d.backend),
			metric.StatusTag(err),
		})
		if err != nil {
			d.stats.Failed.Add(1)
			log.Error().Err(err).Str("record", rec.ID).Msg("failed to store analysis log")
			continue
		}
		d.stats.Inserted.Add(1)
		log.Debug().Str("record", rec.ID).Msg("analysis log stored")
	}
}

// Close stops accepting records, waits for queued ones to be written or
// for ctx to expire, then closes the store.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.store.Close(ctx)
}

// Stats exposes the dispatcher counters.
func (d *Dispatcher) Stats() *Statistics {
	return &d.stats
}
