// Package metric publishes service counters and timings to statsd.
package metric

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

const (
	ApiRequestCount   = "api_request_count"
	ApiRequestLatency = "api_request_latency"

	DatasetLoadLatency = "dataset_load_latency"
	DatasetLoadCount   = "dataset_load_count"
	AnalysisLatency    = "analysis_latency"
	AnalysisCount      = "analysis_count"

	LogStoreInsertCount = "log_store_insert_count"
	LogStoreDropCount   = "log_store_drop_count"

	TagPath       = "path"
	TagMethod     = "method"
	TagStatusCode = "http_status_code"
	TagStatus     = "status"
	TagBackend    = "backend"
	TagEnv        = "env"
	TagService    = "service"

	TagValueSuccess = "success"
	TagValueFailure = "failure"
)

var (
	mu sync.RWMutex
	// it is safe to use one client from multiple goroutines simultaneously
	statsDClient statsd.ClientInterface = &statsd.NoOpClient{}
	samplingRate                        = 1.0
)

// Init points the package at a statsd agent. An empty address keeps the
// no-op client.
func Init(address, appName, env string, rate float64, opts ...statsd.Option) error {
	if address == "" {
		log.Info().Msg("Statsd address not set, metrics disabled")
		return nil
	}

	opts = append([]statsd.Option{statsd.WithTags([]string{
		TagAsString(TagEnv, env),
		TagAsString(TagService, appName),
	})}, opts...)
	client, err := statsd.New(address, opts...)
	if err != nil {
		return fmt.Errorf("statsd client initialization failed: %w", err)
	}

	mu.Lock()
	statsDClient = client
	if rate > 0 && rate <= 1 {
		samplingRate = rate
	}
	mu.Unlock()

	log.Info().Msgf("Metrics client initialized with address - %s and sampling rate - %f", address, rate)
	return nil
}

// Close flushes and releases the client.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := statsDClient.Close()
	statsDClient = &statsd.NoOpClient{}
	return err
}

func client() (statsd.ClientInterface, float64) {
	mu.RLock()
	defer mu.RUnlock()
	return statsDClient, samplingRate
}

// Timing sends timing information
func Timing(name string, value time.Duration, tags []string) {
	c, rate := client()
	if err := c.Timing(name, value, tags, rate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd timing")
	}
}

// TimingWithStart can be deferred at the top of a function to time it.
func TimingWithStart(name string, start time.Time, tags []string) {
	Timing(name, time.Since(start), tags)
}

// Count increases a counter by value.
func Count(name string, value int64, tags []string) {
	c, rate := client()
	if err := c.Count(name, value, tags, rate); err != nil {
		log.Warn().Err(err).Msg("Error occurred while doing statsd count")
	}
}

// Incr increases a counter by 1.
func Incr(name string, tags []string) {
	Count(name, 1, tags)
}

// TagAsString renders a name:value tag.
func TagAsString(name, value string) string {
	return name + ":" + value
}

// BuildTag renders name/value pairs as tags. An odd trailing name is ignored.
func BuildTag(pairs ...string) []string {
	tags := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tags = append(tags, TagAsString(pairs[i], pairs[i+1]))
	}
	return tags
}

// StatusTag tags an outcome as success or failure.
func StatusTag(err error) string {
	if err != nil {
		return TagAsString(TagStatus, TagValueFailure)
	}
	return TagAsString(TagStatus, TagValueSuccess)
}
