// Package analysis wires the dataset loader, the partitioner and the
// feature selection pipeline into a single request-scoped operation.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/rs/zerolog/log"

	"github.com/hed1ad/flowselect/internal/metric"
	"github.com/hed1ad/flowselect/pkg/dataset"
	flowio "github.com/hed1ad/flowselect/pkg/io"
	"github.com/hed1ad/flowselect/pkg/io/csv"
	"github.com/hed1ad/flowselect/pkg/io/objectstore"
)

// DefaultStorageTimeout bounds a single dataset download.
const DefaultStorageTimeout = 120 * time.Second

// LoaderConfig locates the dataset object.
type LoaderConfig struct {
	Store   objectstore.Config
	Bucket  string
	Object  string
	Label   string
	Timeout time.Duration
}

// OpenFunc creates the object reader for a store configuration.
type OpenFunc func(ctx context.Context, cfg objectstore.Config) (flowio.ObjectReader, error)

// Loader fetches and decodes the dataset on every call. Nothing is cached.
type Loader struct {
	cfg  LoaderConfig
	open OpenFunc
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOpener replaces the object store constructor.
func WithOpener(open OpenFunc) LoaderOption {
	return func(l *Loader) {
		l.open = open
	}
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig, opts ...LoaderOption) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultStorageTimeout
	}
	if cfg.Label == "" {
		cfg.Label = dataset.DefaultLabel
	}
	l := &Loader{
		cfg: cfg,
		open: func(ctx context.Context, c objectstore.Config) (flowio.ObjectReader, error) {
			return objectstore.New(ctx, c)
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Label returns the class column name.
func (l *Loader) Label() string {
	return l.cfg.Label
}

// Validate checks that credentials and the dataset location are present.
func (l *Loader) Validate() error {
	var missing []string
	switch strings.ToLower(l.cfg.Store.Provider) {
	case "", objectstore.ProviderGCS:
		if l.cfg.Store.CredentialsJSON == "" {
			missing = append(missing, "credentials")
		}
	case objectstore.ProviderS3:
		s3 := l.cfg.Store.S3
		if s3.AccessKeyID == "" || s3.SecretAccessKey == "" || s3.Region == "" {
			missing = append(missing, "credentials")
		}
	case objectstore.ProviderFile:
	default:
		return fmt.Errorf("%w: unsupported storage provider %q", ErrConfiguration, l.cfg.Store.Provider)
	}
	if l.cfg.Bucket == "" {
		missing = append(missing, "bucket name")
	}
	if l.cfg.Object == "" {
		missing = append(missing, "object name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// Load returns the dataset as a DataFrame with the label column typed as string.
func (l *Loader) Load(ctx context.Context) (df dataframe.DataFrame, err error) {
	start := time.Now()
	defer func() {
		tags := []string{metric.StatusTag(err)}
		metric.Incr(metric.DatasetLoadCount, tags)
		metric.Timing(metric.DatasetLoadLatency, time.Since(start), tags)
	}()

	if err := l.Validate(); err != nil {
		return dataframe.DataFrame{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	store, err := l.open(ctx, l.cfg.Store)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer store.Close()

	data, err := store.ReadObject(ctx, l.cfg.Bucket, l.cfg.Object)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	log.Debug().Str("bucket", l.cfg.Bucket).Str("object", l.cfg.Object).Int("bytes", len(data)).Msg("dataset object fetched")

	df, err = csv.Decode(data, csv.WithLabel(l.cfg.Label))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if !dataset.HasColumn(df, l.cfg.Label) {
		return dataframe.DataFrame{}, fmt.Errorf("%w: label column %q not found", ErrLoad, l.cfg.Label)
	}

	log.Info().Int("rows", df.Nrow()).Int("columns", df.Ncol()).Dur("elapsed", time.Since(start)).Msg("dataset loaded")
	return df, nil
}
