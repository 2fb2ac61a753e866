package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/flowselect/pkg/classifiers/forest"
	flowio "github.com/hed1ad/flowselect/pkg/io"
	"github.com/hed1ad/flowselect/pkg/io/csv"
	"github.com/hed1ad/flowselect/pkg/io/objectstore"
	"github.com/hed1ad/flowselect/pkg/partition"
	"github.com/hed1ad/flowselect/pkg/selection"
)

// flowCSV renders n labelled flows with the given number of features; the
// first two features depend on the class.
func flowCSV(n, features int, label string) []byte {
	classes := []string{"benign", "adware", "scareware"}
	rng := rand.New(rand.NewSource(11))

	var b strings.Builder
	for j := 0; j < features; j++ {
		fmt.Fprintf(&b, "f%02d,", j)
	}
	b.WriteString(label + "\n")
	for i := 0; i < n; i++ {
		c := i % len(classes)
		for j := 0; j < features; j++ {
			v := rng.NormFloat64()
			if j < 2 {
				v += float64(c) * 4
			}
			fmt.Fprintf(&b, "%.4f,", v)
		}
		b.WriteString(classes[c] + "\n")
	}
	return []byte(b.String())
}

type memoryReader struct {
	data   []byte
	err    error
	block  bool
	reads  atomic.Int32
	closed atomic.Int32
}

func (m *memoryReader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	m.reads.Add(1)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.data, m.err
}

func (m *memoryReader) Close() error {
	m.closed.Add(1)
	return nil
}

func openerFor(r flowio.ObjectReader, err error) LoaderOption {
	return WithOpener(func(context.Context, objectstore.Config) (flowio.ObjectReader, error) {
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}

func validConfig() LoaderConfig {
	return LoaderConfig{
		Store:  objectstore.Config{CredentialsJSON: `{"type":"service_account"}`},
		Bucket: "flows",
		Object: "TotalFeatures-ISCXFlowMeter.csv.gz",
	}
}

func TestLoaderValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LoaderConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*LoaderConfig) {}},
		{name: "missing credentials", mutate: func(c *LoaderConfig) { c.Store.CredentialsJSON = "" }, wantErr: "credentials"},
		{name: "missing bucket", mutate: func(c *LoaderConfig) { c.Bucket = "" }, wantErr: "bucket name"},
		{name: "missing object", mutate: func(c *LoaderConfig) { c.Object = "" }, wantErr: "object name"},
		{name: "s3 without keys", mutate: func(c *LoaderConfig) { c.Store.Provider = objectstore.ProviderS3 }, wantErr: "credentials"},
		{name: "file provider needs no credentials", mutate: func(c *LoaderConfig) {
			c.Store = objectstore.Config{Provider: objectstore.ProviderFile}
		}},
		{name: "unknown provider", mutate: func(c *LoaderConfig) { c.Store.Provider = "ftp" }, wantErr: "ftp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := NewLoader(cfg).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoaderLoad(t *testing.T) {
	payload, err := csv.Compress(flowCSV(30, 4, "calss"), csv.CodecGzip)
	require.NoError(t, err)

	reader := &memoryReader{data: payload}
	l := NewLoader(validConfig(), openerFor(reader, nil))

	df, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, df.Nrow())
	assert.Equal(t, 5, df.Ncol())

	_, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), reader.reads.Load(), "every load refetches")
	assert.Equal(t, int32(2), reader.closed.Load())
}

func TestLoaderLoadErrors(t *testing.T) {
	good := flowCSV(12, 3, "calss")

	tests := []struct {
		name    string
		cfg     LoaderConfig
		reader  *memoryReader
		openErr error
		want    error
	}{
		{
			name: "missing credentials",
			cfg: func() LoaderConfig {
				c := validConfig()
				c.Store.CredentialsJSON = ""
				return c
			}(),
			reader: &memoryReader{data: good},
			want:   ErrConfiguration,
		},
		{
			name:    "client creation fails",
			cfg:     validConfig(),
			openErr: errors.New("invalid credentials JSON format"),
			want:    ErrLoad,
		},
		{
			name:   "object missing",
			cfg:    validConfig(),
			reader: &memoryReader{err: objectstore.ErrObjectNotFound},
			want:   objectstore.ErrObjectNotFound,
		},
		{
			name:   "corrupt payload",
			cfg:    validConfig(),
			reader: &memoryReader{data: []byte{0x1f, 0x8b, 0x00}},
			want:   ErrLoad,
		},
		{
			name:   "empty dataset",
			cfg:    validConfig(),
			reader: &memoryReader{data: []byte{}},
			want:   csv.ErrEmpty,
		},
		{
			name:   "missing label column",
			cfg:    validConfig(),
			reader: &memoryReader{data: flowCSV(12, 3, "label")},
			want:   ErrLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.cfg, openerFor(tt.reader, tt.openErr)).Load(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoaderTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Timeout = 20 * time.Millisecond

	_, err := NewLoader(cfg, openerFor(&memoryReader{block: true}, nil)).Load(context.Background())
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type staticLoader struct {
	df  dataframe.DataFrame
	err error
}

func (s staticLoader) Load(context.Context) (dataframe.DataFrame, error) {
	return s.df, s.err
}

func testPipeline() ServiceOption {
	return WithPipeline(selection.New(selection.WithClassifier(
		forest.Factory(forest.WithTrees(10), forest.WithSeed(42)),
	)))
}

func TestServiceAnalyze(t *testing.T) {
	df, err := csv.Decode(flowCSV(100, 14, "calss"), csv.WithLabel("calss"))
	require.NoError(t, err)

	svc := NewService(staticLoader{df: df}, testPipeline())

	res, err := svc.Analyze(context.Background(), 80)
	require.NoError(t, err)
	assert.Equal(t, 80, res.TrainSize)
	assert.Equal(t, 10, res.ValidationSize)
	assert.Len(t, res.FeaturesAsc, 14)
	assert.Len(t, res.TopFeaturesDesc, 10)
	assert.ElementsMatch(t, []string{"f00", "f01"}, res.TopFeaturesDesc[:2])

	again, err := svc.Analyze(context.Background(), 80)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestServiceAnalyzeErrors(t *testing.T) {
	df, err := csv.Decode(flowCSV(30, 4, "calss"), csv.WithLabel("calss"))
	require.NoError(t, err)

	t.Run("load failure", func(t *testing.T) {
		svc := NewService(staticLoader{err: fmt.Errorf("%w: missing credentials", ErrConfiguration)}, testPipeline())
		_, err := svc.Analyze(context.Background(), 80)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("full training percentage", func(t *testing.T) {
		svc := NewService(staticLoader{df: df}, testPipeline())
		_, err := svc.Analyze(context.Background(), 100)
		assert.ErrorIs(t, err, partition.ErrPartition)
	})

	t.Run("wrong label column", func(t *testing.T) {
		svc := NewService(staticLoader{df: df}, testPipeline(), WithLabel("class"))
		_, err := svc.Analyze(context.Background(), 80)
		assert.ErrorIs(t, err, partition.ErrPartition)
	})
}
