package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReader(t *testing.T) {
	ctx := context.Background()
	store := NewFileReader(t.TempDir())

	require.NoError(t, store.WriteObject(ctx, "datasets", "flows/total.csv.gz", []byte("payload")))

	data, err := store.ReadObject(ctx, "datasets", "flows/total.csv.gz")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = store.ReadObject(ctx, "datasets", "missing.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.ReadObject(ctx, "datasets", "../../etc/passwd")
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.ReadObject(cancelled, "datasets", "flows/total.csv.gz")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "file provider", cfg: Config{Provider: ProviderFile, Root: t.TempDir()}},
		{name: "unknown provider", cfg: Config{Provider: "azure"}, wantErr: true},
		{name: "gcs without credentials", cfg: Config{Provider: ProviderGCS}, wantErr: true},
		{name: "gcs with malformed credentials", cfg: Config{CredentialsJSON: "{not json"}, wantErr: true},
		{name: "s3 without keys", cfg: Config{Provider: ProviderS3, S3: S3Config{Region: "eu-west-1"}}, wantErr: true},
		{name: "s3 without region", cfg: Config{Provider: ProviderS3, S3: S3Config{AccessKeyID: "a", SecretAccessKey: "b"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(ctx, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

func TestNewS3ReaderCustomEndpoint(t *testing.T) {
	r, err := NewS3Reader(context.Background(), S3Config{
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
	})
	require.NoError(t, err)
	assert.NotNil(t, r.client)
}
