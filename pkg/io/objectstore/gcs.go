// Package objectstore reads dataset objects from cloud blob stores.
package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// GCSReader reads objects from Google Cloud Storage.
type GCSReader struct {
	client *storage.Client
}

// NewGCSReader creates a reader authenticated with a service-account JSON document.
func NewGCSReader(ctx context.Context, credentialsJSON string) (*GCSReader, error) {
	if credentialsJSON == "" {
		return nil, fmt.Errorf("credentials JSON string cannot be empty")
	}

	var creds map[string]interface{}
	if err := json.Unmarshal([]byte(credentialsJSON), &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON format: %w", err)
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSReader{client: client}, nil
}

// ReadObject downloads bucket/object into memory.
func (g *GCSReader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// WriteObject uploads data to bucket/object.
func (g *GCSReader) WriteObject(ctx context.Context, bucket, object string, data []byte) error {
	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// Close closes the GCS client.
func (g *GCSReader) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
