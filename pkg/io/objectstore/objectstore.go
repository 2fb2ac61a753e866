package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flowio "github.com/hed1ad/flowselect/pkg/io"
)

// Providers understood by New.
const (
	ProviderGCS  = "gcs"
	ProviderS3   = "s3"
	ProviderFile = "file"
)

// Writer uploads objects. Used by the pack command.
type Writer interface {
	WriteObject(ctx context.Context, bucket, object string, data []byte) error
}

// ReadWriter is a store that can both fetch and upload objects.
type ReadWriter interface {
	flowio.ObjectReader
	Writer
}

// Config selects and authenticates a provider.
type Config struct {
	Provider        string
	CredentialsJSON string
	S3              S3Config
	// Root is the base directory of the file provider.
	Root string
}

// New creates the store named by cfg.Provider. An empty provider means GCS.
func New(ctx context.Context, cfg Config) (ReadWriter, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGCS:
		return NewGCSReader(ctx, cfg.CredentialsJSON)
	case ProviderS3:
		return NewS3Reader(ctx, cfg.S3)
	case ProviderFile:
		return NewFileReader(cfg.Root), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %q", cfg.Provider)
	}
}

// FileReader serves objects from a local directory laid out as root/bucket/object.
type FileReader struct {
	root string
}

// NewFileReader creates a FileReader rooted at root.
func NewFileReader(root string) *FileReader {
	return &FileReader{root: root}
}

func (f *FileReader) path(bucket, object string) (string, error) {
	p := filepath.Join(f.root, bucket, filepath.FromSlash(object))
	rel, err := filepath.Rel(f.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("object path %q escapes root", object)
	}
	return p, nil
}

// ReadObject reads root/bucket/object.
func (f *FileReader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.path(bucket, object)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, p)
	}
	return data, err
}

// WriteObject writes root/bucket/object, creating directories as needed.
func (f *FileReader) WriteObject(ctx context.Context, bucket, object string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(bucket, object)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Close is a no-op.
func (f *FileReader) Close() error {
	return nil
}

var (
	_ ReadWriter = (*GCSReader)(nil)
	_ ReadWriter = (*S3Reader)(nil)
	_ ReadWriter = (*FileReader)(nil)
)
