package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config represents S3 configuration
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string // Optional for custom endpoints like MinIO
}

// S3Reader reads objects from S3 or an S3-compatible store.
type S3Reader struct {
	client *s3.Client
}

// NewS3Reader creates a reader with static credentials.
func NewS3Reader(ctx context.Context, s3Config S3Config) (*S3Reader, error) {
	if s3Config.AccessKeyID == "" {
		return nil, fmt.Errorf("access key ID cannot be empty")
	}
	if s3Config.SecretAccessKey == "" {
		return nil, fmt.Errorf("secret access key cannot be empty")
	}
	if s3Config.Region == "" {
		return nil, fmt.Errorf("region cannot be empty")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3Config.AccessKeyID,
			s3Config.SecretAccessKey,
			"",
		)),
		config.WithRegion(s3Config.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if s3Config.Endpoint != "" {
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s3Config.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(cfg)
	}
	return &S3Reader{client: client}, nil
}

// ReadObject downloads bucket/object into memory.
func (s *S3Reader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, object, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// WriteObject uploads data to bucket/object.
func (s *S3Reader) WriteObject(ctx context.Context, bucket, object string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no resources.
func (s *S3Reader) Close() error {
	return nil
}
