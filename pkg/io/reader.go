// Package io provides input/output utilities for flow datasets.
package io

import (
	"context"
	"io"
)

// ObjectReader fetches a dataset object from a blob store.
type ObjectReader interface {
	// ReadObject returns the full contents of object in bucket.
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)

	// Close releases resources.
	Close() error
}

// FeatureExtractor turns raw capture data into numeric feature vectors.
type FeatureExtractor interface {
	// Extract reads r to the end and returns one feature vector per record.
	Extract(r io.Reader) ([][]float64, error)

	// FeatureNames returns the names of extracted features.
	FeatureNames() []string
}
