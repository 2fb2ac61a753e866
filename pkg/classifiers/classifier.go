// Package classifiers provides supervised classification algorithms.
package classifiers

import "errors"

// ErrNotTrained is returned when a model is used before Fit or Load.
var ErrNotTrained = errors.New("model not trained")

// Classifier is the common interface for all supervised classifiers.
type Classifier interface {
	// Fit trains the classifier.
	// X is a 2D slice where each row is a sample and each column is a feature.
	// y holds encoded class ids in [0, nClasses).
	Fit(X [][]float64, y []int) error

	// Predict returns the predicted class id for every row of X.
	Predict(X [][]float64) ([]int, error)

	// FeatureImportances returns one non-negative score per feature, summing to 1.
	FeatureImportances() ([]float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Factory builds a fresh, untrained classifier.
type Factory func() Classifier

// Config holds common configuration for ensemble classifiers.
type Config struct {
	// NEstimators is the number of trees in the ensemble.
	NEstimators int
	// RandomSeed for reproducibility.
	RandomSeed int64
	// Jobs bounds the number of trees built concurrently. Zero means one per CPU.
	Jobs int
}

// DefaultConfig returns the hyperparameters used by the analysis endpoint.
func DefaultConfig() Config {
	return Config{
		NEstimators: 50,
		RandomSeed:  42,
	}
}
