package forest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/flowselect/pkg/classifiers"
)

func TestNewRandomForest(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantNTrees int
		wantSeed   int64
	}{
		{
			name:       "default configuration",
			opts:       nil,
			wantNTrees: 100,
			wantSeed:   42,
		},
		{
			name:       "custom trees",
			opts:       []Option{WithTrees(50)},
			wantNTrees: 50,
			wantSeed:   42,
		},
		{
			name:       "from shared config",
			opts:       FromConfig(classifiers.Config{NEstimators: 7, RandomSeed: 3}),
			wantNTrees: 7,
			wantSeed:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.NTrees())
			assert.Equal(t, tt.wantSeed, f.seed)
			assert.Positive(t, f.jobs)
		})
	}
}

func TestFit(t *testing.T) {
	X, y := generateTestData(120, 4, 3)

	tests := []struct {
		name    string
		X       [][]float64
		y       []int
		wantErr bool
	}{
		{
			name:    "empty data",
			X:       [][]float64{},
			y:       []int{},
			wantErr: true,
		},
		{
			name:    "length mismatch",
			X:       [][]float64{{1, 2}, {3, 4}},
			y:       []int{0},
			wantErr: true,
		},
		{
			name:    "ragged rows",
			X:       [][]float64{{1, 2}, {3}},
			y:       []int{0, 1},
			wantErr: true,
		},
		{
			name:    "negative class id",
			X:       [][]float64{{1, 2}, {3, 4}},
			y:       []int{0, -1},
			wantErr: true,
		},
		{
			name:    "single sample",
			X:       [][]float64{{1.0, 2.0, 3.0}},
			y:       []int{0},
			wantErr: false,
		},
		{
			name:    "separable data",
			X:       X,
			y:       y,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithTrees(10), WithSeed(42))
			err := f.Fit(tt.X, tt.y)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.True(t, f.trained)
				assert.Len(t, f.trees, 10)
			}
		})
	}
}

func TestPredict(t *testing.T) {
	X, y := generateTestData(300, 5, 3)
	f := New(WithTrees(25), WithSeed(42))
	require.NoError(t, f.Fit(X, y))

	t.Run("fits training data", func(t *testing.T) {
		pred, err := f.Predict(X)
		require.NoError(t, err)
		require.Len(t, pred, len(y))

		correct := 0
		for i := range pred {
			if pred[i] == y[i] {
				correct++
			}
		}
		assert.Greater(t, float64(correct)/float64(len(y)), 0.95)
	})

	t.Run("probabilities sum to one", func(t *testing.T) {
		probas, err := f.PredictProba(X[:10])
		require.NoError(t, err)
		for _, p := range probas {
			require.Len(t, p, 3)
			sum := 0.0
			for _, v := range p {
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	})

	t.Run("wrong feature count", func(t *testing.T) {
		_, err := f.Predict([][]float64{{1, 2}})
		assert.Error(t, err)
	})

	t.Run("predict before fit", func(t *testing.T) {
		_, err := New().Predict(X)
		assert.ErrorIs(t, err, classifiers.ErrNotTrained)
	})
}

func TestFeatureImportances(t *testing.T) {
	// Only feature 2 carries the label; the others are noise.
	rng := rand.New(rand.NewSource(7))
	X := make([][]float64, 400)
	y := make([]int, 400)
	for i := range X {
		y[i] = i % 2
		X[i] = []float64{rng.Float64(), rng.Float64(), float64(y[i]) + rng.Float64()*0.1, rng.Float64()}
	}

	f := New(WithTrees(30), WithSeed(42))
	require.NoError(t, f.Fit(X, y))

	imp, err := f.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 4)

	sum := 0.0
	for _, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	for j, v := range imp {
		if j != 2 {
			assert.Greater(t, imp[2], v)
		}
	}

	t.Run("pure labels give uniform scores", func(t *testing.T) {
		g := New(WithTrees(5))
		require.NoError(t, g.Fit([][]float64{{1, 2}, {3, 4}, {5, 6}}, []int{1, 1, 1}))
		imp, err := g.FeatureImportances()
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.5}, imp)
	})

	t.Run("before fit", func(t *testing.T) {
		_, err := New().FeatureImportances()
		assert.ErrorIs(t, err, classifiers.ErrNotTrained)
	})
}

func TestDeterminism(t *testing.T) {
	X, y := generateTestData(200, 6, 4)

	a := New(WithTrees(20), WithSeed(42), WithJobs(1))
	b := New(WithTrees(20), WithSeed(42), WithJobs(8))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	impA, err := a.FeatureImportances()
	require.NoError(t, err)
	impB, err := b.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, impA, impB)

	predA, err := a.Predict(X)
	require.NoError(t, err)
	predB, err := b.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, predA, predB)
}

func TestSaveLoad(t *testing.T) {
	X, y := generateTestData(200, 4, 2)
	original := New(WithTrees(15), WithSeed(42))
	require.NoError(t, original.Fit(X, y))

	originalPred, err := original.Predict(X)
	require.NoError(t, err)

	data, err := original.Save()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	loaded := New()
	require.NoError(t, loaded.Load(data))

	loadedPred, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, originalPred, loadedPred)

	origImp, _ := original.FeatureImportances()
	loadedImp, _ := loaded.FeatureImportances()
	assert.Equal(t, origImp, loadedImp)

	t.Run("save before fit", func(t *testing.T) {
		_, err := New().Save()
		assert.Error(t, err)
	})
}

func BenchmarkFit(b *testing.B) {
	X, y := generateTestData(5000, 20, 4)
	f := New(WithTrees(50))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(X, y)
	}
}

func BenchmarkPredict(b *testing.B) {
	X, y := generateTestData(5000, 20, 4)
	f := New(WithTrees(50))
	f.Fit(X, y)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Predict(X)
	}
}

// generateTestData draws gaussian blobs, one centre per class.
func generateTestData(n, features, classes int) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(1))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		c := i % classes
		y[i] = c
		X[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			X[i][j] = float64(c)*4 + rng.NormFloat64()
		}
	}
	return X, y
}
