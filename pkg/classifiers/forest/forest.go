// Package forest implements a Random Forest classifier built from CART trees.
package forest

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/hed1ad/flowselect/pkg/classifiers"
)

// predictChunk is the number of rows scored per prediction task.
const predictChunk = 1024

// RandomForest is a bagged ensemble of gini decision trees.
type RandomForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees          int
	maxFeatures     int // 0 => floor(sqrt(nFeatures))
	maxDepth        int // 0 => unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	jobs            int
	seed            int64

	// Trained model
	trees       []*tree
	nFeatures   int
	nClasses    int
	importances []float64
	trained     bool
}

// Option configures a RandomForest.
type Option func(*RandomForest)

// WithTrees sets the number of trees.
func WithTrees(n int) Option {
	return func(f *RandomForest) {
		f.nTrees = n
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *RandomForest) {
		f.seed = seed
	}
}

// WithJobs bounds how many trees are grown concurrently.
func WithJobs(n int) Option {
	return func(f *RandomForest) {
		f.jobs = n
	}
}

// WithMaxFeatures sets the number of candidate features drawn at every split.
func WithMaxFeatures(n int) Option {
	return func(f *RandomForest) {
		f.maxFeatures = n
	}
}

// WithMaxDepth limits tree depth. Zero grows trees until leaves are pure.
func WithMaxDepth(d int) Option {
	return func(f *RandomForest) {
		f.maxDepth = d
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForest) {
		f.minSamplesLeaf = n
	}
}

// FromConfig maps the shared classifier configuration onto options.
func FromConfig(cfg classifiers.Config) []Option {
	return []Option{
		WithTrees(cfg.NEstimators),
		WithSeed(cfg.RandomSeed),
		WithJobs(cfg.Jobs),
	}
}

// New creates a new RandomForest with the given options.
func New(opts ...Option) *RandomForest {
	f := &RandomForest{
		nTrees:          100,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		seed:            42,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.nTrees < 1 {
		f.nTrees = 100
	}
	if f.jobs <= 0 {
		f.jobs = runtime.NumCPU()
	}
	if f.minSamplesLeaf < 1 {
		f.minSamplesLeaf = 1
	}

	return f
}

// Factory returns a classifiers.Factory producing identically configured forests.
func Factory(opts ...Option) classifiers.Factory {
	return func() classifiers.Classifier {
		return New(opts...)
	}
}

// Fit trains the forest on the provided rows and class ids.
func (f *RandomForest) Fit(X [][]float64, y []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(X) == 0 {
		return errors.New("empty training data")
	}
	if len(X) != len(y) {
		return errors.New("rows and labels length mismatch")
	}
	if f.nTrees < 1 {
		return errors.New("forest needs at least one tree")
	}

	nFeatures := len(X[0])
	if nFeatures == 0 {
		return errors.New("training data has no features")
	}

	nClasses := 0
	for _, label := range y {
		if label < 0 {
			return errors.New("class ids must be non-negative")
		}
		if label+1 > nClasses {
			nClasses = label + 1
		}
	}

	// Column-major copy; split search scans one feature at a time.
	cols := make([][]float64, nFeatures)
	for j := range cols {
		cols[j] = make([]float64, len(X))
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return errors.New("inconsistent number of features in rows")
		}
		for j, v := range row {
			if math.IsNaN(v) {
				v = 0
			}
			cols[j][i] = v
		}
	}

	maxFeatures := f.maxFeatures
	if maxFeatures <= 0 || maxFeatures > nFeatures {
		maxFeatures = int(math.Sqrt(float64(nFeatures)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	// Seeds are drawn up front so the result does not depend on scheduling.
	rng := rand.New(rand.NewSource(f.seed))
	seeds := make([]int64, f.nTrees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := make([]*tree, f.nTrees)
	var g errgroup.Group
	g.SetLimit(f.jobs)
	for i := 0; i < f.nTrees; i++ {
		i := i
		g.Go(func() error {
			b := &builder{
				cols:            cols,
				y:               y,
				nClasses:        nClasses,
				maxFeatures:     maxFeatures,
				maxDepth:        f.maxDepth,
				minSamplesSplit: f.minSamplesSplit,
				minSamplesLeaf:  f.minSamplesLeaf,
				rng:             rand.New(rand.NewSource(seeds[i])),
			}
			trees[i] = b.grow(bootstrap(len(y), b.rng))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.trees = trees
	f.nFeatures = nFeatures
	f.nClasses = nClasses
	f.importances = meanImportances(trees, nFeatures)
	f.trained = true

	return nil
}

// bootstrap draws n row indices with replacement.
func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

// meanImportances averages the per-tree normalised impurity decrease.
// Trees that never split are skipped; if none split the scores are uniform.
func meanImportances(trees []*tree, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	used := 0
	for _, t := range trees {
		total := floats.Sum(t.Importance)
		if total <= 0 {
			continue
		}
		scaled := make([]float64, nFeatures)
		copy(scaled, t.Importance)
		floats.Scale(1/total, scaled)
		floats.Add(out, scaled)
		used++
	}

	total := floats.Sum(out)
	if used == 0 || total <= 0 {
		for i := range out {
			out[i] = 1 / float64(nFeatures)
		}
		return out
	}
	floats.Scale(1/total, out)
	return out
}

// Predict returns the class with the highest mean probability across trees.
// Ties resolve to the lowest class id.
func (f *RandomForest) Predict(X [][]float64) ([]int, error) {
	probas, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}

	out := make([]int, len(probas))
	for i, p := range probas {
		best := 0
		for c := 1; c < len(p); c++ {
			if p[c] > p[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out, nil
}

// PredictProba returns per-class probabilities averaged over all trees.
func (f *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, classifiers.ErrNotTrained
	}
	for _, row := range X {
		if len(row) != f.nFeatures {
			return nil, errors.New("feature count does not match the trained model")
		}
	}

	out := make([][]float64, len(X))
	var g errgroup.Group
	g.SetLimit(f.jobs)
	for start := 0; start < len(X); start += predictChunk {
		start := start
		end := min(start+predictChunk, len(X))
		g.Go(func() error {
			for i := start; i < end; i++ {
				p := make([]float64, f.nClasses)
				for _, t := range f.trees {
					floats.Add(p, t.leaf(X[i], f.nClasses))
				}
				floats.Scale(1/float64(len(f.trees)), p)
				out[i] = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// FeatureImportances returns the mean decrease in impurity per feature.
func (f *RandomForest) FeatureImportances() ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, classifiers.ErrNotTrained
	}

	out := make([]float64, len(f.importances))
	copy(out, f.importances)
	return out, nil
}

// NTrees returns the configured ensemble size.
func (f *RandomForest) NTrees() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nTrees
}

// Save serializes the trained model.
func (f *RandomForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, classifiers.ErrNotTrained
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(f.nTrees); err != nil {
		return nil, err
	}
	if err := enc.Encode(f.seed); err != nil {
		return nil, err
	}
	if err := enc.Encode(f.nFeatures); err != nil {
		return nil, err
	}
	if err := enc.Encode(f.nClasses); err != nil {
		return nil, err
	}
	if err := enc.Encode(f.importances); err != nil {
		return nil, err
	}
	if err := enc.Encode(f.trees); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *RandomForest) Load(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dec := gob.NewDecoder(bytes.NewBuffer(data))

	if err := dec.Decode(&f.nTrees); err != nil {
		return err
	}
	if err := dec.Decode(&f.seed); err != nil {
		return err
	}
	if err := dec.Decode(&f.nFeatures); err != nil {
		return err
	}
	if err := dec.Decode(&f.nClasses); err != nil {
		return err
	}
	if err := dec.Decode(&f.importances); err != nil {
		return err
	}
	if err := dec.Decode(&f.trees); err != nil {
		return err
	}

	f.trained = true
	return nil
}
