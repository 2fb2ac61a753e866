// Package selection ranks flow features by Random Forest importance and
// scores a model retrained on the most relevant subset.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hed1ad/flowselect/pkg/classifiers"
	"github.com/hed1ad/flowselect/pkg/classifiers/forest"
	"github.com/hed1ad/flowselect/pkg/dataset"
	"github.com/hed1ad/flowselect/pkg/metrics"
)

// ErrPipeline wraps any training, prediction or scoring failure.
var ErrPipeline = errors.New("pipeline error")

// DefaultTopK is the size of the reduced feature set.
const DefaultTopK = 10

// scoreDecimals is the rounding applied to every reported F1.
const scoreDecimals = 4

// Result is the outcome of one feature selection run.
type Result struct {
	F1Validation        float64  `json:"f1_score_validation" bson:"f1_score_validation"`
	F1Training          float64  `json:"f1_score_training" bson:"f1_score_training"`
	FeaturesAsc         []string `json:"features_asc" bson:"features_asc"`
	TopFeaturesDesc     []string `json:"top_10_features_desc" bson:"top_10_features_desc"`
	F1ValidationReduced float64  `json:"f1_score_validation_reduced" bson:"f1_score_validation_reduced"`
	F1TrainingReduced   float64  `json:"f1_score_training_reduced" bson:"f1_score_training_reduced"`
	TrainSize           int      `json:"train_size" bson:"train_size"`
	ValidationSize      int      `json:"validation_size" bson:"validation_size"`
}

// Pipeline trains the full and reduced models.
type Pipeline struct {
	newClassifier classifiers.Factory
	topK          int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopK sets how many features the reduced model keeps.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		p.topK = k
	}
}

// WithClassifier sets the factory used for both training passes.
func WithClassifier(f classifiers.Factory) Option {
	return func(p *Pipeline) {
		p.newClassifier = f
	}
}

// New creates a Pipeline. By default it uses a 50-tree forest seeded with 42.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		newClassifier: forest.Factory(forest.FromConfig(classifiers.DefaultConfig())...),
		topK:          DefaultTopK,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.topK < 1 {
		p.topK = DefaultTopK
	}
	return p
}

// Run fits a classifier on train, ranks its feature importances, retrains
// on the top features and reports weighted F1 for both models.
func (p *Pipeline) Run(ctx context.Context, train dataset.Matrix, trainLabels []string, val dataset.Matrix, valLabels []string) (Result, error) {
	if train.Len() != len(trainLabels) || val.Len() != len(valLabels) {
		return Result{}, fmt.Errorf("%w: feature rows and labels differ in length", ErrPipeline)
	}
	if train.Len() == 0 || val.Len() == 0 {
		return Result{}, fmt.Errorf("%w: training and validation sets must be non-empty", ErrPipeline)
	}

	enc := dataset.NewEncoder(trainLabels, valLabels)
	yTrain, err := enc.Encode(trainLabels)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	yVal, err := enc.Encode(valLabels)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	full, err := p.fit(ctx, train, yTrain)
	if err != nil {
		return Result{}, err
	}

	importances, err := full.FeatureImportances()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	asc, desc := Rank(train.Names, importances)
	top := desc[:min(p.topK, len(desc))]

	f1Val, f1Train, err := p.score(full, train, yTrain, val, yVal)
	if err != nil {
		return Result{}, err
	}

	trainReduced, err := train.Project(top)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	valReduced, err := val.Project(top)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	reduced, err := p.fit(ctx, trainReduced, yTrain)
	if err != nil {
		return Result{}, err
	}
	f1ValReduced, f1TrainReduced, err := p.score(reduced, trainReduced, yTrain, valReduced, yVal)
	if err != nil {
		return Result{}, err
	}

	return Result{
		F1Validation:        metrics.Round(f1Val, scoreDecimals),
		F1Training:          metrics.Round(f1Train, scoreDecimals),
		FeaturesAsc:         asc,
		TopFeaturesDesc:     append([]string(nil), top...),
		F1ValidationReduced: metrics.Round(f1ValReduced, scoreDecimals),
		F1TrainingReduced:   metrics.Round(f1TrainReduced, scoreDecimals),
		TrainSize:           train.Len(),
		ValidationSize:      val.Len(),
	}, nil
}

func (p *Pipeline) fit(ctx context.Context, m dataset.Matrix, y []int) (classifiers.Classifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	clf := p.newClassifier()
	if err := clf.Fit(m.Rows, y); err != nil {
		return nil, fmt.Errorf("%w: fit: %w", ErrPipeline, err)
	}
	return clf, nil
}

// score returns the validation and training weighted F1 of clf.
func (p *Pipeline) score(clf classifiers.Classifier, train dataset.Matrix, yTrain []int, val dataset.Matrix, yVal []int) (float64, float64, error) {
	predVal, err := clf.Predict(val.Rows)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: predict: %w", ErrPipeline, err)
	}
	f1Val, err := metrics.WeightedF1(yVal, predVal)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	predTrain, err := clf.Predict(train.Rows)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: predict: %w", ErrPipeline, err)
	}
	f1Train, err := metrics.WeightedF1(yTrain, predTrain)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrPipeline, err)
	}

	return f1Val, f1Train, nil
}

// Rank orders names by importance ascending and descending. Both sorts are
// stable, so ties keep the original column order in either direction.
func Rank(names []string, importances []float64) (asc, desc []string) {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool { return importances[order[a]] < importances[order[b]] })
	asc = make([]string, len(order))
	for i, j := range order {
		asc[i] = names[j]
	}

	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return importances[order[a]] > importances[order[b]] })
	desc = make([]string, len(order))
	for i, j := range order {
		desc[i] = names[j]
	}

	return asc, desc
}
