package analysis

import (
	"context"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/rs/zerolog/log"

	"github.com/hed1ad/flowselect/internal/metric"
	"github.com/hed1ad/flowselect/pkg/dataset"
	"github.com/hed1ad/flowselect/pkg/partition"
	"github.com/hed1ad/flowselect/pkg/selection"
)

// DatasetLoader supplies a fresh copy of the dataset.
type DatasetLoader interface {
	Load(ctx context.Context) (dataframe.DataFrame, error)
}

// Service runs one feature selection analysis per call.
type Service struct {
	loader   DatasetLoader
	pipeline *selection.Pipeline
	label    string
	seed     int64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPipeline replaces the default feature selection pipeline.
func WithPipeline(p *selection.Pipeline) ServiceOption {
	return func(s *Service) {
		s.pipeline = p
	}
}

// WithLabel sets the class column used for stratification.
func WithLabel(label string) ServiceOption {
	return func(s *Service) {
		s.label = label
	}
}

// WithSplitSeed sets the partition shuffle seed.
func WithSplitSeed(seed int64) ServiceOption {
	return func(s *Service) {
		s.seed = seed
	}
}

// NewService creates a Service reading from loader.
func NewService(loader DatasetLoader, opts ...ServiceOption) *Service {
	s := &Service{
		loader:   loader,
		pipeline: selection.New(),
		label:    dataset.DefaultLabel,
		seed:     42,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze loads the dataset, partitions it with trainPercentage percent in
// training, and runs the feature selection pipeline. The test partition is
// computed but not scored.
func (s *Service) Analyze(ctx context.Context, trainPercentage float64) (res selection.Result, err error) {
	start := time.Now()
	defer func() {
		tags := []string{metric.StatusTag(err)}
		metric.Incr(metric.AnalysisCount, tags)
		metric.Timing(metric.AnalysisLatency, time.Since(start), tags)
	}()

	df, err := s.loader.Load(ctx)
	if err != nil {
		return selection.Result{}, err
	}

	train, val, test, err := partition.Split(df, trainPercentage, s.label, partition.WithSeed(s.seed))
	if err != nil {
		return selection.Result{}, err
	}
	log.Debug().
		Int("train", train.Nrow()).
		Int("validation", val.Nrow()).
		Int("test", test.Nrow()).
		Float64("train_percentage", trainPercentage).
		Msg("dataset partitioned")

	trainX, trainY := dataset.SplitLabels(train, s.label)
	valX, valY := dataset.SplitLabels(val, s.label)
	if trainY == nil || valY == nil {
		log.Warn().Str("label", s.label).Msg("label column missing after partition, features returned unchanged")
	}

	trainM, valM := dataset.ToMatrix(trainX), dataset.ToMatrix(valX)
	if trainM.HasNaN() || valM.HasNaN() {
		log.Warn().Msg("dataset contains non-numeric or missing cells, treating them as 0")
	}

	res, err = s.pipeline.Run(ctx, trainM, trainY, valM, valY)
	if err != nil {
		return selection.Result{}, err
	}

	log.Info().
		Float64("train_percentage", trainPercentage).
		Float64("f1_validation", res.F1Validation).
		Float64("f1_validation_reduced", res.F1ValidationReduced).
		Dur("elapsed", time.Since(start)).
		Msgf("analysis complete, top feature %s", first(res.TopFeaturesDesc))
	return res, nil
}

func first(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return names[0]
}
