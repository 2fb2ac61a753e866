package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hed1ad/flowselect/internal/config"
	"github.com/hed1ad/flowselect/internal/logger"
	"github.com/hed1ad/flowselect/pkg/analysis"
	"github.com/hed1ad/flowselect/pkg/classifiers"
	"github.com/hed1ad/flowselect/pkg/classifiers/forest"
	"github.com/hed1ad/flowselect/pkg/io/objectstore"
	"github.com/hed1ad/flowselect/pkg/selection"
)

// app carries state shared by every subcommand.
type app struct {
	envFile string
	cfg     *config.Configs
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "flowselect",
		Short:         "Random Forest feature selection for network flow datasets",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger.Init(cfg.AppName, cfg.AppLogLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional .env file with configuration")

	root.AddCommand(
		newServeCmd(a),
		newAnalyzeCmd(a),
		newPackCmd(a),
		newExtractCmd(a),
	)
	return root
}

func (a *app) storeConfig() objectstore.Config {
	return objectstore.Config{
		Provider:        a.cfg.StorageProvider,
		CredentialsJSON: a.cfg.GoogleCredentialsJSON,
		S3: objectstore.S3Config{
			AccessKeyID:     a.cfg.S3AccessKeyID,
			SecretAccessKey: a.cfg.S3SecretAccessKey,
			Region:          a.cfg.S3Region,
			Endpoint:        a.cfg.S3Endpoint,
		},
		Root: a.cfg.LocalStorageRoot,
	}
}

func (a *app) loaderConfig() analysis.LoaderConfig {
	return analysis.LoaderConfig{
		Store:   a.storeConfig(),
		Bucket:  a.cfg.GCSBucketName,
		Object:  a.cfg.GCSObjectName,
		Label:   a.cfg.DatasetLabelColumn,
		Timeout: a.cfg.StorageTimeout(),
	}
}

func (a *app) service(loader analysis.DatasetLoader) *analysis.Service {
	model := classifiers.Config{
		NEstimators: a.cfg.ModelNEstimators,
		RandomSeed:  a.cfg.ModelRandomSeed,
		Jobs:        a.cfg.ModelJobs,
	}
	pipeline := selection.New(
		selection.WithClassifier(forest.Factory(forest.FromConfig(model)...)),
		selection.WithTopK(a.cfg.SelectionTopK),
	)
	return analysis.NewService(loader,
		analysis.WithPipeline(pipeline),
		analysis.WithLabel(a.cfg.DatasetLabelColumn),
		analysis.WithSplitSeed(a.cfg.ModelRandomSeed),
	)
}

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
