package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hed1ad/flowselect/internal/logstore"
	"github.com/hed1ad/flowselect/internal/metric"
	"github.com/hed1ad/flowselect/internal/server"
	"github.com/hed1ad/flowselect/pkg/analysis"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if port > 0 {
				cfg.AppPort = port
			}

			if err := metric.Init(cfg.StatsdAddress, cfg.AppName, cfg.AppEnv, cfg.AppMetricSamplingRate); err != nil {
				return err
			}
			defer metric.Close()

			ctx := cmd.Context()

			loader := analysis.NewLoader(a.loaderConfig())
			if err := loader.Validate(); err != nil {
				// Requests will fail with a 500 until the environment is fixed.
				log.Warn().Err(err).Msg("dataset storage is not fully configured")
			}

			store, err := logstore.New(ctx, logstore.Config{
				Backend:             cfg.LogStoreBackend,
				MongoURI:            cfg.MongoURI,
				MongoDatabase:       cfg.MongoDatabase,
				MongoCollection:     cfg.MongoCollection,
				ScyllaContactPoints: splitList(cfg.ScyllaContactPoints),
				ScyllaPort:          cfg.ScyllaPort,
				ScyllaKeyspace:      cfg.ScyllaKeyspace,
				ScyllaTimeout:       time.Duration(cfg.ScyllaTimeoutMs) * time.Millisecond,
				ScyllaUsername:      cfg.ScyllaUsername,
				ScyllaPassword:      cfg.ScyllaPassword,
			})
			if err != nil {
				return err
			}
			dispatcher := logstore.NewDispatcher(store, cfg.LogStoreBackend, cfg.LogStoreQueueSize, cfg.LogStoreTimeout())
			defer func() {
				closeCtx, cancel := withTimeout(10 * time.Second)
				defer cancel()
				if err := dispatcher.Close(closeCtx); err != nil {
					log.Error().Err(err).Msg("failed to drain analysis log queue")
				}
				stats := dispatcher.Stats()
				log.Info().
					Int64("inserted", stats.Inserted.Load()).
					Int64("failed", stats.Failed.Load()).
					Int64("dropped", stats.Dropped.Load()).
					Msg("analysis log dispatcher stopped")
			}()

			srv := server.New(server.Config{
				Env:            cfg.AppEnv,
				AllowedOrigins: cfg.AllowedOrigins(),
			}, a.service(loader), dispatcher)
			return srv.Run(ctx, fmt.Sprintf(":%d", cfg.AppPort))
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides APP_PORT)")
	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
