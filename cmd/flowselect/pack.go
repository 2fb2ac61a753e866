package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hed1ad/flowselect/pkg/dataset"
	"github.com/hed1ad/flowselect/pkg/io/csv"
	"github.com/hed1ad/flowselect/pkg/io/objectstore"
)

func newPackCmd(a *app) *cobra.Command {
	var (
		codecName string
		out       string
		upload    bool
	)

	cmd := &cobra.Command{
		Use:   "pack <dataset.csv>",
		Short: "Compress a CSV dataset into the object format the loader reads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := csv.ParseCodec(codecName)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			df, err := csv.Decode(raw, csv.WithLabel(a.cfg.DatasetLabelColumn))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if !dataset.HasColumn(df, a.cfg.DatasetLabelColumn) {
				return fmt.Errorf("%s: label column %q not found", args[0], a.cfg.DatasetLabelColumn)
			}

			packed, err := csv.Compress(raw, codec)
			if err != nil {
				return err
			}
			log.Info().
				Int("rows", df.Nrow()).
				Int("columns", df.Ncol()).
				Int("raw_bytes", len(raw)).
				Int("packed_bytes", len(packed)).
				Str("codec", codec.String()).
				Msg("dataset packed")

			if upload {
				ctx, cancel := withTimeout(a.cfg.StorageTimeout())
				defer cancel()
				store, err := objectstore.New(ctx, a.storeConfig())
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.WriteObject(ctx, a.cfg.GCSBucketName, a.cfg.GCSObjectName, packed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s/%s (%d bytes)\n", a.cfg.GCSBucketName, a.cfg.GCSObjectName, len(packed))
				return nil
			}

			if out == "" {
				out = args[0] + extension(codec)
			}
			if err := os.WriteFile(out, packed, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(packed))
			return nil
		},
	}
	cmd.Flags().StringVarP(&codecName, "codec", "c", "gzip", "compression: gzip, zstd or none")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: input name plus codec extension)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the configured bucket and object instead of writing a file")
	return cmd
}

func extension(c csv.Codec) string {
	switch c {
	case csv.CodecGzip:
		return ".gz"
	case csv.CodecZstd:
		return ".zst"
	default:
		return ".packed"
	}
}
