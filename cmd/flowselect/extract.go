package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hed1ad/flowselect/pkg/io/csv"
	"github.com/hed1ad/flowselect/pkg/io/pcap"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		label       string
		out         string
		idleTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "extract <capture.pcap>...",
		Short: "Turn packet captures into a labelled flow feature CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extractor := pcap.NewExtractor(pcap.WithIdleTimeout(idleTimeout))

			var rows [][]float64
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				flows, err := extractor.Extract(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				log.Info().Str("capture", path).Int("flows", len(flows)).Msg("capture processed")
				rows = append(rows, flows...)
			}

			labels := make([]string, len(rows))
			for i := range labels {
				labels[i] = label
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return csv.WriteFlows(w, extractor.FeatureNames(), rows, a.cfg.DatasetLabelColumn, labels)
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "class assigned to every extracted flow")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV file (default: stdout)")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", pcap.DefaultIdleTimeout, "inactivity gap that ends a flow")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}
