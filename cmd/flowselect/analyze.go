package main

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hed1ad/flowselect/pkg/analysis"
	"github.com/hed1ad/flowselect/pkg/io/objectstore"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		file string
		pct  float64
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis and print the result as JSON",
		Long: "Run one analysis against the configured object store, or against a local\n" +
			"CSV file (plain, gzip or zstd) when --file is given.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lc := a.loaderConfig()
			if file != "" {
				lc.Store = objectstore.Config{Provider: objectstore.ProviderFile, Root: filepath.Dir(file)}
				lc.Bucket = "."
				lc.Object = filepath.Base(file)
			}

			res, err := a.service(analysis.NewLoader(lc)).Analyze(cmd.Context(), pct)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "local dataset file")
	cmd.Flags().Float64VarP(&pct, "train-percentage", "t", 80, "percentage of rows used for training")
	return cmd
}
