package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/heartrisk/pipeline"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		chartsDir       string
		reportPath      string
		metricsTextfile string
		cvPartition     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline and print accuracy, CV accuracy and ROC AUC per model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("charts-dir") {
				cfg.ChartsDir = chartsDir
			}
			if f.Changed("report") {
				cfg.Report = reportPath
			}
			if f.Changed("metrics-textfile") {
				cfg.MetricsTextfile = metricsTextfile
			}
			if f.Changed("cv-partition") {
				cfg.Harness.CVPartition = cvPartition
			}

			rep, err := pipeline.Run(cfg)
			if err != nil {
				return err
			}
			if err := rep.WriteText(cmd.OutOrStdout()); err != nil {
				return err
			}
			if cfg.Report != "" {
				if err := rep.SaveYAML(cfg.Report); err != nil {
					return err
				}
			}
			if cfg.MetricsTextfile != "" {
				if err := rep.WriteTextfile(cfg.MetricsTextfile); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&chartsDir, "charts-dir", "", "write ROC, histogram and correlation charts here")
	f.StringVar(&reportPath, "report", "", "write the YAML report to this path")
	f.StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus gauges to this textfile")
	f.StringVar(&cvPartition, "cv-partition", "", "cross-validate on the test or train partition")
	return cmd
}
