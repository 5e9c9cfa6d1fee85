package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/heartrisk/pipeline"
)

func newAuditCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Print missing and distinct-value counts per column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			rep, err := pipeline.Audit(cfg)
			if err != nil {
				return err
			}
			return rep.WriteAudit(cmd.OutOrStdout())
		},
	}
}
