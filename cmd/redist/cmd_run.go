package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <stage>...",
		Short: "Run the named stages and everything they depend on",
		Long: `Run the named stages and everything they depend on.

Stages: fetch-<flavor>, package-<flavor>, checksum-<flavor>, sign-<flavor>,
publish-<flavor>, draft-release and publish. Flavors are "bin" and "all".`,
		Example: `  redist run package-bin
  redist run checksum-bin checksum-all --no-cache`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, args)
		},
	}
}
