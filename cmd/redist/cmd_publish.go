package main

import (
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
)

func newPublishCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Fetch, repackage, digest and publish every configured flavor",
		Example: `  redist publish
  redist publish --flavor bin --workers 1
  redist publish -f redist.yml --graph-out pipeline.dot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runPipeline(cmd, opts, []string{orchestrators.StagePublish}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\n✅ Published")
			return nil
		},
	}
}
