package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
	"github.com/ochairo/redist/internal/domain/interfaces"
)

func newGraphCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [stage]...",
		Short: "Print the pipeline as a Graphviz digraph",
		Example: `  redist graph | dot -Tsvg > pipeline.svg
  redist graph publish-bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dist, err := opts.loadDistribution(cmd.Context())
			if err != nil {
				return err
			}
			ws, err := gateways.NewWorkspace(dist.WorkDir)
			if err != nil {
				return err
			}

			orch := orchestrators.NewReleaseOrchestrator(orchestrators.ReleaseDependencies{
				Workspace: ws,
				Logger:    &interfaces.NoOpLogger{},
			}, orchestrators.ReleaseOrchestratorConfig{})
			p, err := orch.BuildPipeline(dist)
			if err != nil {
				return err
			}
			if p, err = p.Select(args...); err != nil {
				return err
			}

			if opts.graphOut != "" {
				return gateways.AtomicWriteFile(opts.graphOut, 0644, func(w io.Writer) error {
					return orchestrators.RenderDOT(p, nil, w)
				})
			}
			return orchestrators.RenderDOT(p, nil, cmd.OutOrStdout())
		},
	}
}
