package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/services"
	"github.com/ochairo/redist/internal/external-adapters/gpg"
	"github.com/ochairo/redist/internal/external-adapters/manifest"
	"github.com/ochairo/redist/internal/external-adapters/yaml"
	"github.com/ochairo/redist/internal/external-adapters/zaplog"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configFile string
	workDir    string
	flavors    []string
	workers    int
	noCache    bool
	graphOut   string
	log        zaplog.Options
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "redist",
		Short: "Repackage, digest and publish a customized tool distribution",
		Long: `redist fetches an upstream distribution archive, injects init scripts,
computes SHA-256 digests and publishes the results to an artifact host or
a draft release.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.configFile, "config", "f", "", "Configuration file (default: redist.yml in the current directory)")
	fs.StringVar(&opts.workDir, "work-dir", "", "Override the working directory from the configuration")
	fs.StringSliceVar(&opts.flavors, "flavor", nil, "Restrict the run to these flavors (bin, all)")
	fs.IntVar(&opts.workers, "workers", orchestrators.DefaultWorkers, "Maximum number of stages running at once")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Execute every stage even when its inputs are unchanged")
	fs.StringVar(&opts.graphOut, "graph-out", "", "Write the executed pipeline as Graphviz DOT to this file")
	opts.log.BindFlags(fs)

	cmd.AddCommand(
		newPublishCmd(opts),
		newRunCmd(opts),
		newGraphCmd(opts),
		newVerifyCmd(),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadDistribution reads the configuration and applies command line overrides
func (o *globalOptions) loadDistribution(ctx context.Context) (*entities.Distribution, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	repo, err := yaml.NewConfigRepository(o.configFile, dir)
	if err != nil {
		return nil, err
	}
	dist, err := repo.GetDistribution(ctx)
	if err != nil {
		return nil, err
	}

	if o.workDir != "" {
		dist.WorkDir = o.workDir
	}
	if len(o.flavors) > 0 {
		flavors := make([]entities.Flavor, 0, len(o.flavors))
		for _, name := range o.flavors {
			f, err := entities.ParseFlavor(name)
			if err != nil {
				return nil, err
			}
			flavors = append(flavors, f)
		}
		dist.Flavors = flavors
	}

	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return dist, nil
}

func (o *globalOptions) newLogger(w io.Writer) (*zaplog.Logger, error) {
	logger, err := zaplog.New(o.log, w)
	if err != nil {
		return nil, entities.NewConfigError(err.Error())
	}
	return logger, nil
}

// newOrchestrator wires the adapters of one working directory
func (o *globalOptions) newOrchestrator(dist *entities.Distribution, logger *zaplog.Logger) (*orchestrators.ReleaseOrchestrator, error) {
	ws, err := gateways.NewWorkspace(dist.WorkDir)
	if err != nil {
		return nil, err
	}

	transfer := gateways.NewHTTPClient(logger)
	return orchestrators.NewReleaseOrchestrator(orchestrators.ReleaseDependencies{
		Workspace: ws,
		Fetcher:   gateways.NewDownloader(transfer, logger),
		Packager:  gateways.NewPackager(logger),
		Digester:  gateways.NewDigestCalculator(),
		Signer:    gpg.NewSigner(logger),
		Drafter:   gateways.NewReleaseDrafter(transfer, logger),
		Publisher: gateways.NewPublisher(transfer, logger),
		Manifests: manifest.NewStore(ws.Root()),
		Resolver:  services.NewCredentialResolver(nil),
		Logger:    logger,
	}, orchestrators.ReleaseOrchestratorConfig{
		Workers: o.workers,
		NoCache: o.noCache,
	}), nil
}

// runPipeline executes targets, prints the report and optionally the graph
func runPipeline(cmd *cobra.Command, opts *globalOptions, targets []string) error {
	ctx := cmd.Context()

	dist, err := opts.loadDistribution(ctx)
	if err != nil {
		return err
	}
	logger, err := opts.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	//nolint:errcheck // Sync fails on non-file writers such as terminals
	defer logger.Sync()

	orch, err := opts.newOrchestrator(dist, logger)
	if err != nil {
		return err
	}

	report, runErr := orch.Run(ctx, dist, targets...)
	if report == nil {
		return runErr
	}

	if err := report.WriteTable(cmd.OutOrStdout()); err != nil {
		return err
	}
	if opts.graphOut != "" {
		if err := writeGraph(orch, dist, report, targets, opts.graphOut); err != nil {
			return err
		}
	}
	return runErr
}

func writeGraph(orch *orchestrators.ReleaseOrchestrator, dist *entities.Distribution, report *orchestrators.Report, targets []string, path string) error {
	p, err := orch.BuildPipeline(dist)
	if err != nil {
		return err
	}
	if len(targets) > 0 {
		if p, err = p.Select(targets...); err != nil {
			return err
		}
	}
	return gateways.AtomicWriteFile(path, 0644, func(w io.Writer) error {
		return orchestrators.RenderDOT(p, report, w)
	})
}
