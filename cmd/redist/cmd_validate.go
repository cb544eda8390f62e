package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/services"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that every configured flavor has a package and a digest",
		Long: `Check that every configured flavor has a package and a digest in the
distributions directory of the working directory.

Exit Codes:
  0  All expected flavors present (ready for release)
  1  Validation failed (missing flavors, missing digests)
  2  Configuration error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dist, err := opts.loadDistribution(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !quiet {
				fmt.Fprintf(out, "🔍 Validating release for %s %s\n", dist.Product, dist.Version.Tag())
			}

			dir := filepath.Join(dist.WorkDir, services.DistributionsDir)
			artifacts, err := gateways.NewArtifactFinder().FindByGlob(dir, dist.BaseName, dist.Version.String())
			if err != nil {
				return fmt.Errorf("failed to find artifacts: %w", err)
			}

			validation := services.NewReleaseService().ValidateRelease(dist, artifacts)
			if !quiet {
				fmt.Fprintf(out, "📦 Found %d artifact files\n\n", len(artifacts))
				fmt.Fprintf(out, "  Expected flavors: %s\n", joinFlavors(validation.ExpectedFlavors))
				fmt.Fprintf(out, "  Packaged flavors: %s\n", joinFlavors(validation.PackagedFlavors))
				if len(validation.MissingFlavors) > 0 {
					fmt.Fprintf(out, "  Missing flavors: %s\n", joinFlavors(validation.MissingFlavors))
				}
				fmt.Fprintln(out)
			}

			if !validation.IsReady() {
				if !quiet {
					fmt.Fprintf(out, "❌ FAILED: %s\n", validation.ErrorMessage())
				}
				return errors.New(validation.ErrorMessage())
			}

			if !quiet {
				fmt.Fprintln(out, "✅ READY: All expected flavors present")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "Only output errors (exit code indicates success/failure)")
	return cmd
}

func joinFlavors(flavors []entities.Flavor) string {
	if len(flavors) == 0 {
		return "-"
	}
	names := make([]string, len(flavors))
	for i, f := range flavors {
		names[i] = f.Classifier()
	}
	return strings.Join(names, ", ")
}
