package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	"github.com/ochairo/redist/internal/domain/services"
)

func newVerifyCmd() *cobra.Command {
	var checksumFile string

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a package against its SHA-256 digest file",
		Example: `  redist verify build/distributions/sslabs-gradle-8.10-1.0-bin.zip
  redist verify gradle.zip --checksum gradle.zip.sha256`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			if checksumFile == "" {
				checksumFile = services.DigestPath(filePath)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "🔍 Verifying %s\n", filepath.Base(filePath))

			calc := gateways.NewDigestCalculator()
			expected, err := calc.ReadDigestFile(checksumFile)
			if err != nil {
				return err
			}
			if err := calc.Verify(cmd.Context(), filePath, expected); err != nil {
				fmt.Fprintf(out, "❌ Checksum verification FAILED: %v\n", err)
				return err
			}

			fmt.Fprintf(out, "✅ Checksum verified (sha256:%s)\n", expected)
			return nil
		},
	}

	cmd.Flags().StringVar(&checksumFile, "checksum", "", "Digest file to verify against (default: <file>.sha256)")
	return cmd
}
