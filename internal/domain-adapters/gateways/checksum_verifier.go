package gateways

import (
	"context"
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
)

// DigestCalculator computes and checks SHA-256 digests of files by streaming
// their content
type DigestCalculator struct{}

var _ gateways.Digester = (*DigestCalculator)(nil)

// NewDigestCalculator creates a new digest calculator
func NewDigestCalculator() *DigestCalculator {
	return &DigestCalculator{}
}

// Calculate returns the lowercase hex SHA-256 of the file
func (c *DigestCalculator) Calculate(filePath string) (string, error) {
	//nolint:gosec // G304: File path is a workspace artifact
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", filePath, err)
	}
	return d.Encoded(), nil
}

// Verify checks the file against an expected hex digest
func (c *DigestCalculator) Verify(_ context.Context, filePath, expectedSum string) error {
	expected := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(strings.TrimSpace(expectedSum)))
	if err := expected.Validate(); err != nil {
		return fmt.Errorf("invalid expected digest %q: %w", expectedSum, err)
	}

	//nolint:gosec // G304: File path is user-provided for checksum verification
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	verifier := expected.Verifier()
	if _, err := io.Copy(verifier, f); err != nil {
		return fmt.Errorf("failed to hash file: %w", err)
	}
	if !verifier.Verified() {
		actual, err := c.Calculate(filePath)
		if err != nil {
			return err
		}
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected.Encoded(), actual)
	}
	return nil
}

// WriteDigestFile computes the digest of filePath and writes it, without a
// trailing newline, to digestPath
func (c *DigestCalculator) WriteDigestFile(filePath, digestPath string) (string, error) {
	sum, err := c.Calculate(filePath)
	if err != nil {
		return "", err
	}
	if err := AtomicWriteBytes(digestPath, []byte(sum), 0644); err != nil {
		return "", fmt.Errorf("failed to write digest file: %w", err)
	}
	return sum, nil
}

// ReadDigestFile reads a digest written by WriteDigestFile. Files in the
// "<hex>  <name>" layout of sha256sum are accepted too.
func (c *DigestCalculator) ReadDigestFile(digestPath string) (string, error) {
	//nolint:gosec // G304: digest path is user-provided
	data, err := os.ReadFile(digestPath)
	if err != nil {
		return "", fmt.Errorf("failed to read digest file: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("digest file %s is empty", digestPath)
	}
	return strings.ToLower(fields[0]), nil
}
