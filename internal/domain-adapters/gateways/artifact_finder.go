package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ochairo/redist/internal/domain/services"
)

// ArtifactFinder locates finished artifacts in the distributions directory
type ArtifactFinder struct{}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{}
}

// FindByGlob returns the packages, digests and signatures of one version,
// sorted by name. Pattern: <base>-<version>-*.zip{,.sha256,.asc}
func (f *ArtifactFinder) FindByGlob(dir, baseName, version string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("distributions directory does not exist: %s", dir)
	}

	versionClean := strings.TrimPrefix(version, "v")
	stem := fmt.Sprintf("%s-%s-*%s", baseName, versionClean, services.PackageSuffix)
	patterns := []string{
		stem,
		stem + services.DigestSuffix,
		stem + services.SignatureSuffix,
	}

	var artifacts []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob pattern error: %w", err)
		}
		artifacts = append(artifacts, matches...)
	}

	sort.Strings(artifacts)
	return artifacts, nil
}
