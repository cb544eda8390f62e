// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/redist/internal/domain/entities"
)

// DistributionRepository loads the run configuration
type DistributionRepository interface {
	// GetDistribution loads and validates the distribution configuration
	GetDistribution(ctx context.Context) (*entities.Distribution, error)
}

// ManifestRepository persists stage manifests between runs
type ManifestRepository interface {
	// GetManifest returns the stored manifest, or nil when none exists
	GetManifest(stage string) (*entities.StageManifest, error)

	// SaveManifest replaces the manifest for manifest.Stage
	SaveManifest(manifest *entities.StageManifest) error

	// DeleteManifest forgets a stage, e.g. after it failed
	DeleteManifest(stage string) error
}
