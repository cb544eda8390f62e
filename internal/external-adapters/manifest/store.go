// Package manifest persists stage manifests as JSON files in the workspace.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces/repositories"
)

// DirName is the workspace directory holding manifests
const DirName = ".manifests"

// Store implements repositories.ManifestRepository with one file per stage
type Store struct {
	dir string
}

var _ repositories.ManifestRepository = (*Store)(nil)

// NewStore creates a store rooted at <workDir>/.manifests
func NewStore(workDir string) *Store {
	return &Store{dir: filepath.Join(workDir, DirName)}
}

func (s *Store) path(stage string) string {
	return filepath.Join(s.dir, stage+".json")
}

// GetManifest returns nil, nil when the stage has never succeeded
func (s *Store) GetManifest(stage string) (*entities.StageManifest, error) {
	data, err := os.ReadFile(s.path(stage))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for %s: %w", stage, err)
	}

	var m entities.StageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		// a corrupt manifest only costs a re-run
		return nil, nil
	}
	return &m, nil
}

// SaveManifest writes the manifest atomically
func (s *Store) SaveManifest(m *entities.StageManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest for %s: %w", m.Stage, err)
	}
	if err := gateways.AtomicWriteBytes(s.path(m.Stage), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest for %s: %w", m.Stage, err)
	}
	return nil
}

// DeleteManifest removes the manifest if present
func (s *Store) DeleteManifest(stage string) error {
	err := os.Remove(s.path(stage))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete manifest for %s: %w", stage, err)
	}
	return nil
}
