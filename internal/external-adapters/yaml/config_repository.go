package yaml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces/repositories"
)

// DefaultConfigNames are searched in order when no file is given
var DefaultConfigNames = []string{"redist.yml", "redist.yaml"}

// ConfigRepository implements repositories.DistributionRepository using a YAML file
type ConfigRepository struct {
	path   string
	parser *ConfigParser
}

var _ repositories.DistributionRepository = (*ConfigRepository)(nil)

// NewConfigRepository creates a repository for an explicit file, or for the
// first default name found in dir when path is empty
func NewConfigRepository(path, dir string) (*ConfigRepository, error) {
	if path == "" {
		for _, name := range DefaultConfigNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return nil, entities.NewConfigError(fmt.Sprintf("no configuration file found in %s (looked for %v)", dir, DefaultConfigNames))
	}

	return &ConfigRepository{
		path:   path,
		parser: NewConfigParser(),
	}, nil
}

// Path returns the configuration file in use
func (r *ConfigRepository) Path() string {
	return r.path
}

// GetDistribution loads the configuration file
func (r *ConfigRepository) GetDistribution(_ context.Context) (*entities.Distribution, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, entities.NewConfigError(fmt.Sprintf("configuration file not found: %s", r.path))
	}
	return r.parser.ParseFile(r.path)
}
