package services

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ochairo/redist/internal/domain/entities"
)

// ReleaseStatus represents the readiness of a workspace for publishing
type ReleaseStatus string

// Release validation statuses
const (
	StatusReady          ReleaseStatus = "ready"
	StatusNoArtifacts    ReleaseStatus = "no_artifacts"
	StatusFlavorMismatch ReleaseStatus = "flavor_mismatch"
	StatusMissingDigests ReleaseStatus = "missing_digests"
)

// ReleaseValidation contains the validation result for a distribution
type ReleaseValidation struct {
	Status            ReleaseStatus
	ExpectedFlavors   []entities.Flavor
	PackagedFlavors   []entities.Flavor
	MissingFlavors    []entities.Flavor
	UnexpectedFlavors []entities.Flavor
	MissingDigests    []string
}

// IsReady returns true if every configured flavor has a package and a digest
func (rv *ReleaseValidation) IsReady() bool {
	return rv.Status == StatusReady
}

// ErrorMessage returns a human-readable error message if not ready
func (rv *ReleaseValidation) ErrorMessage() string {
	switch rv.Status {
	case StatusReady:
		return ""
	case StatusNoArtifacts:
		return fmt.Sprintf("No packages found (expected: %s)", flavorsToString(rv.ExpectedFlavors))
	case StatusFlavorMismatch:
		msg := fmt.Sprintf("Flavor mismatch (expected: %d, have: %d)", len(rv.ExpectedFlavors), len(rv.PackagedFlavors))
		if len(rv.MissingFlavors) > 0 {
			msg += fmt.Sprintf("\n   Missing: %s", flavorsToString(rv.MissingFlavors))
		}
		if len(rv.UnexpectedFlavors) > 0 {
			msg += fmt.Sprintf("\n   Unexpected: %s", flavorsToString(rv.UnexpectedFlavors))
		}
		return msg
	case StatusMissingDigests:
		return fmt.Sprintf("Packages without digest: %s", strings.Join(rv.MissingDigests, ", "))
	default:
		return "Unknown status"
	}
}

// ReleaseService handles release validation logic
type ReleaseService struct{}

// NewReleaseService creates a new release service
func NewReleaseService() *ReleaseService {
	return &ReleaseService{}
}

// ValidateRelease checks the files found in the distributions directory
// against the flavors the distribution is configured to produce
func (s *ReleaseService) ValidateRelease(dist *entities.Distribution, artifactPaths []string) *ReleaseValidation {
	validation := &ReleaseValidation{ExpectedFlavors: dist.Flavors}

	present := make(map[string]bool, len(artifactPaths))
	for _, p := range artifactPaths {
		present[filepath.Base(p)] = true
	}

	prefix := fmt.Sprintf("%s-%s-", dist.BaseName, dist.Version.String())
	packaged := make(map[entities.Flavor]bool)
	for name := range present {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, PackageSuffix) {
			continue
		}
		classifier := strings.TrimSuffix(strings.TrimPrefix(name, prefix), PackageSuffix)
		flavor, err := entities.ParseFlavor(classifier)
		if err != nil {
			continue
		}
		packaged[flavor] = true
		if !present[name+DigestSuffix] {
			validation.MissingDigests = append(validation.MissingDigests, name)
		}
	}
	sort.Strings(validation.MissingDigests)

	for _, f := range entities.AllFlavors {
		if packaged[f] {
			validation.PackagedFlavors = append(validation.PackagedFlavors, f)
		}
	}

	for _, f := range dist.Flavors {
		if !packaged[f] {
			validation.MissingFlavors = append(validation.MissingFlavors, f)
		}
	}
	for _, f := range validation.PackagedFlavors {
		if !dist.HasFlavor(f) {
			validation.UnexpectedFlavors = append(validation.UnexpectedFlavors, f)
		}
	}

	switch {
	case len(validation.PackagedFlavors) == 0:
		validation.Status = StatusNoArtifacts
	case len(validation.MissingFlavors) > 0 || len(validation.UnexpectedFlavors) > 0:
		validation.Status = StatusFlavorMismatch
	case len(validation.MissingDigests) > 0:
		validation.Status = StatusMissingDigests
	default:
		validation.Status = StatusReady
	}

	return validation
}

func flavorsToString(flavors []entities.Flavor) string {
	strs := make([]string, len(flavors))
	for i, f := range flavors {
		strs[i] = f.Classifier()
	}
	return strings.Join(strs, ", ")
}
