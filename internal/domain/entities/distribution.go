package entities

import (
	"fmt"
	"strings"
)

// PublishMode selects how finished artifacts leave the workspace
type PublishMode string

// Publish modes
const (
	PublishDirect  PublishMode = "direct"
	PublishRelease PublishMode = "release"
)

// UpstreamSource describes where upstream archives are fetched from
type UpstreamSource struct {
	// URLTemplate accepts {name}, {version} and {flavor} placeholders
	URLTemplate string
	Credential  CredentialRef
}

// PublishTarget describes the remote host receiving artifacts
type PublishTarget struct {
	Mode PublishMode
	// BaseURL is the collection URL for direct publishing
	BaseURL string
	// APIURL and UploadURL are the repository endpoints for the release variant
	APIURL     string
	UploadURL  string
	Credential CredentialRef
}

// SigningConfig enables detached signatures when KeyFile is set.
// PassphraseVariable is only needed for encrypted keys.
type SigningConfig struct {
	KeyFile            string
	PassphraseVariable string
}

// Enabled reports whether packages are signed
func (s SigningConfig) Enabled() bool {
	return s.KeyFile != ""
}

// Distribution is the immutable configuration of one pipeline run
type Distribution struct {
	Product   string
	Tool      string
	BaseName  string
	Version   VersionSpec
	Upstream  UpstreamSource
	ExtrasDir string
	Flavors   []Flavor
	WorkDir   string
	Publish   PublishTarget
	Signing   SigningConfig
}

// HasFlavor reports whether the flavor is configured
func (d *Distribution) HasFlavor(f Flavor) bool {
	for _, existing := range d.Flavors {
		if existing == f {
			return true
		}
	}
	return false
}

// Validate checks required fields and cross-field constraints
func (d *Distribution) Validate() error {
	var problems []string

	if d.Product == "" {
		problems = append(problems, "product is required")
	}
	if d.Tool == "" {
		problems = append(problems, "tool is required")
	}
	if d.BaseName == "" {
		problems = append(problems, "base_name is required")
	}
	if d.Version.IsZero() {
		problems = append(problems, "version is required")
	}
	if d.Upstream.URLTemplate == "" {
		problems = append(problems, "upstream.url is required")
	}
	if d.ExtrasDir == "" {
		problems = append(problems, "extras_dir is required")
	}
	if d.WorkDir == "" {
		problems = append(problems, "work_dir is required")
	}
	if len(d.Flavors) == 0 {
		problems = append(problems, "at least one flavor is required")
	}

	seen := make(map[Flavor]bool, len(d.Flavors))
	for _, f := range d.Flavors {
		if seen[f] {
			problems = append(problems, fmt.Sprintf("flavor %s listed twice", f))
		}
		seen[f] = true
	}

	switch d.Publish.Mode {
	case PublishDirect:
		if d.Publish.BaseURL == "" {
			problems = append(problems, "publish.base_url is required for direct publishing")
		}
	case PublishRelease:
		if d.Publish.APIURL == "" {
			problems = append(problems, "publish.api_url is required for release publishing")
		}
		if d.Publish.UploadURL == "" {
			problems = append(problems, "publish.upload_url is required for release publishing")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown publish mode %q", d.Publish.Mode))
	}
	if d.Publish.Credential.IsZero() {
		problems = append(problems, "publish.token_env is required")
	}

	if len(problems) > 0 {
		return NewConfigError(strings.Join(problems, "; "))
	}
	return nil
}
