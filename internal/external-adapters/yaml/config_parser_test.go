package yaml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ochairo/redist/internal/domain/entities"
)

const directConfig = `product: Gradle
tool: gradle
base_name: sslabs-gradle
version: 8.10-1.0
extras_dir: src/init.d
flavors: [bin, all]
upstream:
  url: https://services.gradle.org/distributions/{name}-{version}-{flavor}.zip
publish:
  mode: direct
  base_url: https://files.pkg.example.test/p/gradle-wrapper/gradle-dist
  token_env: GRADLE_PUBLISH_TOKEN
`

const releaseConfig = `product: Gradle
tool: gradle
base_name: sslabs-gradle
version: 8.10-1.0
upstream:
  url: https://services.gradle.org/distributions/{name}-{version}-{flavor}.zip
  username_env: MIRROR_USER
  password_env: MIRROR_PASSWORD
publish:
  mode: release
  api_url: https://api.github.com/repos/example/gradle-dist
  upload_url: https://uploads.github.com/repos/example/gradle-dist
  token_env: GITHUB_GRADLE_DIST_TOKEN
signing:
  key_file: keys/release.asc
  passphrase_env: SIGNING_PASSPHRASE
`

func TestConfigParser_Parse_Direct(t *testing.T) {
	dist, err := NewConfigParser().Parse([]byte(directConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if dist.Product != "Gradle" || dist.Tool != "gradle" || dist.BaseName != "sslabs-gradle" {
		t.Errorf("identity = %q/%q/%q", dist.Product, dist.Tool, dist.BaseName)
	}
	if dist.Version.Upstream != "8.10" || dist.Version.Revision != "1.0" {
		t.Errorf("Version = %+v, want 8.10 / 1.0", dist.Version)
	}
	if len(dist.Flavors) != 2 || dist.Flavors[0] != entities.FlavorMinimal || dist.Flavors[1] != entities.FlavorFull {
		t.Errorf("Flavors = %v, want [bin all]", dist.Flavors)
	}
	if dist.Publish.Mode != entities.PublishDirect {
		t.Errorf("Publish.Mode = %v, want direct", dist.Publish.Mode)
	}
	if dist.Publish.Credential.Variable != "GRADLE_PUBLISH_TOKEN" || dist.Publish.Credential.Kind != entities.CredentialBearer {
		t.Errorf("Publish.Credential = %+v", dist.Publish.Credential)
	}
	if dist.WorkDir != DefaultWorkDir {
		t.Errorf("WorkDir = %v, want default %v", dist.WorkDir, DefaultWorkDir)
	}
	if !dist.Upstream.Credential.IsZero() {
		t.Errorf("Upstream.Credential = %+v, want none", dist.Upstream.Credential)
	}
	if dist.Signing.Enabled() {
		t.Error("signing should be disabled by default")
	}
}

func TestConfigParser_Parse_Release(t *testing.T) {
	dist, err := NewConfigParser().Parse([]byte(releaseConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if dist.Publish.Mode != entities.PublishRelease {
		t.Errorf("Publish.Mode = %v, want release", dist.Publish.Mode)
	}
	if len(dist.Flavors) != 2 {
		t.Errorf("omitted flavors should default to both, got %v", dist.Flavors)
	}
	cred := dist.Upstream.Credential
	if cred.Kind != entities.CredentialBasic || cred.UsernameVariable != "MIRROR_USER" || cred.Variable != "MIRROR_PASSWORD" {
		t.Errorf("Upstream.Credential = %+v", cred)
	}
	if !dist.Signing.Enabled() || dist.Signing.PassphraseVariable != "SIGNING_PASSPHRASE" {
		t.Errorf("Signing = %+v", dist.Signing)
	}
}

func TestConfigParser_Parse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{name: "malformed yaml", data: "product: [", want: entities.ErrConfiguration},
		{name: "version without revision", data: strings.Replace(directConfig, "8.10-1.0", "8.10", 1), want: entities.ErrInvalidVersion},
		{name: "unknown flavor", data: strings.Replace(directConfig, "[bin, all]", "[src]", 1), want: entities.ErrConfiguration},
		{name: "missing token", data: strings.Replace(directConfig, "  token_env: GRADLE_PUBLISH_TOKEN\n", "", 1), want: entities.ErrConfiguration},
		{name: "unknown mode", data: strings.Replace(directConfig, "mode: direct", "mode: ftp", 1), want: entities.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigParser().Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() should return error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigRepository_GetDistribution(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "redist.yml"), []byte(releaseConfig), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	repo, err := NewConfigRepository("", dir)
	if err != nil {
		t.Fatalf("NewConfigRepository() error = %v", err)
	}

	dist, err := repo.GetDistribution(context.Background())
	if err != nil {
		t.Fatalf("GetDistribution() error = %v", err)
	}

	if dist.WorkDir != filepath.Join(dir, DefaultWorkDir) {
		t.Errorf("WorkDir = %v, want it resolved against the config directory", dist.WorkDir)
	}
	if dist.ExtrasDir != filepath.Join(dir, DefaultExtrasDir) {
		t.Errorf("ExtrasDir = %v", dist.ExtrasDir)
	}
	if dist.Signing.KeyFile != filepath.Join(dir, "keys", "release.asc") {
		t.Errorf("Signing.KeyFile = %v", dist.Signing.KeyFile)
	}
}

func TestConfigRepository_NotFound(t *testing.T) {
	_, err := NewConfigRepository("", t.TempDir())
	if !errors.Is(err, entities.ErrConfiguration) {
		t.Errorf("NewConfigRepository() error = %v, want configuration error", err)
	}

	repo, err := NewConfigRepository(filepath.Join(t.TempDir(), "missing.yml"), "")
	if err != nil {
		t.Fatalf("explicit path should not be checked eagerly: %v", err)
	}
	if _, err := repo.GetDistribution(context.Background()); !errors.Is(err, entities.ErrConfiguration) {
		t.Errorf("GetDistribution() error = %v, want configuration error", err)
	}
}
