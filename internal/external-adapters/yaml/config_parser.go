// Package yaml provides YAML-based distribution configuration parsing.
package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/redist/internal/domain/entities"
)

// Defaults applied to omitted fields
const (
	DefaultWorkDir   = "build"
	DefaultExtrasDir = "src/init.d"
)

// yamlConfig represents the raw YAML structure
type yamlConfig struct {
	Product   string       `yaml:"product"`
	Tool      string       `yaml:"tool"`
	BaseName  string       `yaml:"base_name"`
	Version   string       `yaml:"version"`
	WorkDir   string       `yaml:"work_dir"`
	ExtrasDir string       `yaml:"extras_dir"`
	Flavors   []string     `yaml:"flavors"`
	Upstream  yamlUpstream `yaml:"upstream"`
	Publish   yamlPublish  `yaml:"publish"`
	Signing   yamlSigning  `yaml:"signing"`
}

type yamlUpstream struct {
	URL         string `yaml:"url"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
}

type yamlPublish struct {
	Mode      string `yaml:"mode"`
	BaseURL   string `yaml:"base_url"`
	APIURL    string `yaml:"api_url"`
	UploadURL string `yaml:"upload_url"`
	TokenEnv  string `yaml:"token_env"`
}

type yamlSigning struct {
	KeyFile       string `yaml:"key_file"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

// ConfigParser parses distribution configuration files
type ConfigParser struct{}

// NewConfigParser creates a new YAML parser
func NewConfigParser() *ConfigParser {
	return &ConfigParser{}
}

// ParseFile parses a configuration file. Relative paths inside it are
// resolved against the file's directory.
func (p *ConfigParser) ParseFile(filePath string) (*entities.Distribution, error) {
	//nolint:gosec // G304: filePath is the configuration path given on the command line
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	dist, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	baseDir := filepath.Dir(filePath)
	dist.WorkDir = resolve(baseDir, dist.WorkDir)
	dist.ExtrasDir = resolve(baseDir, dist.ExtrasDir)
	if dist.Signing.KeyFile != "" {
		dist.Signing.KeyFile = resolve(baseDir, dist.Signing.KeyFile)
	}
	return dist, nil
}

// Parse parses YAML bytes into a validated Distribution
func (p *ConfigParser) Parse(data []byte) (*entities.Distribution, error) {
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &entities.ConfigError{Msg: "failed to parse YAML", Err: err}
	}

	version, err := entities.ParseVersionSpec(strings.TrimSpace(raw.Version))
	if err != nil {
		return nil, err
	}

	flavors, err := convertFlavors(raw.Flavors)
	if err != nil {
		return nil, err
	}

	dist := &entities.Distribution{
		Product:   raw.Product,
		Tool:      raw.Tool,
		BaseName:  raw.BaseName,
		Version:   version,
		Upstream:  convertUpstream(raw.Upstream),
		ExtrasDir: withDefault(raw.ExtrasDir, DefaultExtrasDir),
		Flavors:   flavors,
		WorkDir:   withDefault(raw.WorkDir, DefaultWorkDir),
		Publish:   convertPublish(raw.Publish),
		Signing: entities.SigningConfig{
			KeyFile:            raw.Signing.KeyFile,
			PassphraseVariable: raw.Signing.PassphraseEnv,
		},
	}
	if dist.BaseName == "" && dist.Tool != "" {
		dist.BaseName = dist.Tool
	}

	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return dist, nil
}

func convertFlavors(names []string) ([]entities.Flavor, error) {
	if len(names) == 0 {
		return append([]entities.Flavor(nil), entities.AllFlavors...), nil
	}
	flavors := make([]entities.Flavor, 0, len(names))
	for _, name := range names {
		f, err := entities.ParseFlavor(name)
		if err != nil {
			return nil, err
		}
		flavors = append(flavors, f)
	}
	return flavors, nil
}

func convertUpstream(yu yamlUpstream) entities.UpstreamSource {
	src := entities.UpstreamSource{URLTemplate: yu.URL}
	if yu.PasswordEnv != "" {
		src.Credential = entities.CredentialRef{
			Kind:             entities.CredentialBasic,
			Variable:         yu.PasswordEnv,
			UsernameVariable: yu.UsernameEnv,
		}
	}
	return src
}

func convertPublish(yp yamlPublish) entities.PublishTarget {
	mode := entities.PublishMode(strings.ToLower(yp.Mode))
	if mode == "" {
		mode = entities.PublishDirect
	}
	target := entities.PublishTarget{
		Mode:      mode,
		BaseURL:   yp.BaseURL,
		APIURL:    yp.APIURL,
		UploadURL: yp.UploadURL,
	}
	if yp.TokenEnv != "" {
		target.Credential = entities.CredentialRef{Kind: entities.CredentialBearer, Variable: yp.TokenEnv}
	}
	return target
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
