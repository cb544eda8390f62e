package orchestrators

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
	"github.com/ochairo/redist/internal/domain/interfaces/repositories"
	"github.com/ochairo/redist/internal/domain/services"
)

// Aggregate stage names
const (
	StageDraftRelease = "draft-release"
	StagePublish      = "publish"
)

// FetchStage names the download stage of a flavor
func FetchStage(f entities.Flavor) string { return "fetch-" + f.Classifier() }

// PackageStage names the repackaging stage of a flavor
func PackageStage(f entities.Flavor) string { return "package-" + f.Classifier() }

// ChecksumStage names the digest stage of a flavor
func ChecksumStage(f entities.Flavor) string { return "checksum-" + f.Classifier() }

// SignStage names the signing stage of a flavor
func SignStage(f entities.Flavor) string { return "sign-" + f.Classifier() }

// PublishStage names the upload stage of a flavor
func PublishStage(f entities.Flavor) string { return "publish-" + f.Classifier() }

// Workspace confines every pipeline file to one working directory
type Workspace interface {
	Root() string
	Path(rel string) (string, error)
	Lock() (unlock func(), err error)
}

// ReleaseDependencies are the adapters a release run is wired with
type ReleaseDependencies struct {
	Workspace Workspace
	Fetcher   gateways.Fetcher
	Packager  gateways.Packager
	Digester  gateways.Digester
	Signer    gateways.Signer
	Drafter   gateways.ReleaseDrafter
	Publisher gateways.Publisher
	// Manifests may be nil, which disables caching
	Manifests repositories.ManifestRepository
	Resolver  *services.CredentialResolver
	Logger    interfaces.Logger
}

// ReleaseOrchestratorConfig holds configuration for the orchestrator
type ReleaseOrchestratorConfig struct {
	Workers int
	NoCache bool
}

// ReleaseOrchestrator turns a distribution into a stage graph and runs it
type ReleaseOrchestrator struct {
	deps   ReleaseDependencies
	config ReleaseOrchestratorConfig
	logger interfaces.Logger
}

// NewReleaseOrchestrator creates a new release orchestrator
func NewReleaseOrchestrator(deps ReleaseDependencies, config ReleaseOrchestratorConfig) *ReleaseOrchestrator {
	return &ReleaseOrchestrator{
		deps:   deps,
		config: config,
		logger: interfaces.OrNoOp(deps.Logger),
	}
}

// Run executes the targets and everything they depend on. Without targets
// the whole release is published. The workspace is locked for the duration.
func (o *ReleaseOrchestrator) Run(ctx context.Context, dist *entities.Distribution, targets ...string) (*Report, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}

	p, err := o.BuildPipeline(dist)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		targets = []string{StagePublish}
	}
	selected, err := p.Select(targets...)
	if err != nil {
		return nil, err
	}

	unlock, err := o.deps.Workspace.Lock()
	if err != nil {
		return nil, errors.Wrap(err, "unable to lock workspace")
	}
	defer unlock()

	o.logger.Info("starting release",
		interfaces.F("product", dist.Product),
		interfaces.F("version", dist.Version.String()),
		interfaces.F("stages", selected.Len()),
		interfaces.F("workdir", o.deps.Workspace.Root()))

	executor := NewExecutor(o.deps.Resolver, o.deps.Manifests, o.logger, ExecutorConfig{
		Workers: o.config.Workers,
		NoCache: o.config.NoCache,
	})
	return executor.Run(ctx, selected)
}

// BuildPipeline builds the stage graph of a distribution: per flavor a
// fetch, package, checksum, optional sign and publish stage, a shared
// draft-release stage for the release variant, and the aggregate publish.
func (o *ReleaseOrchestrator) BuildPipeline(dist *entities.Distribution) (*Pipeline, error) {
	p := NewPipeline()
	release := dist.Publish.Mode == entities.PublishRelease

	if release {
		if err := p.AddStage(o.draftStage(dist)); err != nil {
			return nil, err
		}
	}

	var publishers []string
	for _, flavor := range dist.Flavors {
		stages, err := o.flavorStages(dist, flavor, release)
		if err != nil {
			return nil, err
		}
		for _, s := range stages {
			if err := p.AddStage(s); err != nil {
				return nil, err
			}
		}
		publishers = append(publishers, PublishStage(flavor))
	}

	err := p.AddStage(&Stage{
		Name:      StagePublish,
		DependsOn: publishers,
		Run: func(_ context.Context, in StageInput) (*entities.Artifact, error) {
			out := &entities.Artifact{Name: dist.Product, Version: dist.Version, Role: entities.RolePublication}
			for _, name := range publishers {
				a, err := in.Input(name)
				if err != nil {
					return nil, err
				}
				out.Locations = append(out.Locations, a.Locations...)
			}
			return out, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (o *ReleaseOrchestrator) flavorStages(dist *entities.Distribution, flavor entities.Flavor, release bool) ([]*Stage, error) {
	ws := o.deps.Workspace

	downloadPath, err := ws.Path(services.DownloadPath(dist, flavor))
	if err != nil {
		return nil, err
	}
	packagePath, err := ws.Path(services.PackagePath(dist, flavor))
	if err != nil {
		return nil, err
	}
	digestPath := services.DigestPath(packagePath)
	signaturePath := services.SignaturePath(packagePath)

	artifact := func(role entities.Role, path string) entities.Artifact {
		return entities.Artifact{
			Name:    filepath.Base(path),
			Version: dist.Version,
			Flavor:  flavor,
			Role:    role,
			Path:    path,
		}
	}

	fetch := &Stage{
		Name:        FetchStage(flavor),
		Credentials: refs(dist.Upstream.Credential),
		Run: func(ctx context.Context, in StageInput) (*entities.Artifact, error) {
			url := services.UpstreamURL(dist.Upstream.URLTemplate, dist.Tool, dist.Version.Upstream, flavor)
			if _, err := o.deps.Fetcher.Fetch(ctx, url, downloadPath, in.Credential(dist.Upstream.Credential)); err != nil {
				return nil, err
			}
			a := artifact(entities.RoleRawDownload, downloadPath)
			return &a, nil
		},
	}

	prefix := services.ExtrasPrefix(dist)
	pkg := &Stage{
		Name:      PackageStage(flavor),
		DependsOn: []string{fetch.Name},
		Cache: &CachePolicy{
			Output: artifact(entities.RolePackage, packagePath),
			Fingerprint: func(in StageInput) (string, error) {
				src, err := in.Input(fetch.Name)
				if err != nil {
					return "", err
				}
				return NewFingerprint().
					Param("prefix", prefix).
					File("source", src.Path).
					Dir("extras", dist.ExtrasDir).
					Sum()
			},
		},
		Run: func(ctx context.Context, in StageInput) (*entities.Artifact, error) {
			src, err := in.Input(fetch.Name)
			if err != nil {
				return nil, err
			}
			_, err = o.deps.Packager.Repackage(ctx, gateways.RepackageRequest{
				Source:      src.Path,
				ExtrasDir:   dist.ExtrasDir,
				Prefix:      prefix,
				Destination: packagePath,
			})
			if err != nil {
				return nil, err
			}
			a := artifact(entities.RolePackage, packagePath)
			return &a, nil
		},
	}

	packageFingerprint := func(extra ...string) func(StageInput) (string, error) {
		return func(in StageInput) (string, error) {
			src, err := in.Input(pkg.Name)
			if err != nil {
				return "", err
			}
			fp := NewFingerprint().File("package", src.Path)
			for _, f := range extra {
				fp.File(filepath.Base(f), f)
			}
			return fp.Sum()
		}
	}

	checksum := &Stage{
		Name:      ChecksumStage(flavor),
		DependsOn: []string{pkg.Name},
		Cache: &CachePolicy{
			Output:      artifact(entities.RoleDigest, digestPath),
			Fingerprint: packageFingerprint(),
		},
		Run: func(_ context.Context, in StageInput) (*entities.Artifact, error) {
			src, err := in.Input(pkg.Name)
			if err != nil {
				return nil, err
			}
			if _, err := o.deps.Digester.WriteDigestFile(src.Path, digestPath); err != nil {
				return nil, err
			}
			a := artifact(entities.RoleDigest, digestPath)
			return &a, nil
		},
	}

	stages := []*Stage{fetch, pkg, checksum}
	uploads := []string{pkg.Name, checksum.Name}

	if dist.Signing.Enabled() {
		passphrase := entities.CredentialRef{Kind: entities.CredentialBearer, Variable: dist.Signing.PassphraseVariable}
		sign := &Stage{
			Name:        SignStage(flavor),
			DependsOn:   []string{pkg.Name},
			Credentials: refs(passphrase),
			Cache: &CachePolicy{
				Output:      artifact(entities.RoleSignature, signaturePath),
				Fingerprint: packageFingerprint(dist.Signing.KeyFile),
			},
			Run: func(_ context.Context, in StageInput) (*entities.Artifact, error) {
				src, err := in.Input(pkg.Name)
				if err != nil {
					return nil, err
				}
				// unencrypted keys need no passphrase
				var secret []byte
				if cred := in.Credential(passphrase); cred != nil {
					secret = []byte(cred.Secret)
				}
				if err := o.deps.Signer.Sign(dist.Signing.KeyFile, secret, src.Path, signaturePath); err != nil {
					return nil, err
				}
				a := artifact(entities.RoleSignature, signaturePath)
				return &a, nil
			},
		}
		stages = append(stages, sign)
		uploads = append(uploads, sign.Name)
	}

	deps := append([]string(nil), uploads...)
	if release {
		deps = append(deps, StageDraftRelease)
	}

	publish := &Stage{
		Name:        PublishStage(flavor),
		DependsOn:   deps,
		Credentials: refs(dist.Publish.Credential),
		Run: func(ctx context.Context, in StageInput) (*entities.Artifact, error) {
			files := make([]string, 0, len(uploads))
			for _, name := range uploads {
				a, err := in.Input(name)
				if err != nil {
					return nil, err
				}
				files = append(files, a.Path)
			}
			cred := in.Credential(dist.Publish.Credential)

			var locations []string
			var err error
			if release {
				record, rerr := o.releaseRecord(in)
				if rerr != nil {
					return nil, rerr
				}
				locations, err = o.deps.Publisher.UploadAssets(ctx, dist.Publish.UploadURL, record.ID, files, cred)
			} else {
				locations, err = o.deps.Publisher.PublishDirect(ctx, dist.Publish.BaseURL, files, cred)
			}
			if err != nil {
				return nil, err
			}

			return &entities.Artifact{
				Name:      services.PackageFileName(dist, flavor),
				Version:   dist.Version,
				Flavor:    flavor,
				Role:      entities.RolePublication,
				Locations: locations,
			}, nil
		},
	}

	return append(stages, publish), nil
}

func (o *ReleaseOrchestrator) draftStage(dist *entities.Distribution) *Stage {
	return &Stage{
		Name:        StageDraftRelease,
		Credentials: refs(dist.Publish.Credential),
		Run: func(ctx context.Context, in StageInput) (*entities.Artifact, error) {
			dest, err := o.deps.Workspace.Path(services.ReleaseRecordPath())
			if err != nil {
				return nil, err
			}
			record, err := o.deps.Drafter.Draft(ctx, gateways.DraftRequest{
				APIURL:      dist.Publish.APIURL,
				TagName:     dist.Version.Tag(),
				Name:        services.ReleaseName(dist),
				Destination: dest,
			}, in.Credential(dist.Publish.Credential))
			if err != nil {
				return nil, err
			}
			return &entities.Artifact{
				Name:    fmt.Sprintf("release %d", record.ID),
				Version: dist.Version,
				Role:    entities.RoleReleaseRecord,
				Path:    dest,
			}, nil
		},
	}
}

// releaseRecord reads the record persisted by the draft stage
func (o *ReleaseOrchestrator) releaseRecord(in StageInput) (*entities.ReleaseRecord, error) {
	a, err := in.Input(StageDraftRelease)
	if err != nil {
		return nil, err
	}
	record, err := o.deps.Drafter.ReadRecord(a.Path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read release record")
	}
	return record, nil
}

func refs(ref entities.CredentialRef) []entities.CredentialRef {
	if ref.IsZero() {
		return nil
	}
	return []entities.CredentialRef{ref}
}
