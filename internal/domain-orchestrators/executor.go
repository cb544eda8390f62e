package orchestrators

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/repositories"
	"github.com/ochairo/redist/internal/domain/services"
)

// DefaultWorkers bounds concurrently running stages
const DefaultWorkers = 4

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	// Workers bounds concurrently running stages; 1 runs stages sequentially
	Workers int
	// NoCache forces every stage to execute
	NoCache bool
}

// Executor runs a pipeline. Independent stages run concurrently; a stage
// runs only once all of its dependencies succeeded.
type Executor struct {
	resolver  *services.CredentialResolver
	manifests repositories.ManifestRepository
	logger    interfaces.Logger
	config    ExecutorConfig
	now       func() time.Time
}

// NewExecutor creates an executor. manifests may be nil to disable caching.
func NewExecutor(
	resolver *services.CredentialResolver,
	manifests repositories.ManifestRepository,
	logger interfaces.Logger,
	config ExecutorConfig,
) *Executor {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if resolver == nil {
		resolver = services.NewCredentialResolver(nil)
	}
	return &Executor{
		resolver:  resolver,
		manifests: manifests,
		logger:    interfaces.OrNoOp(logger),
		config:    config,
		now:       time.Now,
	}
}

// Preflight resolves every credential the pipeline's stages declare. It does
// no I/O besides reading the environment.
func (e *Executor) Preflight(p *Pipeline) (map[string]*entities.Credential, error) {
	creds := make(map[string]*entities.Credential)
	for _, name := range p.Names() {
		s, _ := p.Stage(name)
		for _, ref := range s.Credentials {
			if ref.IsZero() {
				continue
			}
			if _, done := creds[ref.Variable]; done {
				continue
			}
			cred, err := e.resolver.Resolve(ref)
			if err != nil {
				return nil, errors.Wrapf(err, "stage %s", name)
			}
			creds[ref.Variable] = cred
		}
	}
	return creds, nil
}

// Run executes every stage of p. The returned report is complete even when
// the error is non-nil, unless preflight failed, in which case no stage ran.
func (e *Executor) Run(ctx context.Context, p *Pipeline) (*Report, error) {
	start := e.now()

	order, err := p.Order()
	if err != nil {
		return nil, err
	}
	deps, err := p.Dependencies()
	if err != nil {
		return nil, err
	}

	creds, err := e.Preflight(p)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*StageResult, len(order))
	done := make(map[string]chan struct{}, len(order))
	for _, name := range order {
		results[name] = &StageResult{Name: name, State: StatePending}
		done[name] = make(chan struct{})
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.config.Workers)

	// Goroutines start in topological order, so the earliest unfinished
	// stage always has finished dependencies and the limit cannot deadlock.
	for _, name := range order {
		g.Go(func() error {
			defer close(done[name])

			for _, dep := range deps[name] {
				select {
				case <-done[dep]:
				case <-ctx.Done():
				}
			}

			mu.Lock()
			result := results[name]
			inputs := make(map[string]*entities.Artifact, len(deps[name]))
			var failedDep string
			for _, dep := range deps[name] {
				depResult := results[dep]
				if depResult.State != StateSucceeded {
					failedDep = dep
					break
				}
				inputs[dep] = depResult.Artifact
			}
			mu.Unlock()

			if failedDep != "" {
				e.finish(&mu, result, nil, &UpstreamFailedError{Stage: name, Upstream: failedDep}, false)
				e.logger.Warn("stage skipped", interfaces.F("stage", name), interfaces.F("upstream", failedDep))
				return nil
			}
			if err := ctx.Err(); err != nil {
				e.finish(&mu, result, nil, err, false)
				return nil
			}

			s, _ := p.Stage(name)
			e.execute(ctx, &mu, s, result, StageInput{Inputs: inputs, Credentials: creds})
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Duration: e.now().Sub(start)}
	for _, name := range order {
		report.Stages = append(report.Stages, results[name])
	}
	return report, report.Err()
}

func (e *Executor) execute(ctx context.Context, mu *sync.Mutex, s *Stage, result *StageResult, in StageInput) {
	log := e.logger.With(interfaces.F("stage", s.Name))

	mu.Lock()
	result.State = StateRunning
	result.Started = e.now()
	mu.Unlock()

	var fingerprint string
	if s.Cache != nil && e.manifests != nil {
		fp, err := s.Cache.Fingerprint(in)
		if err != nil {
			e.finish(mu, result, nil, errors.Wrap(err, "unable to fingerprint inputs"), false)
			log.Error("stage failed", interfaces.F("error", err))
			return
		}
		fingerprint = fp

		if !e.config.NoCache {
			if artifact := e.cached(s, fingerprint); artifact != nil {
				e.finish(mu, result, artifact, nil, true)
				log.Info("stage up to date")
				return
			}
		}
	}

	log.Info("stage started")
	artifact, err := s.Run(ctx, in)
	if err == nil && artifact == nil {
		err = errors.New("stage produced no artifact")
	}
	if err != nil {
		if s.Cache != nil && e.manifests != nil {
			_ = e.manifests.DeleteManifest(s.Name)
		}
		e.finish(mu, result, nil, err, false)
		log.Error("stage failed", interfaces.F("error", err))
		return
	}

	if fingerprint != "" && artifact.IsLocal() {
		err := e.manifests.SaveManifest(&entities.StageManifest{
			Stage:       s.Name,
			Fingerprint: fingerprint,
			Role:        artifact.Role,
			Path:        artifact.Path,
			RecordedAt:  e.now().UTC(),
		})
		if err != nil {
			log.Warn("unable to record manifest", interfaces.F("error", err))
		}
	}

	e.finish(mu, result, artifact, nil, false)
	log.Info("stage succeeded", interfaces.F("duration", result.Duration.String()))
}

// cached returns the recorded output when the fingerprint matches and the
// output file still exists
func (e *Executor) cached(s *Stage, fingerprint string) *entities.Artifact {
	m, err := e.manifests.GetManifest(s.Name)
	if err != nil || m == nil {
		return nil
	}
	if m.Fingerprint != fingerprint || m.Path != s.Cache.Output.Path {
		return nil
	}
	if _, err := os.Stat(m.Path); err != nil {
		return nil
	}
	artifact := s.Cache.Output
	return &artifact
}

func (e *Executor) finish(mu *sync.Mutex, result *StageResult, artifact *entities.Artifact, err error, cached bool) {
	mu.Lock()
	defer mu.Unlock()

	if !result.Started.IsZero() {
		result.Duration = e.now().Sub(result.Started)
	}
	result.Artifact = artifact
	result.Err = err
	result.Cached = cached
	if err != nil {
		result.State = StateFailed
	} else {
		result.State = StateSucceeded
	}
}
