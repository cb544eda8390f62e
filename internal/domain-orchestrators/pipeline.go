// Package orchestrators coordinates the release pipeline: a DAG of stages
// executed with dependency ordering, failure propagation and caching.
package orchestrators

import (
	"context"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/ochairo/redist/internal/domain/entities"
)

// ErrUnknownStage is returned when a stage name is not part of the pipeline
var ErrUnknownStage = errors.New("unknown stage")

// StageInput is everything a stage may read: the artifacts of its direct
// dependencies and the credentials resolved before the run started
type StageInput struct {
	Inputs      map[string]*entities.Artifact
	Credentials map[string]*entities.Credential
}

// Input returns the artifact produced by the named dependency
func (in StageInput) Input(stage string) (*entities.Artifact, error) {
	a, ok := in.Inputs[stage]
	if !ok || a == nil {
		return nil, errors.Errorf("no artifact from %s", stage)
	}
	return a, nil
}

// Credential returns the resolved credential for ref, or nil when ref is empty
func (in StageInput) Credential(ref entities.CredentialRef) *entities.Credential {
	if ref.IsZero() {
		return nil
	}
	return in.Credentials[ref.Variable]
}

// StageFunc computes a stage output from its inputs
type StageFunc func(ctx context.Context, in StageInput) (*entities.Artifact, error)

// CachePolicy makes a stage skippable when its inputs are unchanged
type CachePolicy struct {
	// Fingerprint digests everything the output depends on
	Fingerprint func(in StageInput) (string, error)
	// Output is the artifact the stage produces, path included
	Output entities.Artifact
}

// Stage is a named unit of work in the pipeline
type Stage struct {
	Name      string
	DependsOn []string
	// Credentials are resolved once, before any stage runs
	Credentials []entities.CredentialRef
	// Cache is nil for stages that always execute
	Cache *CachePolicy
	Run   StageFunc
}

func stageHash(s *Stage) string {
	return s.Name
}

// Pipeline is an acyclic graph of stages
type Pipeline struct {
	graph graph.Graph[string, *Stage]
	index map[string]int
}

// NewPipeline creates an empty pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		graph: graph.New(stageHash, graph.Directed(), graph.PreventCycles()),
		index: make(map[string]int),
	}
}

// AddStage adds a stage. Its dependencies must already be in the pipeline.
func (p *Pipeline) AddStage(s *Stage) error {
	if s.Name == "" {
		return errors.New("stage must have a name")
	}
	if s.Run == nil {
		return errors.Errorf("stage %s has no run function", s.Name)
	}

	if err := p.graph.AddVertex(s); err != nil {
		return errors.Wrapf(err, "unable to add stage %s", s.Name)
	}
	p.index[s.Name] = len(p.index)

	for _, dep := range s.DependsOn {
		if _, ok := p.index[dep]; !ok {
			return errors.Wrapf(ErrUnknownStage, "%s depends on %s", s.Name, dep)
		}
		if err := p.graph.AddEdge(dep, s.Name); err != nil {
			return errors.Wrapf(err, "unable to link %s to %s", dep, s.Name)
		}
	}
	return nil
}

// Stage returns the named stage
func (p *Pipeline) Stage(name string) (*Stage, bool) {
	s, err := p.graph.Vertex(name)
	if err != nil {
		return nil, false
	}
	return s, true
}

// Len returns the number of stages
func (p *Pipeline) Len() int {
	return len(p.index)
}

// Names returns stage names in insertion order
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.index))
	for name := range p.index {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return p.index[names[i]] < p.index[names[j]] })
	return names
}

// Order returns a deterministic topological order; ties are broken by
// insertion order
func (p *Pipeline) Order() ([]string, error) {
	order, err := graph.StableTopologicalSort(p.graph, func(a, b string) bool {
		return p.index[a] < p.index[b]
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to order stages")
	}
	return order, nil
}

// Dependencies returns the direct dependencies of every stage
func (p *Pipeline) Dependencies() (map[string][]string, error) {
	preds, err := p.graph.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read dependencies")
	}

	deps := make(map[string][]string, len(preds))
	for name, edges := range preds {
		list := make([]string, 0, len(edges))
		for dep := range edges {
			list = append(list, dep)
		}
		sort.Slice(list, func(i, j int) bool { return p.index[list[i]] < p.index[list[j]] })
		deps[name] = list
	}
	return deps, nil
}

// Select returns a pipeline holding the targets and all of their ancestors
func (p *Pipeline) Select(targets ...string) (*Pipeline, error) {
	if len(targets) == 0 {
		return p, nil
	}

	deps, err := p.Dependencies()
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	queue := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, ok := p.index[t]; !ok {
			return nil, errors.Wrap(ErrUnknownStage, t)
		}
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if keep[name] {
			continue
		}
		keep[name] = true
		queue = append(queue, deps[name]...)
	}

	sub := NewPipeline()
	for _, name := range p.Names() {
		if !keep[name] {
			continue
		}
		s, _ := p.Stage(name)
		if err := sub.AddStage(s); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Graph exposes the underlying graph for rendering
func (p *Pipeline) Graph() graph.Graph[string, *Stage] {
	return p.graph
}
