package orchestrators

import (
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"
)

type rgb struct{ r, g, b uint8 }

var stateColors = map[string]rgb{
	"pending":   {255, 255, 255},
	"running":   {255, 214, 102},
	"succeeded": {120, 200, 120},
	"cached":    {160, 200, 235},
	"skipped":   {200, 200, 200},
	"failed":    {235, 110, 110},
}

// RenderDOT writes the pipeline as a Graphviz digraph. When report is not
// nil every stage is filled with the colour of its outcome.
func RenderDOT(p *Pipeline, report *Report, w io.Writer) error {
	deps, err := p.Dependencies()
	if err != nil {
		return err
	}

	g := graph.New(stageHash, graph.Directed())
	for _, name := range p.Names() {
		s, _ := p.Stage(name)

		fill, err := fillColor(report, name)
		if err != nil {
			return err
		}
		err = g.AddVertex(s,
			graph.VertexAttribute("shape", "box"),
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", fill),
		)
		if err != nil {
			return errors.Wrapf(err, "unable to add vertex %s", name)
		}
	}
	for _, name := range p.Names() {
		for _, dep := range deps[name] {
			if err := g.AddEdge(dep, name); err != nil {
				return errors.Wrapf(err, "unable to add edge from %s to %s", dep, name)
			}
		}
	}

	if err := draw.DOT(g, w, draw.GraphAttribute("rankdir", "LR")); err != nil {
		return errors.Wrap(err, "unable to render graph")
	}
	return nil
}

func fillColor(report *Report, name string) (string, error) {
	status := "pending"
	if report != nil {
		if result, ok := report.Result(name); ok {
			status = result.Status()
		}
	}

	c := stateColors[status]
	hex, err := colors.RGB(c.r, c.g, c.b)
	if err != nil {
		return "", errors.Wrap(err, "unable to get colour")
	}
	return hex.ToHEX().String(), nil
}
