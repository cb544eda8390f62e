package orchestrators

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/ochairo/redist/internal/domain/entities"
)

// StageState is the lifecycle state of a stage within one run
type StageState int

// Stage states
const (
	StatePending StageState = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s StageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("StageState(%d)", int(s))
	}
}

// StageResult records the outcome of one stage
type StageResult struct {
	Name     string
	State    StageState
	Cached   bool
	Started  time.Time
	Duration time.Duration
	Err      error
	Artifact *entities.Artifact
}

// Skipped reports whether the stage never ran because a dependency failed
func (r *StageResult) Skipped() bool {
	var upstream *UpstreamFailedError
	return errors.As(r.Err, &upstream)
}

// Status is the state shown to users; it distinguishes cached and skipped
// stages from the ones that ran
func (r *StageResult) Status() string {
	switch {
	case r.Cached:
		return "cached"
	case r.Skipped():
		return "skipped"
	default:
		return r.State.String()
	}
}

// Report is the outcome of a pipeline run, in execution order
type Report struct {
	Stages   []*StageResult
	Duration time.Duration
}

// Succeeded reports whether every stage succeeded
func (r *Report) Succeeded() bool {
	for _, s := range r.Stages {
		if s.State != StateSucceeded {
			return false
		}
	}
	return true
}

// Result returns the result of the named stage
func (r *Report) Result(name string) (*StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Artifacts returns the artifacts of every succeeded stage
func (r *Report) Artifacts() []*entities.Artifact {
	var out []*entities.Artifact
	for _, s := range r.Stages {
		if s.State == StateSucceeded && s.Artifact != nil {
			out = append(out, s.Artifact)
		}
	}
	return out
}

// Err returns the root-cause failures; stages skipped because of an upstream
// failure are not repeated
func (r *Report) Err() error {
	var failures []error
	for _, s := range r.Stages {
		if s.State != StateFailed || s.Skipped() {
			continue
		}
		failures = append(failures, errors.Wrap(s.Err, s.Name))
	}
	if len(failures) == 0 {
		return nil
	}
	return &RunError{Failures: failures}
}

// WriteTable prints one line per stage
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tDURATION\tOUTPUT")
	for _, s := range r.Stages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Status(), s.Duration.Round(time.Millisecond), describeOutput(s))
	}
	return tw.Flush()
}

func describeOutput(s *StageResult) string {
	if s.Err != nil {
		return s.Err.Error()
	}
	if s.Artifact == nil {
		return ""
	}
	if len(s.Artifact.Locations) > 0 {
		return strings.Join(s.Artifact.Locations, ", ")
	}
	return s.Artifact.Path
}
