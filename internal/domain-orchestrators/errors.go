package orchestrators

import (
	"fmt"
	"strings"
)

// UpstreamFailedError marks a stage that never ran because a dependency failed
type UpstreamFailedError struct {
	Stage    string
	Upstream string
}

func (e *UpstreamFailedError) Error() string {
	return fmt.Sprintf("%s skipped: dependency %s failed", e.Stage, e.Upstream)
}

// RunError collects the root-cause failures of a run
type RunError struct {
	Failures []error
}

func (e *RunError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, err := range e.Failures {
		msgs[i] = err.Error()
	}
	if len(msgs) == 1 {
		return msgs[0]
	}
	return fmt.Sprintf("%d stages failed: %s", len(msgs), strings.Join(msgs, "; "))
}

// Unwrap exposes every failure to errors.Is and errors.As
func (e *RunError) Unwrap() []error {
	return e.Failures
}
