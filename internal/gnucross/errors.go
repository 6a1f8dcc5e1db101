package gnucross

import (
	"fmt"
	"strings"
)

// InvalidTripleError reports a machine specification that config.sub
// refused to canonicalize. Output carries the tool's own diagnostic.
type InvalidTripleError struct {
	Spec   string
	Output string
}

func (e *InvalidTripleError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("invalid machine triple %q", e.Spec)
	}
	return fmt.Sprintf("invalid machine triple %q: %s", e.Spec, e.Output)
}

// ConfigurationError is a violated orchestrator invariant: a defect in the
// recipe or its inputs rather than in the toolchain sources.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, a ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, a...)}
}

// BuildFailure is returned when a configure or make process exits non-zero.
type BuildFailure struct {
	Command []string
	Dir     string
	LogPath string
	Err     error
}

func (e *BuildFailure) Error() string {
	return fmt.Sprintf("command %s failed in %s: %v", strings.Join(e.Command, " "), e.Dir, e.Err)
}

func (e *BuildFailure) Unwrap() error { return e.Err }
