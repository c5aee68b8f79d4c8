package render

import (
	"errors"
	"fmt"
)

// FailureKind tells the repair step which way a render went wrong.
type FailureKind string

const (
	// FailureProcess means the renderer exited non-zero.
	FailureProcess FailureKind = "process_failed"
	// FailureNoOutput means the renderer exited zero but wrote no video.
	FailureNoOutput FailureKind = "no_output"
	// FailureTimeout means the render exceeded the configured wall-clock bound.
	FailureTimeout FailureKind = "timeout"
)

// Failure is a controlled render failure. Diagnostic is passed verbatim to repair.
type Failure struct {
	Kind       FailureKind
	Diagnostic string
	ExitCode   int
}

func (f *Failure) Error() string {
	return fmt.Sprintf("render %s: %s", f.Kind, f.Diagnostic)
}

// AsFailure reports whether err is (or wraps) a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
