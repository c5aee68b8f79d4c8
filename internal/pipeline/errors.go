package pipeline

import (
	"errors"
	"fmt"

	"mathanim/internal/render"
)

// ErrEmptyPrompt is returned when a job is started without a description.
var ErrEmptyPrompt = errors.New("prompt is required")

// Generator stages.
const (
	StagePlan   = "plan"
	StageCode   = "code"
	StageRepair = "repair"
)

// GeneratorError is a terminal failure of one of the text generators.
type GeneratorError struct {
	Stage string
	Err   error
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GeneratorError) Unwrap() error {
	return e.Err
}

// AbortedError is returned when every render attempt failed.
type AbortedError struct {
	Attempts int
	Last     *render.Failure
}

func (e *AbortedError) Error() string {
	last := "unknown"
	if e.Last != nil {
		last = e.Last.Diagnostic
	}
	return fmt.Sprintf("failed to generate video after %d attempts. The request may be too complex. Last error: %s",
		e.Attempts, last)
}

func (e *AbortedError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}
