package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPattern   = errors.New("pattern must not be empty")
	ErrStalled        = errors.New("pipeline stalled")
	ErrNilSource      = errors.New("source is nil")
	ErrNilSink        = errors.New("sink is nil")
	ErrAlreadyRunning = errors.New("pipeline already running")
)

// StageError reports the stage that failed a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
