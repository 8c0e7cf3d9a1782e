package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither .eml nor .msg
	ErrUnsupportedFormat = errors.New("unsupported file type: only .eml and .msg files are supported")
)

// BackendError reports a failed classifier call: transport failure, timeout
// or a non-success status
type BackendError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s classifier call failed: %d %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s classifier call failed: %s", e.Provider, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// DecodeError reports an input file that could not be turned into text
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PipelineError reports a pipeline run that could not produce a result
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline aborted during %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
