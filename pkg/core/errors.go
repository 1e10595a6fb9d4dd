package core

import (
	"fmt"
)

// ValidationError represents malformed input found while building scans and
// samples.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// ParameterError reports a configuration value outside the range an
// algorithm accepts.
type ParameterError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

// Warning records a non-fatal problem with one scan. The scan keeps its best
// effort data and processing continues.
type Warning struct {
	ScanID string
	Stage  string // baseline, noise or peaks
	Err    error
}

func (w Warning) Error() string {
	return fmt.Sprintf("scan %s: %s: %v", w.ScanID, w.Stage, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}
