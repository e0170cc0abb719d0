// Package errors provides the structured error kinds shared by the pipeline.
// Callers classify failures with errors.Is against the Err* kind values and
// read Op/Msg for logs instead of parsing strings.
package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates bad input, config or catalog state.
type ValidationError struct {
	Op  string // package.Function
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return format("validation", e.Op, e.Msg, e.Err)
}

func (e *ValidationError) Unwrap() error     { return e.Err }
func (e *ValidationError) Operation() string { return e.Op }
func (e *ValidationError) Message() string   { return e.Msg }

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// DBError covers run-history and event-store persistence failures.
type DBError struct {
	Op  string
	Msg string
	Err error
}

func (e *DBError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return format("db", e.Op, e.Msg, e.Err)
}

func (e *DBError) Unwrap() error     { return e.Err }
func (e *DBError) Operation() string { return e.Op }
func (e *DBError) Message() string   { return e.Msg }

func NewDB(op, msg string, err error) error { return &DBError{Op: op, Msg: msg, Err: err} }

// ExternalAPIError represents failures of map pages, the Places API, the
// review aggregator, the proposal model or git.
type ExternalAPIError struct {
	Op     string
	Msg    string
	Err    error
	System string // "maps", "places", "aggregator", "openai", "git"
}

func (e *ExternalAPIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	sys := e.System
	if sys == "" {
		sys = "external"
	}
	return format(sys, e.Op, e.Msg, e.Err)
}

func (e *ExternalAPIError) Unwrap() error     { return e.Err }
func (e *ExternalAPIError) Operation() string { return e.Op }
func (e *ExternalAPIError) Message() string   { return e.Msg }

func NewExternal(op, system, msg string, err error) error {
	return &ExternalAPIError{Op: op, System: system, Msg: msg, Err: err}
}

// BizError is a pipeline outcome that ends a run without being a bug:
// too few approved venues, no confident rating source, a busy gate.
type BizError struct {
	Op  string
	Msg string
	Err error
}

func (e *BizError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return format("biz", e.Op, e.Msg, e.Err)
}

func (e *BizError) Unwrap() error     { return e.Err }
func (e *BizError) Operation() string { return e.Op }
func (e *BizError) Message() string   { return e.Msg }

func NewBiz(op, msg string, err error) error { return &BizError{Op: op, Msg: msg, Err: err} }

// Kind values for errors.Is checks through Is.
var (
	ErrValidation = &ValidationError{}
	ErrDB         = &DBError{}
	ErrExternal   = &ExternalAPIError{}
	ErrBiz        = &BizError{}
)

// Is reports whether err is of the same kind as target when target is one of
// the Err* kind values, and falls back to errors.Is otherwise.
func Is(err, target error) bool {
	if err == nil || target == nil {
		return errors.Is(err, target)
	}
	switch target {
	case ErrValidation:
		var v *ValidationError
		return errors.As(err, &v)
	case ErrDB:
		var d *DBError
		return errors.As(err, &d)
	case ErrExternal:
		var ex *ExternalAPIError
		return errors.As(err, &ex)
	case ErrBiz:
		var b *BizError
		return errors.As(err, &b)
	default:
		return errors.Is(err, target)
	}
}

func format(kind, op, msg string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", kind, op, msg, err)
	}
	return fmt.Sprintf("%s: %s: %s", kind, op, msg)
}
