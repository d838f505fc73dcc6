// Package errors defines the typed errors shared across tierline: parse
// failures in documents and interchange formats, validation failures,
// missing resources, unsupported operations, and I/O failures. Each type
// carries enough context to report the failure without the caller
// re-wrapping it at every level.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels the typed errors unwrap to, for errors.Is checks that do not
// care which concrete type occurred.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported")
)

// ParseError reports a malformed document, tier configuration, manifest,
// or interchange file.
type ParseError struct {
	// Format names what was being parsed ("JSON", "EAF", "manifest").
	Format string

	// Path is the source file, when one exists.
	Path string

	// Message describes the problem.
	Message string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// NewParse returns a ParseError without an underlying cause.
func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

// ValidationError reports input that is structurally well-formed but
// violates a rule: a bad span, an unknown tier, a rejected filename.
type ValidationError struct {
	// Field names the offending input.
	Field string

	// Value is the offending value. May be redacted.
	Value string

	// Message describes the rule that failed.
	Message string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// NewValidation returns a ValidationError for a named field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing resource: an annotation id, a library
// document, a revision, a bundle artifact.
type NotFoundError struct {
	// Resource is the kind of thing that was looked up.
	Resource string

	// ID is the identifier that missed.
	ID string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// NewNotFound returns a NotFoundError for a resource and id.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// UnsupportedError reports an operation a component deliberately does not
// implement, like importing an export-only format.
type UnsupportedError struct {
	// Feature is the operation or format that is not supported.
	Feature string

	// Reason says why, when a reason helps the caller.
	Reason string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// NewUnsupported returns an UnsupportedError with a reason.
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

// IOError reports a failed filesystem or database operation.
type IOError struct {
	// Operation is the verb that failed ("read", "write", "open").
	Operation string

	// Path is the file or resource involved.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIO returns an IOError wrapping the cause.
func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

// Wrap prefixes err with a message, preserving the chain for errors.Is and
// errors.As. Returns nil when err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
