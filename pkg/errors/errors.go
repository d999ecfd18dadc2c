// Package errors provides structured error types for shipgraph.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the pipeline
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow the run's failure taxonomy:
//   - CONFIG_*: fatal configuration problems (credentials, remotes, refs)
//   - RESOLVER_*: failures obtaining a graph from the conan resolver
//   - MANIFEST_*: conanfile discovery failures
//   - TRANSPORT_*: submission failures
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNoToken, "neither GITHUB_TOKEN nor GH_TOKEN is set")
//	if errors.Is(err, errors.ErrCodeNoToken) {
//	    // Handle missing credentials
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransport, origErr, "submit snapshot to %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors - fatal, reported once, never retried
	ErrCodeNoToken      Code = "CONFIG_NO_TOKEN"
	ErrCodeBadRemote    Code = "CONFIG_BAD_REMOTE"
	ErrCodeDetachedHead Code = "CONFIG_DETACHED_HEAD"
	ErrCodeBadConfig    Code = "CONFIG_INVALID"

	// Resolver errors - fatal for this run
	ErrCodeResolverNotFound  Code = "RESOLVER_NOT_FOUND"
	ErrCodeResolverBadOutput Code = "RESOLVER_BAD_OUTPUT"

	// Manifest discovery errors
	ErrCodeManifestNotFound   Code = "MANIFEST_NOT_FOUND"
	ErrCodeManifestUnreadable Code = "MANIFEST_UNREADABLE"

	// Transport errors - surfaced as the final result, never retried
	ErrCodeTransport Code = "TRANSPORT_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatalConfig reports whether err is a configuration error that should
// abort the run before any resolver or network work happens.
func IsFatalConfig(err error) bool {
	switch GetCode(err) {
	case ErrCodeNoToken, ErrCodeBadRemote, ErrCodeDetachedHead, ErrCodeBadConfig:
		return true
	}
	return false
}
