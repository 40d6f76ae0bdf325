// Package domain holds the error taxonomy shared by the resolution tiers.
package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures inside the router.
type ErrorType string

const (
	// ErrorTypeExtractionMiss means no entities were found. Not a failure.
	ErrorTypeExtractionMiss ErrorType = "extraction_miss"
	// ErrorTypeResolutionMiss means a tier declined for lack of confidence.
	ErrorTypeResolutionMiss ErrorType = "resolution_miss"
	// ErrorTypeCollaboratorFailure covers catalog, search and generation errors and timeouts.
	ErrorTypeCollaboratorFailure ErrorType = "collaborator_failure"
	// ErrorTypePipelineExhausted means every tier failed.
	ErrorTypePipelineExhausted ErrorType = "pipeline_exhausted"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeMalformedData     ErrorType = "malformed_data"
)

// ErrResolutionMiss is returned by tiers that decline a query.
var ErrResolutionMiss = ResolutionMiss("tier declined", nil)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type, so errors.Is(err, ErrResolutionMiss) works.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Type == e.Type
	}
	return false
}

// NewError creates a new domain error.
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func ResolutionMiss(message string, err error) *DomainError {
	return NewError(ErrorTypeResolutionMiss, message, err)
}

func CollaboratorFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeCollaboratorFailure, message, err)
}

func PipelineExhausted(message string, err error) *DomainError {
	return NewError(ErrorTypePipelineExhausted, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func NotFound(message string, err error) *DomainError {
	return NewError(ErrorTypeNotFound, message, err)
}

func MalformedData(message string, err error) *DomainError {
	return NewError(ErrorTypeMalformedData, message, err)
}

// IsType reports whether err wraps a DomainError of type t.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == t
	}
	return false
}
