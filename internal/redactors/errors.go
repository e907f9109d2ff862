// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"fmt"
	"time"
)

// RedactionErrorType defines the type of redaction error
type RedactionErrorType int

const (
	// ErrorDocumentProcessing indicates the document could not be parsed or written
	ErrorDocumentProcessing RedactionErrorType = iota

	// ErrorInvalidTarget indicates a target outside the document
	ErrorInvalidTarget

	// ErrorUnsupported indicates a document type the redactor cannot handle
	ErrorUnsupported

	// ErrorCancelled indicates the caller gave up before the copy was written
	ErrorCancelled
)

// String returns the string representation of the error type
func (ret RedactionErrorType) String() string {
	switch ret {
	case ErrorDocumentProcessing:
		return "document_processing"
	case ErrorInvalidTarget:
		return "invalid_target"
	case ErrorUnsupported:
		return "unsupported"
	case ErrorCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RedactionError represents an error that occurred during redaction
type RedactionError struct {
	// Type is the type of error
	Type RedactionErrorType

	// Message is the error message
	Message string

	// Document is the name of the document being processed
	Document string

	// Component is the component that generated the error
	Component string

	// Timestamp is when the error occurred
	Timestamp time.Time

	// Cause is the underlying error that caused this error
	Cause error
}

// Error implements the error interface
func (re *RedactionError) Error() string {
	msg := fmt.Sprintf("[%s] %s (component: %s)", re.Type, re.Message, re.Component)
	if re.Document != "" {
		msg = fmt.Sprintf("[%s] %s (document: %s, component: %s)", re.Type, re.Message, re.Document, re.Component)
	}
	if re.Cause != nil {
		msg += ": " + re.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping
func (re *RedactionError) Unwrap() error {
	return re.Cause
}

// NewRedactionError creates a new RedactionError
func NewRedactionError(errorType RedactionErrorType, message, document, component string, cause error) *RedactionError {
	return &RedactionError{
		Type:      errorType,
		Message:   message,
		Document:  document,
		Component: component,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}
