// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"errors"
	"fmt"
	"time"
)

// Stage names a step of the scan pipeline.
type Stage string

const (
	StageExtract Stage = "extract"
	StageMatch   Stage = "match"
	StageDetect  Stage = "detect"
	StageRedact  Stage = "redact"
)

// StageError is the common shape of the four stage failures.
type StageError struct {
	// Stage is the pipeline step that failed
	Stage Stage

	// Message is the error message
	Message string

	// Subject is the name of the document being scanned
	Subject string

	// Component is the collaborator that produced the cause
	Component string

	// Recoverable is true when the scan continued past the failure
	Recoverable bool

	// Timestamp is when the error occurred
	Timestamp time.Time

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *StageError) Error() string {
	msg := fmt.Sprintf("[%s] %s (component: %s)", e.Stage, e.Message, e.Component)
	if e.Subject != "" {
		msg = fmt.Sprintf("[%s] %s (document: %s, component: %s)", e.Stage, e.Message, e.Subject, e.Component)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping
func (e *StageError) Unwrap() error {
	return e.Cause
}

func newStageError(stage Stage, recoverable bool, message, subject, component string, cause error) StageError {
	return StageError{
		Stage:       stage,
		Message:     message,
		Subject:     subject,
		Component:   component,
		Recoverable: recoverable,
		Timestamp:   time.Now(),
		Cause:       cause,
	}
}

// ExtractionError means no text could be recovered. It is fatal.
type ExtractionError struct{ StageError }

// MatchingError means rule matching failed. It is fatal.
type MatchingError struct{ StageError }

// DetectionError means spatial detection failed. The scan continues with
// no boxes and a degraded detection status.
type DetectionError struct{ StageError }

// RedactionError means the redacted copy could not be produced. The report
// is still returned.
type RedactionError struct{ StageError }

// NewExtractionError wraps cause as a fatal extraction failure.
func NewExtractionError(subject, component string, cause error) *ExtractionError {
	return &ExtractionError{newStageError(StageExtract, false, "text extraction failed", subject, component, cause)}
}

// NewMatchingError wraps cause as a fatal matching failure.
func NewMatchingError(subject, component string, cause error) *MatchingError {
	return &MatchingError{newStageError(StageMatch, false, "rule matching failed", subject, component, cause)}
}

// NewDetectionError wraps cause as a recovered detection failure.
func NewDetectionError(subject, component string, cause error) *DetectionError {
	return &DetectionError{newStageError(StageDetect, true, "spatial detection failed", subject, component, cause)}
}

// NewRedactionError wraps cause as a recovered redaction failure.
func NewRedactionError(subject, component string, cause error) *RedactionError {
	return &RedactionError{newStageError(StageRedact, true, "redaction failed", subject, component, cause)}
}

// AsStageError returns the stage details of any of the four stage errors in
// err's chain.
func AsStageError(err error) (*StageError, bool) {
	var (
		ee *ExtractionError
		me *MatchingError
		de *DetectionError
		re *RedactionError
	)
	switch {
	case errors.As(err, &ee):
		return &ee.StageError, true
	case errors.As(err, &me):
		return &me.StageError, true
	case errors.As(err, &de):
		return &de.StageError, true
	case errors.As(err, &re):
		return &re.StageError, true
	}
	return nil, false
}
