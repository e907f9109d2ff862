// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package redactors defines the contract for producing redacted copies of
// documents from accepted redaction targets.
package redactors

import (
	"context"
	"strings"

	"blackout/internal/detector"
)

// FillStyle is the colour painted over a redacted region.
type FillStyle string

const (
	// FillBlack paints opaque black boxes.
	FillBlack FillStyle = "black"
	// FillWhite paints opaque white boxes.
	FillWhite FillStyle = "white"
)

// String returns the string representation of the fill style
func (f FillStyle) String() string { return string(f) }

// RGB returns the fill colour components in the 0..1 range. Anything other
// than white is painted black.
func (f FillStyle) RGB() (r, g, b float64) {
	if f == FillWhite {
		return 1, 1, 1
	}
	return 0, 0, 0
}

// ParseFillStyle converts a string to FillStyle
func ParseFillStyle(s string) FillStyle {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white":
		return FillWhite
	default:
		return FillBlack // Default fallback
	}
}

// Redactor produces a redacted copy of a document. Implementations must not
// modify doc.Data.
type Redactor interface {
	// Name returns the name of the redactor
	Name() string

	// Supports reports whether the redactor can handle the document
	Supports(doc detector.Document) bool

	// Apply returns the bytes of the redacted copy
	Apply(ctx context.Context, doc detector.Document, targets []detector.RedactionTarget, fill FillStyle) ([]byte, error)
}
