// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package detector holds the value types shared by the matching, spatial
// detection, reconciliation and redaction stages.
package detector

import (
	"time"

	"blackout/internal/security"
)

// RuleID names a PII category such as "rrn", "email" or "card". The set is
// open-ended; rule matchers decide which identifiers exist.
type RuleID string

// TextMatch is one occurrence of a rule in the extracted text.
type TextMatch struct {
	Rule    RuleID `json:"rule" yaml:"rule"`
	Value   string `json:"value" yaml:"value"`
	Valid   bool   `json:"valid" yaml:"valid"`
	Index   int    `json:"index" yaml:"index"` // rune offset of the first character
	End     int    `json:"end" yaml:"end"`     // rune offset one past the last character
	Context string `json:"context" yaml:"context"`

	// SecureValue mirrors Value so it can be zeroed when the result is wiped
	SecureValue *security.SecureString `json:"-" yaml:"-"`
}

// NewTextMatch builds a match and its secure mirror.
func NewTextMatch(rule RuleID, value string, valid bool, index, end int, context string) TextMatch {
	return TextMatch{
		Rule:        rule,
		Value:       value,
		Valid:       valid,
		Index:       index,
		End:         end,
		Context:     context,
		SecureValue: security.NewSecureString(value),
	}
}

// Clear securely wipes sensitive data from memory
func (m *TextMatch) Clear() {
	m.Value = ""
	m.Context = ""
	if m.SecureValue != nil {
		m.SecureValue.Clear()
		m.SecureValue = nil
	}
}

// Rect is an axis-aligned rectangle in PDF user space (origin bottom-left, points).
type Rect struct {
	X0 float64 `json:"x0" yaml:"x0"`
	Y0 float64 `json:"y0" yaml:"y0"`
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: min(r.X0, o.X0),
		Y0: min(r.Y0, o.Y0),
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
	}
}

// SpatialBox is a located region on a page believed to hold a rule's value.
// Rule may be empty when the detector could not attribute the region.
type SpatialBox struct {
	Page        int    `json:"page" yaml:"page"` // 0-based
	Rect        `yaml:",inline"`
	MatchedText string `json:"matched_text" yaml:"matched_text"`
	Rule        RuleID `json:"pattern_name" yaml:"pattern_name"`
}

// RedactionTarget is a box the reconciler accepted for redaction.
type RedactionTarget = SpatialBox

// SuppressedMatch represents a finding that was suppressed by a rule
type SuppressedMatch struct {
	Match        TextMatch  `json:"finding" yaml:"finding"`
	SuppressedBy string     `json:"suppressed_by" yaml:"suppressed_by"`
	RuleReason   string     `json:"rule_reason" yaml:"rule_reason"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}
