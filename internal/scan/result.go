// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"sort"
	"time"

	"blackout/internal/detector"
	"blackout/internal/extract"
	"blackout/internal/security"
)

// DetectionStatus reports how spatial detection went.
type DetectionStatus string

const (
	DetectionOK            DetectionStatus = "ok"
	DetectionDegraded      DetectionStatus = "degraded"
	DetectionNotApplicable DetectionStatus = "not_applicable"
)

// RedactionStatus reports whether a redacted copy was produced.
type RedactionStatus string

const (
	RedactionApplied       RedactionStatus = "applied"
	RedactionUnavailable   RedactionStatus = "unavailable"
	RedactionSkipped       RedactionStatus = "skipped"
	RedactionNotApplicable RedactionStatus = "not_applicable"
)

// Status carries the outcome of the recoverable stages.
type Status struct {
	Detection DetectionStatus `json:"detection" yaml:"detection"`
	Redaction RedactionStatus `json:"redaction" yaml:"redaction"`
}

// ScanResult is everything one scan produced.
type ScanResult struct {
	ScanID    string `json:"scan_id" yaml:"scan_id"`
	Document  string `json:"document" yaml:"document"`
	MediaType string `json:"media_type" yaml:"media_type"`

	FullText string         `json:"full_text" yaml:"full_text"`
	Pages    []extract.Page `json:"pages" yaml:"pages"`

	Matches    []detector.TextMatch       `json:"matches" yaml:"matches"`
	Counts     map[detector.RuleID]int    `json:"counts" yaml:"counts"`
	Suppressed []detector.SuppressedMatch `json:"suppressed,omitempty" yaml:"suppressed,omitempty"`

	// Boxes is the number of spatial candidates before reconciliation.
	Boxes            int                        `json:"spatial_boxes" yaml:"spatial_boxes"`
	RedactionTargets []detector.RedactionTarget `json:"redaction_targets" yaml:"redaction_targets"`
	RedactedDocument []byte                     `json:"-" yaml:"-"`

	Status       Status          `json:"status" yaml:"status"`
	DetectionErr *DetectionError `json:"-" yaml:"-"`
	RedactionErr *RedactionError `json:"-" yaml:"-"`

	CacheHit   bool          `json:"cache_hit" yaml:"cache_hit"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Duration   time.Duration `json:"-" yaml:"-"`
	DurationMs int64         `json:"duration_ms" yaml:"duration_ms"`
}

// ValidCount returns the number of matches that passed validation.
func (r *ScanResult) ValidCount() int {
	n := 0
	for _, m := range r.Matches {
		if m.Valid {
			n++
		}
	}
	return n
}

// Rules returns the rule ids present in Counts in sorted order.
func (r *ScanResult) Rules() []detector.RuleID {
	out := make([]detector.RuleID, 0, len(r.Counts))
	for rule := range r.Counts {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Errors lists the recovered stage failures as strings for reports.
func (r *ScanResult) Errors() []string {
	var out []string
	if r.DetectionErr != nil {
		out = append(out, r.DetectionErr.Error())
	}
	if r.RedactionErr != nil {
		out = append(out, r.RedactionErr.Error())
	}
	return out
}

// Wipe clears extracted text, match values and the redacted copy. The
// result is unusable for reporting afterwards.
func (r *ScanResult) Wipe() {
	if r == nil {
		return
	}
	r.FullText = ""
	for i := range r.Pages {
		r.Pages[i].Text = ""
	}
	for i := range r.Matches {
		r.Matches[i].Clear()
	}
	for i := range r.Suppressed {
		r.Suppressed[i].Match.Clear()
	}
	for i := range r.RedactionTargets {
		r.RedactionTargets[i].MatchedText = ""
	}
	security.Zero(r.RedactedDocument)
	r.RedactedDocument = nil
}
