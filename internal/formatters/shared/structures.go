// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package shared builds the report view that the structured formatters
// serialize. Matched values are masked unless ShowMatch is set.
package shared

import (
	"time"

	"blackout/internal/detector"
	"blackout/internal/formatters"
	"blackout/internal/scan"
)

// Masked replaces a matched value when ShowMatch is off.
const Masked = "[REDACTED]"

// Report represents the top-level response structure for JSON/YAML output
type Report struct {
	ScanID     string           `json:"scan_id" yaml:"scan_id"`
	Document   string           `json:"document" yaml:"document"`
	MediaType  string           `json:"media_type" yaml:"media_type"`
	Summary    Summary          `json:"summary" yaml:"summary"`
	Results    []Match          `json:"results" yaml:"results"`
	Suppressed []SuppressedItem `json:"suppressed,omitempty" yaml:"suppressed,omitempty"`
	Redaction  Redaction        `json:"redaction" yaml:"redaction"`
	Errors     []string         `json:"errors,omitempty" yaml:"errors,omitempty"`
	CacheHit   bool             `json:"cache_hit" yaml:"cache_hit"`
	DurationMs int64            `json:"duration_ms" yaml:"duration_ms"`
}

// Summary holds the per-rule counts after suppression.
type Summary struct {
	Total      int            `json:"total" yaml:"total"`
	Valid      int            `json:"valid" yaml:"valid"`
	Suppressed int            `json:"suppressed" yaml:"suppressed"`
	Counts     map[string]int `json:"counts" yaml:"counts"`
}

// Match represents a single match in JSON/YAML format
type Match struct {
	Rule    string `json:"rule" yaml:"rule"`
	Value   string `json:"value" yaml:"value"`
	Valid   bool   `json:"valid" yaml:"valid"`
	Index   int    `json:"index" yaml:"index"`
	End     int    `json:"end" yaml:"end"`
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// SuppressedItem is a match an active suppression rule silenced.
type SuppressedItem struct {
	Match        Match      `json:"finding" yaml:"finding"`
	SuppressedBy string     `json:"suppressed_by" yaml:"suppressed_by"`
	Reason       string     `json:"reason" yaml:"reason"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Redaction reports the spatial stages.
type Redaction struct {
	Detection    scan.DetectionStatus `json:"detection" yaml:"detection"`
	Status       scan.RedactionStatus `json:"status" yaml:"status"`
	SpatialBoxes int                  `json:"spatial_boxes" yaml:"spatial_boxes"`
	Targets      []Target             `json:"targets" yaml:"targets"`
}

// Target is a redaction rectangle in PDF user space.
type Target struct {
	Page        int     `json:"page" yaml:"page"`
	X0          float64 `json:"x0" yaml:"x0"`
	Y0          float64 `json:"y0" yaml:"y0"`
	X1          float64 `json:"x1" yaml:"x1"`
	Y1          float64 `json:"y1" yaml:"y1"`
	Rule        string  `json:"rule" yaml:"rule"`
	MatchedText string  `json:"matched_text" yaml:"matched_text"`
}

// Display returns value, or the mask when matches are hidden.
func Display(value string, options formatters.FormatterOptions) string {
	if options.ShowMatch {
		return value
	}
	return Masked
}

// FilterMatches drops invalid matches when ValidOnly is set.
func FilterMatches(matches []detector.TextMatch, options formatters.FormatterOptions) []detector.TextMatch {
	if !options.ValidOnly {
		return matches
	}
	var filtered []detector.TextMatch
	for _, m := range matches {
		if m.Valid {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// ConvertMatch builds the report view of one match. Context carries the
// value itself, so it is only included when ShowMatch is set.
func ConvertMatch(m detector.TextMatch, options formatters.FormatterOptions) Match {
	out := Match{
		Rule:  string(m.Rule),
		Value: Display(m.Value, options),
		Valid: m.Valid,
		Index: m.Index,
		End:   m.End,
	}
	if options.ShowMatch && options.Verbose {
		out.Context = m.Context
	}
	return out
}

// ConvertResult converts a scan result to the JSON/YAML report structure
func ConvertResult(result *scan.ScanResult, options formatters.FormatterOptions) Report {
	matches := FilterMatches(result.Matches, options)

	report := Report{
		ScanID:     result.ScanID,
		Document:   result.Document,
		MediaType:  result.MediaType,
		Results:    make([]Match, 0, len(matches)),
		Errors:     result.Errors(),
		CacheHit:   result.CacheHit,
		DurationMs: result.DurationMs,
		Summary: Summary{
			Total:      len(result.Matches),
			Valid:      result.ValidCount(),
			Suppressed: len(result.Suppressed),
			Counts:     make(map[string]int, len(result.Counts)),
		},
		Redaction: Redaction{
			Detection:    result.Status.Detection,
			Status:       result.Status.Redaction,
			SpatialBoxes: result.Boxes,
			Targets:      make([]Target, 0, len(result.RedactionTargets)),
		},
	}

	for rule, n := range result.Counts {
		report.Summary.Counts[string(rule)] = n
	}
	for _, m := range matches {
		report.Results = append(report.Results, ConvertMatch(m, options))
	}
	for _, s := range result.Suppressed {
		report.Suppressed = append(report.Suppressed, SuppressedItem{
			Match:        ConvertMatch(s.Match, options),
			SuppressedBy: s.SuppressedBy,
			Reason:       s.RuleReason,
			ExpiresAt:    s.ExpiresAt,
		})
	}
	for _, t := range result.RedactionTargets {
		report.Redaction.Targets = append(report.Redaction.Targets, Target{
			Page:        t.Page,
			X0:          t.X0,
			Y0:          t.Y0,
			X1:          t.X1,
			Y1:          t.Y1,
			Rule:        string(t.Rule),
			MatchedText: Display(t.MatchedText, options),
		})
	}
	return report
}
