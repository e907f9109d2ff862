// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sarif

import (
	"fmt"

	"blackout/internal/detector"
	"blackout/internal/formatters"
	"blackout/internal/formatters/shared"
)

// FindingMapper converts text matches to SARIF results
type FindingMapper struct {
	ruleManager *RuleManager
}

// NewFindingMapper creates a new FindingMapper instance
func NewFindingMapper(ruleManager *RuleManager) *FindingMapper {
	return &FindingMapper{ruleManager: ruleManager}
}

// MapToSARIFResult converts a match to a SARIF result. Validated matches are
// errors; pattern hits that failed validation are warnings.
func (m *FindingMapper) MapToSARIFResult(document string, match detector.TextMatch, options formatters.FormatterOptions) SARIFResult {
	m.ruleManager.GetOrCreateRule(string(match.Rule))

	level := LevelError
	if !match.Valid {
		level = LevelWarning
	}
	return SARIFResult{
		RuleID:     string(match.Rule),
		Level:      level,
		Message:    m.buildMessage(match, options),
		Locations:  []SARIFLocation{m.buildLocation(document, match, options)},
		Properties: map[string]interface{}{"valid": match.Valid},
	}
}

// MapSuppressedMatch converts a suppressed match to a SARIF result with level
// "none" and an external suppression
func (m *FindingMapper) MapSuppressedMatch(document string, suppressed detector.SuppressedMatch, options formatters.FormatterOptions) SARIFResult {
	result := m.MapToSARIFResult(document, suppressed.Match, options)
	result.Level = LevelNone
	result.Properties["suppressedBy"] = suppressed.SuppressedBy
	if suppressed.ExpiresAt != nil {
		result.Properties["suppressionExpiresAt"] = suppressed.ExpiresAt
	}
	result.Suppressions = []SARIFSuppression{{
		Kind:          SuppressionKindExternal,
		Justification: suppressed.RuleReason,
	}}
	return result
}

func (m *FindingMapper) buildLocation(document string, match detector.TextMatch, options formatters.FormatterOptions) SARIFLocation {
	region := SARIFRegion{
		CharOffset: match.Index,
		CharLength: match.End - match.Index,
	}
	if options.ShowMatch {
		region.Snippet = &SARIFSnippet{Text: match.Value}
	}
	return SARIFLocation{
		PhysicalLocation: SARIFPhysicalLocation{
			ArtifactLocation: SARIFArtifactLocation{URI: document},
			Region:           region,
		},
	}
}

func (m *FindingMapper) buildMessage(match detector.TextMatch, options formatters.FormatterOptions) SARIFMessage {
	desc := GetRuleDescription(string(match.Rule))
	text := desc.Short
	if !match.Valid {
		text += " (failed validation)"
	}
	if options.ShowMatch {
		text = fmt.Sprintf("%s: %s", text, shared.Display(match.Value, options))
	}
	return SARIFMessage{Text: text}
}
