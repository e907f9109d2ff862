// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sarif

import (
	"encoding/json"
	"fmt"

	"blackout/internal/formatters"
	"blackout/internal/formatters/shared"
	"blackout/internal/scan"
	"blackout/internal/version"
)

// Formatter implements the formatters.Formatter interface for SARIF output
type Formatter struct{}

// NewFormatter creates a new SARIF formatter instance
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Name returns the name of the formatter
func (f *Formatter) Name() string {
	return "sarif"
}

// Description returns a brief description of the formatter
func (f *Formatter) Description() string {
	return "SARIF 2.1.0 format for security dashboards and code scanning tools"
}

// FileExtension returns the recommended file extension for SARIF files
func (f *Formatter) FileExtension() string {
	return ".sarif"
}

// Format converts a scan result to SARIF 2.1.0. Rules are collected per
// call so concurrent reports do not share state.
func (f *Formatter) Format(result *scan.ScanResult, options formatters.FormatterOptions) (string, error) {
	ruleManager := NewRuleManager()
	mapper := NewFindingMapper(ruleManager)

	results := []SARIFResult{}
	for _, match := range shared.FilterMatches(result.Matches, options) {
		results = append(results, mapper.MapToSARIFResult(result.Document, match, options))
	}
	for _, suppressed := range result.Suppressed {
		results = append(results, mapper.MapSuppressedMatch(result.Document, suppressed, options))
	}

	versionStr := version.Short()
	run := SARIFRun{
		Tool: SARIFTool{Driver: SARIFDriver{
			Name:            ToolName,
			Version:         versionStr,
			SemanticVersion: versionStr,
			Rules:           ruleManager.GetAllRules(),
		}},
		Results:     results,
		Invocations: []SARIFInvocation{f.buildInvocation(result)},
		Properties: map[string]interface{}{
			"scanId":           result.ScanID,
			"mediaType":        result.MediaType,
			"detectionStatus":  result.Status.Detection,
			"redactionStatus":  result.Status.Redaction,
			"redactionTargets": len(result.RedactionTargets),
		},
	}

	report := &SARIFReport{
		Schema:  SARIFSchemaURL,
		Version: SARIFVersion,
		Runs:    []SARIFRun{run},
	}

	jsonBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal SARIF report: %w", err)
	}
	return string(jsonBytes), nil
}

func (f *Formatter) buildInvocation(result *scan.ScanResult) SARIFInvocation {
	inv := SARIFInvocation{ExecutionSuccessful: true}
	for _, msg := range result.Errors() {
		inv.ToolExecutionNotifications = append(inv.ToolExecutionNotifications, SARIFNotification{
			Level:   LevelWarning,
			Message: SARIFMessage{Text: msg},
		})
	}
	return inv
}

// init registers the SARIF formatter with the global formatter registry
func init() {
	formatters.Register(NewFormatter())
}
