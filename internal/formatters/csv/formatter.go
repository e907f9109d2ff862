// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package csv

import (
	"fmt"
	"strconv"
	"strings"

	"blackout/internal/detector"
	"blackout/internal/formatters"
	"blackout/internal/formatters/shared"
	"blackout/internal/scan"
)

// Formatter implements CSV output formatting
type Formatter struct{}

// NewFormatter creates a new CSV formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "csv"
}

func (f *Formatter) Description() string {
	return "Comma-separated values for spreadsheet import"
}

func (f *Formatter) FileExtension() string {
	return ".csv"
}

func (f *Formatter) Format(result *scan.ScanResult, options formatters.FormatterOptions) (string, error) {
	headers := []string{"Document", "Rule", "Status", "Start", "End", "Text"}
	if options.Verbose {
		headers = append(headers, "Context")
	}

	csvRows := []string{strings.Join(headers, ",")}

	for _, match := range shared.FilterMatches(result.Matches, options) {
		status := "INVALID"
		if match.Valid {
			status = "VALID"
		}
		csvRows = append(csvRows, f.createCSVRow(result.Document, match, status, options))
	}

	for _, suppressed := range result.Suppressed {
		csvRows = append(csvRows, f.createCSVRow(result.Document, suppressed.Match, "SUPPRESSED", options))
	}

	return strings.Join(csvRows, "\n"), nil
}

// createCSVRow creates a CSV row for a match
func (f *Formatter) createCSVRow(document string, match detector.TextMatch, status string, options formatters.FormatterOptions) string {
	row := []string{
		f.escapeCSVField(document),
		f.escapeCSVField(string(match.Rule)),
		status,
		strconv.Itoa(match.Index),
		strconv.Itoa(match.End),
		f.escapeCSVField(shared.Display(match.Value, options)),
	}

	if options.Verbose {
		context := ""
		if options.ShowMatch {
			context = strings.ReplaceAll(match.Context, "\n", " ")
		}
		row = append(row, f.escapeCSVField(context))
	}

	return strings.Join(row, ",")
}

// escapeCSVField properly escapes a field for CSV format and prevents CSV injection
func (f *Formatter) escapeCSVField(field string) string {
	field = f.sanitizeFormulaInjection(field)

	// If field contains comma, quote, or newline, wrap in quotes and escape internal quotes
	if strings.ContainsAny(field, ",\"\n\r") {
		escaped := strings.ReplaceAll(field, "\"", "\"\"")
		return fmt.Sprintf("\"%s\"", escaped)
	}
	return field
}

// sanitizeFormulaInjection prefixes values that spreadsheets would evaluate
// as formulas with a single quote.
func (f *Formatter) sanitizeFormulaInjection(field string) string {
	if len(field) == 0 {
		return field
	}

	switch field[0] {
	case '=', '+', '-', '@':
		return "'" + field
	}
	return field
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
