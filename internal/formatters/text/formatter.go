// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"strings"

	"blackout/internal/detector"
	"blackout/internal/formatters"
	"blackout/internal/formatters/shared"
	"blackout/internal/scan"

	"github.com/fatih/color"
)

// matchColumnMax caps the MATCH column for readability
const matchColumnMax = 30

// palette holds the colors of one Format call. Colors are disabled per
// palette rather than through the color.NoColor global so that concurrent
// HTTP exports do not race.
type palette map[string]*color.Color

func newPalette(noColor bool) palette {
	p := palette{
		"green":   color.New(color.FgGreen),
		"yellow":  color.New(color.FgYellow),
		"red":     color.New(color.FgRed),
		"cyan":    color.New(color.FgCyan),
		"magenta": color.New(color.FgMagenta),
		"blue":    color.New(color.FgBlue),
		"white":   color.New(color.FgWhite, color.Bold),
		"dim":     color.New(color.Faint),
	}
	if noColor {
		for _, c := range p {
			c.DisableColor()
		}
	}
	return p
}

// Formatter implements text-based output formatting
type Formatter struct{}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable text output with colors and tables"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

func (f *Formatter) Format(result *scan.ScanResult, options formatters.FormatterOptions) (string, error) {
	colors := newPalette(options.NoColor)
	var builder strings.Builder

	matches := shared.FilterMatches(result.Matches, options)

	f.appendHeader(&builder, colors, result)
	if len(matches) == 0 && len(result.Suppressed) == 0 {
		builder.WriteString("No matches found.\n")
	} else {
		width := f.calculateMatchColumnWidth(matches, result.Suppressed, options)
		f.appendColumns(&builder, colors, width)
		for _, match := range matches {
			f.appendSummaryLine(&builder, colors, match, "", width, options)
		}
		for _, suppressed := range result.Suppressed {
			f.appendSummaryLine(&builder, colors, suppressed.Match, suppressed.SuppressedBy, width, options)
		}
	}

	builder.WriteString("\n")
	f.appendCounts(&builder, colors, result)
	f.appendRedaction(&builder, colors, result, options)
	return builder.String(), nil
}

func (f *Formatter) appendHeader(builder *strings.Builder, colors palette, result *scan.ScanResult) {
	colors["white"].Fprintf(builder, "=== %s ===\n", result.Document)
	fmt.Fprintf(builder, "scan %s, %s, %d ms", result.ScanID, result.MediaType, result.DurationMs)
	if result.CacheHit {
		builder.WriteString(", cached")
	}
	builder.WriteString("\n\n")
}

// appendColumns adds column headers to the string builder
func (f *Formatter) appendColumns(builder *strings.Builder, colors palette, matchWidth int) {
	colors["white"].Fprintf(builder, "%-8s %-14s %-13s %-*s %s\n", "STATUS", "RULE", "OFFSET", matchWidth, "MATCH", "NOTE")
	totalWidth := 8 + 1 + 14 + 1 + 13 + 1 + matchWidth + 1 + 12
	colors["white"].Fprint(builder, strings.Repeat("-", totalWidth)+"\n")
}

// calculateMatchColumnWidth calculates the optimal width for the match column
func (f *Formatter) calculateMatchColumnWidth(matches []detector.TextMatch, suppressed []detector.SuppressedMatch, options formatters.FormatterOptions) int {
	maxWidth := len(shared.Masked)
	if !options.ShowMatch {
		return maxWidth
	}
	consider := func(m detector.TextMatch) {
		if n := len([]rune(m.Value)); n > maxWidth {
			maxWidth = n
		}
	}
	for _, m := range matches {
		consider(m)
	}
	for _, s := range suppressed {
		consider(s.Match)
	}
	return min(maxWidth, matchColumnMax)
}

// appendSummaryLine adds a single line summary to the string builder
func (f *Formatter) appendSummaryLine(builder *strings.Builder, colors palette, match detector.TextMatch, suppressedBy string, width int, options formatters.FormatterOptions) {
	status, statusColor := "VALID", colors["red"]
	switch {
	case suppressedBy != "":
		status, statusColor = "SUPP", colors["dim"]
	case !match.Valid:
		status, statusColor = "INVALID", colors["yellow"]
	}

	matchText := shared.Display(match.Value, options)
	matchText = strings.NewReplacer("\n", " ", "\t", " ").Replace(matchText)
	if runes := []rune(matchText); len(runes) > width {
		matchText = string(runes[:width-3]) + "..."
	}
	matchText += strings.Repeat(" ", width-len([]rune(matchText)))

	fmt.Fprintf(builder, "%s %s %s %s %s\n",
		statusColor.Sprintf("%-8s", status),
		colors["cyan"].Sprintf("%-14s", match.Rule),
		colors["magenta"].Sprintf("%-13s", fmt.Sprintf("%d-%d", match.Index, match.End)),
		matchText,
		colors["dim"].Sprint(suppressedBy))

	if options.Verbose && options.ShowMatch && match.Context != "" {
		colors["dim"].Fprintf(builder, "         context: %s\n", strings.ReplaceAll(match.Context, "\n", " "))
	}
}

func (f *Formatter) appendCounts(builder *strings.Builder, colors palette, result *scan.ScanResult) {
	colors["white"].Fprintf(builder, "Matches by rule\n")
	for _, rule := range result.Rules() {
		n := result.Counts[rule]
		c := colors["green"]
		if n > 0 {
			c = colors["red"]
		}
		fmt.Fprintf(builder, "  %-14s %s\n", rule, c.Sprint(n))
	}
	fmt.Fprintf(builder, "  %-14s %d of %d valid, %d suppressed\n", "total", result.ValidCount(), len(result.Matches), len(result.Suppressed))
}

func (f *Formatter) appendRedaction(builder *strings.Builder, colors palette, result *scan.ScanResult, options formatters.FormatterOptions) {
	builder.WriteString("\n")
	colors["white"].Fprintf(builder, "Redaction\n")
	fmt.Fprintf(builder, "  detection: %s, %d spatial boxes\n", f.statusColor(colors, string(result.Status.Detection)), result.Boxes)
	fmt.Fprintf(builder, "  redaction: %s, %d targets\n", f.statusColor(colors, string(result.Status.Redaction)), len(result.RedactionTargets))

	if options.Verbose {
		for _, t := range result.RedactionTargets {
			fmt.Fprintf(builder, "    page %d  [%.1f %.1f %.1f %.1f]  %s %s\n",
				t.Page+1, t.X0, t.Y0, t.X1, t.Y1, t.Rule, shared.Display(t.MatchedText, options))
		}
	}
	for _, msg := range result.Errors() {
		colors["yellow"].Fprintf(builder, "  warning: %s\n", msg)
	}
}

func (f *Formatter) statusColor(colors palette, status string) string {
	switch status {
	case string(scan.DetectionOK), string(scan.RedactionApplied):
		return colors["green"].Sprint(status)
	case string(scan.DetectionDegraded), string(scan.RedactionUnavailable):
		return colors["yellow"].Sprint(status)
	default:
		return colors["dim"].Sprint(status)
	}
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
