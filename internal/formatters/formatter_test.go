// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package formatters_test

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"blackout/internal/detector"
	"blackout/internal/formatters"
	_ "blackout/internal/formatters/csv"
	_ "blackout/internal/formatters/json"
	_ "blackout/internal/formatters/junit"
	"blackout/internal/formatters/sarif"
	"blackout/internal/formatters/shared"
	_ "blackout/internal/formatters/text"
	_ "blackout/internal/formatters/yaml"
	"blackout/internal/scan"
)

func sampleResult() *scan.ScanResult {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &scan.ScanResult{
		ScanID:    "scan-1",
		Document:  "statement.pdf",
		MediaType: detector.MediaTypePDF,
		Matches: []detector.TextMatch{
			detector.NewTextMatch("email", "=alice@example.com", true, 4, 22, "mail =alice@example.com now"),
			detector.NewTextMatch("card", "4111 1111 1111 1112", false, 40, 59, "card 4111 1111 1111 1112"),
		},
		Counts: map[detector.RuleID]int{"email": 1, "card": 1, "rrn": 0},
		Suppressed: []detector.SuppressedMatch{{
			Match:        detector.NewTextMatch("phone_mobile", "010-1234-5678", true, 70, 83, ""),
			SuppressedBy: "SUP-00000001",
			RuleReason:   "switchboard",
			ExpiresAt:    &expires,
		}},
		Boxes: 2,
		RedactionTargets: []detector.RedactionTarget{
			{Page: 0, Rect: detector.Rect{X0: 10, Y0: 20, X1: 110, Y1: 30}, MatchedText: "=alice@example.com", Rule: "email"},
		},
		Status:     scan.Status{Detection: scan.DetectionOK, Redaction: scan.RedactionApplied},
		DurationMs: 12,
	}
}

func TestRegistry_ListsAllFormats(t *testing.T) {
	assert.Equal(t, []string{"csv", "json", "junit", "sarif", "text", "yaml"}, formatters.List())

	info := formatters.GetFormatInfo("sarif")
	assert.Equal(t, "application/sarif+json", info.MimeType)
	assert.Equal(t, ".sarif", info.Extension)
	assert.Empty(t, formatters.GetFormatInfo("xml").Name)
}

func TestExport_UnknownFormat(t *testing.T) {
	_, err := formatters.Export("xml", sampleResult(), formatters.FormatterOptions{})
	assert.ErrorContains(t, err, "unsupported format 'xml'")
}

func TestExport_ValuesMaskedByDefault(t *testing.T) {
	for _, format := range formatters.List() {
		t.Run(format, func(t *testing.T) {
			out, err := formatters.Export(format, sampleResult(), formatters.FormatterOptions{NoColor: true, Verbose: true})
			require.NoError(t, err)
			assert.NotContains(t, out, "alice@example.com")
			assert.NotContains(t, out, "1234-5678")
		})
	}
}

func TestExport_ShowMatch(t *testing.T) {
	for _, format := range []string{"json", "yaml", "csv", "text"} {
		t.Run(format, func(t *testing.T) {
			out, err := formatters.Export(format, sampleResult(), formatters.FormatterOptions{NoColor: true, ShowMatch: true})
			require.NoError(t, err)
			assert.Contains(t, out, "alice@example.com")
		})
	}
}

func TestJSON_ReportShape(t *testing.T) {
	out, err := formatters.Export("json", sampleResult(), formatters.FormatterOptions{})
	require.NoError(t, err)

	var report shared.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "scan-1", report.ScanID)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Valid)
	assert.Equal(t, 1, report.Summary.Suppressed)
	assert.Equal(t, 0, report.Summary.Counts["rrn"])
	require.Len(t, report.Results, 2)
	assert.Equal(t, shared.Masked, report.Results[0].Value)
	assert.Empty(t, report.Results[0].Context)
	assert.Equal(t, scan.RedactionApplied, report.Redaction.Status)
	require.Len(t, report.Redaction.Targets, 1)
	assert.Equal(t, 110.0, report.Redaction.Targets[0].X1)
	assert.Equal(t, "SUP-00000001", report.Suppressed[0].SuppressedBy)
}

func TestJSON_ValidOnly(t *testing.T) {
	out, err := formatters.Export("json", sampleResult(), formatters.FormatterOptions{ValidOnly: true})
	require.NoError(t, err)

	var report shared.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, "email", report.Results[0].Rule)
	assert.Equal(t, 2, report.Summary.Total, "summary reflects the whole scan")
}

func TestYAML_MatchesJSONStructure(t *testing.T) {
	out, err := formatters.Export("yaml", sampleResult(), formatters.FormatterOptions{})
	require.NoError(t, err)

	var report shared.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "statement.pdf", report.Document)
	assert.Len(t, report.Results, 2)
}

func TestCSV_EscapesAndNeutralizesFormulas(t *testing.T) {
	out, err := formatters.Export("csv", sampleResult(), formatters.FormatterOptions{ShowMatch: true})
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Document,Rule,Status,Start,End,Text", lines[0])
	assert.Equal(t, "statement.pdf,email,VALID,4,22,'=alice@example.com", lines[1])
	assert.Equal(t, "statement.pdf,card,INVALID,40,59,4111 1111 1111 1112", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "statement.pdf,phone_mobile,SUPPRESSED,"))
}

func TestJUnit_FailsRulesWithValidMatches(t *testing.T) {
	out, err := formatters.Export("junit", sampleResult(), formatters.FormatterOptions{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, xml.Header))

	var suites struct {
		Tests    int `xml:"tests,attr"`
		Failures int `xml:"failures,attr"`
		Suites   []struct {
			Name  string `xml:"name,attr"`
			Cases []struct {
				Name    string    `xml:"name,attr"`
				Failure *struct{} `xml:"failure"`
			} `xml:"testcase"`
		} `xml:"testsuite"`
	}
	require.NoError(t, xml.Unmarshal([]byte(strings.TrimPrefix(out, xml.Header)), &suites))

	assert.Equal(t, 1, suites.Failures, "only email has a valid match")
	require.Len(t, suites.Suites, 3)
	assert.Equal(t, "pii-scan", suites.Suites[0].Name)
	assert.Len(t, suites.Suites[0].Cases, 3)
	for _, c := range suites.Suites[0].Cases {
		assert.Equal(t, c.Name == "email", c.Failure != nil, c.Name)
	}
	assert.Equal(t, 3+2+1, suites.Tests)
}

func TestSARIF_LevelsAndSuppressions(t *testing.T) {
	out, err := formatters.Export("sarif", sampleResult(), formatters.FormatterOptions{})
	require.NoError(t, err)

	var report sarif.SARIFReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Runs, 1)
	run := report.Runs[0]

	require.Len(t, run.Results, 3)
	assert.Equal(t, sarif.LevelError, run.Results[0].Level)
	assert.Equal(t, sarif.LevelWarning, run.Results[1].Level)
	assert.Equal(t, sarif.LevelNone, run.Results[2].Level)
	require.Len(t, run.Results[2].Suppressions, 1)
	assert.Equal(t, "switchboard", run.Results[2].Suppressions[0].Justification)

	region := run.Results[0].Locations[0].PhysicalLocation.Region
	assert.Equal(t, 4, region.CharOffset)
	assert.Equal(t, 18, region.CharLength)
	assert.Nil(t, region.Snippet)

	ids := make([]string, 0, len(run.Tool.Driver.Rules))
	for _, r := range run.Tool.Driver.Rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"card", "email", "phone_mobile"}, ids)
	assert.True(t, run.Invocations[0].ExecutionSuccessful)
}

func TestText_Layout(t *testing.T) {
	result := sampleResult()
	result.Status.Detection = scan.DetectionDegraded
	result.DetectionErr = scan.NewDetectionError("statement.pdf", "detector", assert.AnError)

	out, err := formatters.Export("text", result, formatters.FormatterOptions{NoColor: true})
	require.NoError(t, err)

	assert.Contains(t, out, "=== statement.pdf ===")
	assert.Contains(t, out, "VALID    email")
	assert.Contains(t, out, "INVALID  card")
	assert.Contains(t, out, "SUPP     phone_mobile")
	assert.Contains(t, out, "1 of 2 valid, 1 suppressed")
	assert.Contains(t, out, "detection: degraded, 2 spatial boxes")
	assert.Contains(t, out, "warning: [detect] spatial detection failed")
	assert.NotContains(t, out, "\x1b[")
}

func TestText_NoMatches(t *testing.T) {
	result := &scan.ScanResult{Document: "empty.txt", Counts: map[detector.RuleID]int{}}
	out, err := formatters.Export("text", result, formatters.FormatterOptions{NoColor: true})
	require.NoError(t, err)
	assert.Contains(t, out, "No matches found.")
}
