// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package junit

import (
	"encoding/xml"
	"fmt"
	"strings"

	"blackout/internal/detector"
	"blackout/internal/formatters"
	"blackout/internal/formatters/shared"
	"blackout/internal/scan"
)

// JUnit XML structures based on the standard JUnit XML schema
type TestSuites struct {
	XMLName    xml.Name    `xml:"testsuites"`
	Name       string      `xml:"name,attr"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Errors     int         `xml:"errors,attr"`
	Time       string      `xml:"time,attr"`
	TestSuites []TestSuite `xml:"testsuite"`
}

type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Time      string     `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

type TestCase struct {
	XMLName   xml.Name  `xml:"testcase"`
	Name      string    `xml:"name,attr"`
	ClassName string    `xml:"classname,attr"`
	Time      string    `xml:"time,attr"`
	Failure   *Failure  `xml:"failure,omitempty"`
	Error     *Failure  `xml:"error,omitempty"`
	Skipped   *struct{} `xml:"skipped,omitempty"`
}

type Failure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Formatter implements JUnit XML output formatting. Every rule becomes a
// test case that fails when valid matches of that rule remain.
type Formatter struct{}

// NewFormatter creates a new JUnit XML formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "junit"
}

func (f *Formatter) Description() string {
	return "JUnit XML format for CI/CD integration and test reporting"
}

func (f *Formatter) FileExtension() string {
	return ".xml"
}

func (f *Formatter) Format(result *scan.ScanResult, options formatters.FormatterOptions) (string, error) {
	elapsed := fmt.Sprintf("%.3f", result.Duration.Seconds())
	byRule := f.groupMatchesByRule(shared.FilterMatches(result.Matches, options))

	piiSuite := TestSuite{Name: "pii-scan", Time: elapsed}
	for _, rule := range result.Rules() {
		testCase := f.createTestCaseForRule(result.Document, rule, byRule[rule], options)
		piiSuite.TestCases = append(piiSuite.TestCases, testCase)
		piiSuite.Tests++
		if testCase.Failure != nil {
			piiSuite.Failures++
		}
	}

	redactionSuite := TestSuite{Name: "redaction", Time: elapsed, Tests: 2}
	detection := TestCase{Name: "spatial-detection", ClassName: result.Document, Time: elapsed}
	if result.DetectionErr != nil {
		detection.Error = &Failure{Message: "spatial detection degraded", Type: string(result.Status.Detection), Content: result.DetectionErr.Error()}
		redactionSuite.Errors++
	} else if result.Status.Detection == scan.DetectionNotApplicable {
		detection.Skipped = &struct{}{}
	}
	redaction := TestCase{Name: "redaction", ClassName: result.Document, Time: elapsed}
	switch {
	case result.RedactionErr != nil:
		redaction.Error = &Failure{Message: "redaction unavailable", Type: string(result.Status.Redaction), Content: result.RedactionErr.Error()}
		redactionSuite.Errors++
	case result.Status.Redaction != scan.RedactionApplied:
		redaction.Skipped = &struct{}{}
	}
	redactionSuite.TestCases = []TestCase{detection, redaction}

	testSuites := TestSuites{
		Name:       "blackout",
		Time:       elapsed,
		TestSuites: []TestSuite{piiSuite, redactionSuite},
	}

	if len(result.Suppressed) > 0 {
		suppressedSuite := TestSuite{Name: "suppressed-findings", Time: elapsed}
		for _, s := range result.Suppressed {
			suppressedSuite.TestCases = append(suppressedSuite.TestCases, TestCase{
				Name:      fmt.Sprintf("%s (%s)", s.Match.Rule, s.SuppressedBy),
				ClassName: "suppressed-findings",
				Time:      elapsed,
				Skipped:   &struct{}{},
			})
			suppressedSuite.Tests++
		}
		testSuites.TestSuites = append(testSuites.TestSuites, suppressedSuite)
	}

	for _, s := range testSuites.TestSuites {
		testSuites.Tests += s.Tests
		testSuites.Failures += s.Failures
		testSuites.Errors += s.Errors
	}

	xmlData, err := xml.MarshalIndent(testSuites, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JUnit XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

// groupMatchesByRule groups matches by rule, keeping document order
func (f *Formatter) groupMatchesByRule(matches []detector.TextMatch) map[detector.RuleID][]detector.TextMatch {
	groups := make(map[detector.RuleID][]detector.TextMatch)
	for _, match := range matches {
		groups[match.Rule] = append(groups[match.Rule], match)
	}
	return groups
}

func (f *Formatter) createTestCaseForRule(document string, rule detector.RuleID, matches []detector.TextMatch, options formatters.FormatterOptions) TestCase {
	testCase := TestCase{
		Name:      string(rule),
		ClassName: document,
		Time:      "0.000",
	}

	valid := 0
	var content strings.Builder
	for _, match := range matches {
		if !match.Valid {
			continue
		}
		if valid > 0 {
			content.WriteString("\n")
		}
		valid++
		fmt.Fprintf(&content, "Offset %d-%d: %s", match.Index, match.End, shared.Display(match.Value, options))
		if options.Verbose && options.ShowMatch && match.Context != "" {
			fmt.Fprintf(&content, "\nContext: %s", match.Context)
		}
	}
	if valid == 0 {
		return testCase
	}

	message := fmt.Sprintf("%s found", rule)
	if valid > 1 {
		message = fmt.Sprintf("%d %s findings detected", valid, rule)
	}
	testCase.Failure = &Failure{Message: message, Type: string(rule), Content: content.String()}
	return testCase
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
