// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackout/internal/detector"
)

func target(page int, rule detector.RuleID, text string) detector.RedactionTarget {
	return detector.RedactionTarget{
		Page:        page,
		Rect:        detector.Rect{X0: 10, Y0: 20, X1: 110, Y1: 30},
		MatchedText: text,
		Rule:        rule,
	}
}

func TestAuditLog_AddTarget(t *testing.T) {
	log := NewAuditLog("scan-1", "a.pdf", "1.0.0", FillBlack)
	log.AddTarget(target(2, "email", "alice@example.com"))
	log.AddTarget(target(0, "card", "4111111111111111"))
	log.AddTarget(target(2, "email", "bob@example.com"))
	log.SetDocuments([]byte("%PDF-original"), []byte("%PDF-redacted"))

	require.NoError(t, log.Validate())
	assert.Equal(t, 3, log.Summary.TotalRedactions)
	assert.Equal(t, []string{"card", "email"}, log.Summary.Rules)
	assert.Equal(t, []int{0, 2}, log.Summary.Pages)
	assert.Len(t, log.RedactionsByRule("email"), 2)
	assert.NotEqual(t, log.Redactions[0].ID, log.Redactions[2].ID)
	assert.Equal(t, GenerateTextHash("alice@example.com"), log.Redactions[0].TextHash)
}

func TestAuditLog_JSONHasNoMatchedText(t *testing.T) {
	log := NewAuditLog("scan-1", "a.pdf", "1.0.0", FillWhite)
	log.AddTarget(target(0, "email", "alice@example.com"))
	log.SetDocuments([]byte("x"), nil)

	data, err := log.ToJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "alice@example.com")
	assert.Contains(t, string(data), `"x0": 10`)

	parsed, err := AuditLogFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, log.Redactions, parsed.Redactions)
	assert.Equal(t, FillWhite, parsed.Fill)
	assert.Empty(t, parsed.RedactedHash)
}

func TestAuditLog_Validate(t *testing.T) {
	log := NewAuditLog("scan-1", "", "1.0.0", FillBlack)
	assert.ErrorContains(t, log.Validate(), "document")

	log = NewAuditLog("scan-1", "a.pdf", "1.0.0", FillBlack)
	assert.ErrorContains(t, log.Validate(), "original_hash")

	log.SetDocuments([]byte("x"), nil)
	bad := target(0, "email", "x")
	bad.X1 = 0
	log.AddTarget(bad)
	assert.ErrorContains(t, log.Validate(), "inverted")
}
