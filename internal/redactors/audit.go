// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"blackout/internal/detector"
)

// AuditLog records what a redaction run covered. It never holds matched
// text, only short hashes of it.
type AuditLog struct {
	// ScanID ties the log to the scan that produced the targets
	ScanID string `json:"scan_id"`

	// Timestamp is when the redaction was performed
	Timestamp time.Time `json:"timestamp"`

	// ToolVersion is the blackout version that performed the redaction
	ToolVersion string `json:"tool_version"`

	// Document is the name of the original document
	Document string `json:"document"`

	// RedactedPath is where the redacted copy was written, if anywhere
	RedactedPath string `json:"redacted_path,omitempty"`

	// OriginalHash and RedactedHash are SHA-256 digests for integrity checks
	OriginalHash string `json:"original_hash"`
	RedactedHash string `json:"redacted_hash,omitempty"`

	Fill FillStyle `json:"fill"`

	Summary AuditSummary `json:"summary"`

	Redactions []AuditEntry `json:"redactions"`
}

// AuditSummary contains summary statistics about the redactions
type AuditSummary struct {
	TotalRedactions int           `json:"total_redactions"`
	Rules           []string      `json:"rules"`
	Pages           []int         `json:"pages"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

// AuditEntry is one painted rectangle.
type AuditEntry struct {
	ID   string `json:"id"`
	Page int    `json:"page"` // 0-based
	detector.Rect
	Rule string `json:"rule"`

	// TextHash identifies the matched text without revealing it
	TextHash string `json:"text_hash"`
}

// NewAuditLog creates an empty log for one document.
func NewAuditLog(scanID, document, toolVersion string, fill FillStyle) *AuditLog {
	return &AuditLog{
		ScanID:      scanID,
		Timestamp:   time.Now().UTC(),
		ToolVersion: toolVersion,
		Document:    document,
		Fill:        fill,
		Summary:     AuditSummary{Rules: []string{}, Pages: []int{}},
		Redactions:  make([]AuditEntry, 0),
	}
}

// AddTarget records one redaction target and updates the summary.
func (l *AuditLog) AddTarget(target detector.RedactionTarget) {
	entry := AuditEntry{
		ID:       l.entryID(target),
		Page:     target.Page,
		Rect:     target.Rect,
		Rule:     string(target.Rule),
		TextHash: GenerateTextHash(target.MatchedText),
	}
	l.Redactions = append(l.Redactions, entry)

	l.Summary.TotalRedactions++
	if !slices.Contains(l.Summary.Rules, entry.Rule) {
		l.Summary.Rules = append(l.Summary.Rules, entry.Rule)
		slices.Sort(l.Summary.Rules)
	}
	if !slices.Contains(l.Summary.Pages, entry.Page) {
		l.Summary.Pages = append(l.Summary.Pages, entry.Page)
		slices.Sort(l.Summary.Pages)
	}
}

// SetDocuments hashes the original and redacted bytes.
func (l *AuditLog) SetDocuments(original, redacted []byte) {
	l.OriginalHash = GenerateDocumentHash(original)
	if len(redacted) > 0 {
		l.RedactedHash = GenerateDocumentHash(redacted)
	}
}

// entryID is stable for a given scan, page and rectangle.
func (l *AuditLog) entryID(target detector.RedactionTarget) string {
	data := fmt.Sprintf("%s|%d|%d|%.2f|%.2f|%.2f|%.2f", l.ScanID, len(l.Redactions), target.Page,
		target.X0, target.Y0, target.X1, target.Y1)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}

// ToJSON converts the audit log to indented JSON
func (l *AuditLog) ToJSON() ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// AuditLogFromJSON parses a log written by ToJSON.
func AuditLogFromJSON(data []byte) (*AuditLog, error) {
	var l AuditLog
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit log: %w", err)
	}
	return &l, nil
}

// RedactionsByRule returns the entries recorded for rule.
func (l *AuditLog) RedactionsByRule(rule string) []AuditEntry {
	var out []AuditEntry
	for _, e := range l.Redactions {
		if e.Rule == rule {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the log for completeness and consistency
func (l *AuditLog) Validate() error {
	if l.Document == "" {
		return fmt.Errorf("document cannot be empty")
	}
	if l.OriginalHash == "" {
		return fmt.Errorf("original_hash cannot be empty")
	}
	if l.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}
	if l.Summary.TotalRedactions != len(l.Redactions) {
		return fmt.Errorf("summary counts %d redactions, log has %d", l.Summary.TotalRedactions, len(l.Redactions))
	}
	for i, e := range l.Redactions {
		if e.ID == "" {
			return fmt.Errorf("redactions[%d].id cannot be empty", i)
		}
		if e.Rule == "" {
			return fmt.Errorf("redactions[%d].rule cannot be empty", i)
		}
		if e.Page < 0 {
			return fmt.Errorf("redactions[%d].page cannot be negative", i)
		}
		if e.X1 < e.X0 || e.Y1 < e.Y0 {
			return fmt.Errorf("redactions[%d] has an inverted rectangle", i)
		}
	}
	return nil
}

// GenerateDocumentHash returns the hex SHA-256 of content
func GenerateDocumentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// GenerateTextHash returns a short hash of matched text
func GenerateTextHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:8])
}
