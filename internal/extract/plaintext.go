// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"blackout/internal/detector"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainTextExtractor passes UTF-8 text through unchanged.
type PlainTextExtractor struct {
	extensions map[string]bool
}

// NewPlainTextExtractor creates an extractor for common text extensions.
func NewPlainTextExtractor() *PlainTextExtractor {
	exts := []string{".txt", ".text", ".log", ".md", ".markdown", ".csv", ".tsv", ".json", ".jsonl", ".yaml", ".yml", ".xml", ".html", ".htm"}
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return &PlainTextExtractor{extensions: m}
}

// Name returns the extractor name.
func (e *PlainTextExtractor) Name() string { return "plaintext" }

// Supports accepts text/* media types and known text extensions.
func (e *PlainTextExtractor) Supports(doc detector.Document) bool {
	mt := doc.BaseMediaType()
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	return e.extensions[doc.Ext()]
}

// Extract returns the document as a single page. Invalid UTF-8 is rejected.
func (e *PlainTextExtractor) Extract(_ context.Context, doc detector.Document) (*Extraction, error) {
	data := bytes.TrimPrefix(doc.Data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupported)
	}
	text := string(data)
	return &Extraction{
		FullText: text,
		Pages:    []Page{{Number: 1, Text: text}},
	}, nil
}
