// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package extract turns uploaded documents into plain text for rule matching.
package extract

import (
	"context"
	"errors"
	"fmt"

	"blackout/internal/detector"
)

var (
	// ErrUnsupported is returned when no extractor accepts the document.
	ErrUnsupported = errors.New("unsupported document type")

	// ErrTooLarge is returned when the document exceeds the configured size cap.
	ErrTooLarge = errors.New("document exceeds size limit")
)

// Page is the text of one page, slide or sheet. Number is 1-based.
type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

// Extraction is the text recovered from a document.
type Extraction struct {
	FullText string `json:"full_text"`
	Pages    []Page `json:"pages"`
}

// Extractor handles one family of document formats.
type Extractor interface {
	Name() string
	Supports(doc detector.Document) bool
	Extract(ctx context.Context, doc detector.Document) (*Extraction, error)
}

// Registry dispatches documents to the first extractor that supports them.
type Registry struct {
	extractors []Extractor
	maxBytes   int64
}

// NewRegistry creates a registry. A maxBytes of zero disables the size cap.
func NewRegistry(maxBytes int64, extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors, maxBytes: maxBytes}
}

// NewDefaultRegistry registers the PDF, Office Open XML and plain text
// extractors, in that order.
func NewDefaultRegistry(maxBytes int64) *Registry {
	return NewRegistry(maxBytes, NewPDFExtractor(), NewOOXMLExtractor(), NewPlainTextExtractor())
}

// Register appends an extractor.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Names lists the registered extractors.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		out = append(out, e.Name())
	}
	return out
}

// Extract enforces the size cap and runs the matching extractor.
func (r *Registry) Extract(ctx context.Context, doc detector.Document) (*Extraction, error) {
	if r.maxBytes > 0 && int64(len(doc.Data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, len(doc.Data), r.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, e := range r.extractors {
		if e.Supports(doc) {
			res, err := e.Extract(ctx, doc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Name(), err)
			}
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupported, doc.Name, doc.MediaType)
}
