// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"blackout/internal/detector"
	"blackout/internal/pdftext"

	"golang.org/x/sync/errgroup"
)

// PDFExtractor reads the text layer of a PDF. Scanned pages without text
// yield empty page text.
type PDFExtractor struct {
	// MaxPages truncates very large documents. Zero means no limit.
	MaxPages int
}

// NewPDFExtractor creates a PDF extractor without a page limit.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Name returns the extractor name.
func (e *PDFExtractor) Name() string { return "pdf" }

// Supports reports whether doc looks like a PDF.
func (e *PDFExtractor) Supports(doc detector.Document) bool { return doc.IsPDF() }

// Extract pulls the text of every page in parallel and joins them with page
// markers. AcroForm values are appended after the last page.
func (e *PDFExtractor) Extract(ctx context.Context, doc detector.Document) (*Extraction, error) {
	r, err := pdftext.Open(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %w", err)
	}

	pageCount := r.NumPage()
	if e.MaxPages > 0 && pageCount > e.MaxPages {
		pageCount = e.MaxPages
	}

	pages := make([]Page, pageCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < pageCount; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages[i] = Page{Number: i + 1}
			// unreadable pages keep empty text
			if text, err := pdftext.PageText(r.Page(i + 1)); err == nil {
				pages[i].Text = text
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&buf, "\n\n===== [Page %d] =====\n%s", p.Number, p.Text)
	}

	if fields, err := pdftext.FormFields(r); err == nil && len(fields) > 0 {
		buf.WriteString("\n\n===== [Form Fields] =====\n")
		for _, f := range fields {
			fmt.Fprintf(&buf, "%s: %s\n", f.Name, f.Value)
		}
	}

	return &Extraction{
		FullText: strings.TrimLeft(buf.String(), " \t\r\n"),
		Pages:    pages,
	}, nil
}
