// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pdf paints opaque boxes over redaction targets in a copy of a PDF.
//
// The overlay hides the glyphs visually; the underlying text operators stay
// in the original content stream.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"blackout/internal/detector"
	"blackout/internal/observability"
	"blackout/internal/redactors"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const componentName = "pdf_redactor"

var disableConfigDir sync.Once

// Redactor implements redactors.Redactor for PDF files using pdfcpu
type Redactor struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver
}

// NewRedactor creates a new PDF redactor
func NewRedactor(observer *observability.StandardObserver) *Redactor {
	// pdfcpu would otherwise create a config directory under the user's home
	disableConfigDir.Do(api.DisableConfigDir)
	return &Redactor{observer: observer}
}

// Name returns the name of the redactor
func (r *Redactor) Name() string { return componentName }

// Supports reports whether doc is a PDF.
func (r *Redactor) Supports(doc detector.Document) bool { return doc.IsPDF() }

// Apply paints one filled rectangle per target and returns the new file.
// Targets are grouped by page and each page receives a single overlay
// stream appended after its existing content.
func (r *Redactor) Apply(ctx context.Context, doc detector.Document, targets []detector.RedactionTarget, fill redactors.FillStyle) (out []byte, err error) {
	finishTiming := r.observer.StartTiming(componentName, "apply", doc.Name)
	defer func() {
		finishTiming(err == nil, map[string]interface{}{
			"target_count": len(targets),
			"fill":         fill.String(),
		})
	}()

	if !r.Supports(doc) {
		return nil, redactors.NewRedactionError(redactors.ErrorUnsupported, "not a PDF document", doc.Name, componentName, nil)
	}
	if len(targets) == 0 {
		return nil, redactors.NewRedactionError(redactors.ErrorInvalidTarget, "no redaction targets", doc.Name, componentName, nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = redactors.NewRedactionError(redactors.ErrorDocumentProcessing, "pdf processing panicked", doc.Name, componentName, fmt.Errorf("%v", rec))
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	// work on a private copy; the caller's bytes are never touched
	pctx, err := api.ReadContext(bytes.NewReader(bytes.Clone(doc.Data)), conf)
	if err != nil {
		return nil, redactors.NewRedactionError(redactors.ErrorDocumentProcessing, "failed to read PDF", doc.Name, componentName, err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, redactors.NewRedactionError(redactors.ErrorDocumentProcessing, "failed to count pages", doc.Name, componentName, err)
	}

	byPage := make(map[int][]detector.Rect)
	for _, t := range targets {
		if t.Page < 0 || t.Page >= pctx.PageCount {
			return nil, redactors.NewRedactionError(redactors.ErrorInvalidTarget,
				fmt.Sprintf("page %d out of range (document has %d pages)", t.Page, pctx.PageCount), doc.Name, componentName, nil)
		}
		byPage[t.Page] = append(byPage[t.Page], t.Rect)
	}

	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, redactors.NewRedactionError(redactors.ErrorCancelled, "redaction cancelled", doc.Name, componentName, err)
		}
		if err := overlayPage(pctx, p+1, byPage[p], fill); err != nil {
			return nil, redactors.NewRedactionError(redactors.ErrorDocumentProcessing,
				fmt.Sprintf("failed to overlay page %d", p), doc.Name, componentName, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, redactors.NewRedactionError(redactors.ErrorCancelled, "redaction cancelled", doc.Name, componentName, err)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pctx, &buf); err != nil {
		return nil, redactors.NewRedactionError(redactors.ErrorDocumentProcessing, "failed to write PDF", doc.Name, componentName, err)
	}
	return buf.Bytes(), nil
}

// overlayPage brackets the existing content in q/Q so that any graphics
// state it leaves behind is reset, then appends the fill stream.
func overlayPage(pctx *model.Context, pageNr int, rects []detector.Rect, fill redactors.FillStyle) error {
	pageDict, _, _, err := pctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if pageDict == nil {
		return fmt.Errorf("page %d not found", pageNr)
	}

	open, err := addStream(pctx, []byte("q\n"))
	if err != nil {
		return err
	}
	overlay, err := addStream(pctx, overlayContent(rects, fill))
	if err != nil {
		return err
	}

	contents := types.Array{*open}
	if obj, found := pageDict.Find("Contents"); found {
		switch o := obj.(type) {
		case types.IndirectRef:
			deref, err := pctx.XRefTable.Dereference(o)
			if err != nil {
				return err
			}
			if arr, ok := deref.(types.Array); ok {
				contents = append(contents, arr...)
			} else {
				contents = append(contents, o)
			}
		case types.Array:
			contents = append(contents, o...)
		}
	}
	contents = append(contents, *overlay)

	pageDict["Contents"] = contents
	return nil
}

func addStream(pctx *model.Context, content []byte) (*types.IndirectRef, error) {
	sd, err := pctx.XRefTable.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return pctx.XRefTable.IndRefForNewObject(*sd)
}

// overlayContent renders the rectangles as filled paths in user space.
func overlayContent(rects []detector.Rect, fill redactors.FillStyle) []byte {
	red, green, blue := fill.RGB()

	var b strings.Builder
	b.WriteString("Q\nq\n")
	fmt.Fprintf(&b, "%g %g %g rg\n", red, green, blue)
	for _, rc := range rects {
		x0, x1 := min(rc.X0, rc.X1), max(rc.X0, rc.X1)
		y0, y1 := min(rc.Y0, rc.Y1), max(rc.Y0, rc.Y1)
		fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re\n", x0, y0, x1-x0, y1-y0)
	}
	b.WriteString("f\nQ\n")
	return []byte(b.String())
}
