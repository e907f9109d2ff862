// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pdftest assembles small single-font PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// GlyphWidth is the advance of every glyph, in thousandths of the font size.
const GlyphWidth = 600

// Line is one run of text placed with an absolute text matrix.
type Line struct {
	X, Y float64
	Size float64
	Text string
}

// Field is a filled AcroForm text field.
type Field struct {
	Name  string
	Value string
}

// Document describes the PDF to build. Each entry of Pages is one page.
type Document struct {
	Pages  [][]Line
	Fields []Field
}

// Build serializes doc with a monospaced WinAnsi Courier font so that glyph
// positions are predictable: each character advances Size*0.6 points.
func Build(doc Document) []byte {
	if len(doc.Pages) == 0 {
		doc.Pages = [][]Line{nil}
	}

	// objects: 1 catalog, 2 pages, 3 font, then page/content pairs, then fields
	var objects []string
	pageIDs := make([]int, len(doc.Pages))
	for i := range doc.Pages {
		pageIDs[i] = 4 + 2*i
	}
	fieldBase := 4 + 2*len(doc.Pages)

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if len(doc.Fields) > 0 {
		refs := make([]string, len(doc.Fields))
		for i := range doc.Fields {
			refs[i] = fmt.Sprintf("%d 0 R", fieldBase+i)
		}
		catalog += " /AcroForm << /Fields [" + strings.Join(refs, " ") + "] >>"
	}
	objects = append(objects, catalog+" >>")

	kids := make([]string, len(pageIDs))
	for i, id := range pageIDs {
		kids[i] = fmt.Sprintf("%d 0 R", id)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageIDs)))

	widths := make([]string, 95)
	for i := range widths {
		widths[i] = fmt.Sprint(GlyphWidth)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths ["+strings.Join(widths, " ")+"] >>")

	for i, lines := range doc.Pages {
		objects = append(objects, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageIDs[i]+1))
		content := contentStream(lines)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	for _, f := range doc.Fields {
		objects = append(objects, fmt.Sprintf("<< /FT /Tx /T (%s) /V (%s) >>", escape(f.Name), escape(f.Value)))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// Pages is shorthand for a document with text lines only.
func Pages(pages ...[]Line) []byte {
	return Build(Document{Pages: pages})
}

func contentStream(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		size := l.Size
		if size <= 0 {
			size = 12
		}
		fmt.Fprintf(&b, "BT /F1 %g Tf 1 0 0 1 %g %g Tm (%s) Tj ET\n", size, l.X, l.Y, escape(l.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
