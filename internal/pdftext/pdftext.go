// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pdftext reads positioned glyphs from a PDF text layer and groups
// them into rows. It is shared by text extraction and spatial detection.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// DefaultFontSize is assumed when a glyph carries no size.
const DefaultFontSize = 12.0

// SpaceRatio is the gap, as a fraction of the font size, that separates words.
const SpaceRatio = 0.2

// ErrNoPages is returned for documents whose page tree is empty.
var ErrNoPages = errors.New("pdf has no pages")

// Row is a line of glyphs sharing a baseline, ordered left to right.
type Row struct {
	Y      float64
	Glyphs []pdf.Text
}

// Open parses a PDF held in memory. Parser panics are returned as errors.
func Open(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if r.NumPage() < 1 {
		return nil, ErrNoPages
	}
	return r, nil
}

// PageRows returns the glyph rows of a page from top to bottom.
func PageRows(p pdf.Page) (rows []Row, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			rows = nil
			err = fmt.Errorf("page content: %v", rec)
		}
	}()

	if p.V.IsNull() {
		return nil, errors.New("null page")
	}

	byLine := map[int64]*Row{}
	for _, g := range p.Content().Text {
		if g.S == "" || g.S == "\n" {
			continue
		}
		if g.FontSize <= 0 {
			g.FontSize = DefaultFontSize
		}
		if g.W <= 0 {
			g.W = g.FontSize * 0.5
		}
		key := int64(math.Round(g.Y))
		row, ok := byLine[key]
		if !ok {
			row = &Row{Y: g.Y}
			byLine[key] = row
		}
		row.Glyphs = append(row.Glyphs, g)
	}

	rows = make([]Row, 0, len(byLine))
	for _, row := range byLine {
		sort.SliceStable(row.Glyphs, func(i, j int) bool { return row.Glyphs[i].X < row.Glyphs[j].X })
		rows = append(rows, *row)
	}
	// PDF Y grows upwards, so higher rows come first.
	sort.Slice(rows, func(i, j int) bool { return rows[i].Y > rows[j].Y })
	return rows, nil
}

// IsGap reports whether the horizontal distance between a and the following
// glyph b is wide enough to be a word break.
func IsGap(a, b pdf.Text) bool {
	fontSize := a.FontSize
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	return b.X-(a.X+a.W) > fontSize*SpaceRatio
}

// IsSpace reports whether the glyph is whitespace.
func IsSpace(g pdf.Text) bool {
	return strings.TrimFunc(g.S, unicode.IsSpace) == ""
}

// RowText rebuilds the text of a row, inserting a single space at word gaps.
func RowText(row Row) string {
	var buf strings.Builder
	lastSpace := true
	for i, g := range row.Glyphs {
		if i > 0 && !lastSpace && !IsSpace(g) && IsGap(row.Glyphs[i-1], g) {
			buf.WriteByte(' ')
		}
		if IsSpace(g) {
			if !lastSpace {
				buf.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		buf.WriteString(g.S)
		lastSpace = false
	}
	return strings.TrimRight(buf.String(), " ")
}

// PageText returns the text of a page one row per line. When the glyph
// walk fails it falls back to the row and then the plain-text readers of
// the pdf library.
func PageText(p pdf.Page) (string, error) {
	rows, err := PageRows(p)
	if err == nil {
		var buf strings.Builder
		for _, row := range rows {
			line := RowText(row)
			if line == "" {
				continue
			}
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		return buf.String(), nil
	}

	if byRow, rowErr := p.GetTextByRow(); rowErr == nil {
		var buf strings.Builder
		for _, row := range byRow {
			for _, t := range row.Content {
				buf.WriteString(t.S)
			}
			buf.WriteByte('\n')
		}
		return buf.String(), nil
	}
	return p.GetPlainText(nil)
}

// Field is an AcroForm field with a value.
type Field struct {
	Name  string
	Value string
}

// FormFields returns the filled-in AcroForm fields of the document.
func FormFields(r *pdf.Reader) (fields []Field, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fields = nil
			err = fmt.Errorf("acroform: %v", rec)
		}
	}()

	root := r.Trailer().Key("Root")
	if root.IsNull() {
		return nil, errors.New("no document catalog found")
	}
	acroForm := root.Key("AcroForm")
	if acroForm.IsNull() {
		return nil, nil
	}
	list := acroForm.Key("Fields")
	if list.Kind() != pdf.Array {
		return nil, nil
	}
	for i := 0; i < list.Len(); i++ {
		fields = collectField(list.Index(i), "", fields, 0)
	}
	return fields, nil
}

// collectField walks the field tree; terminal fields contribute name and value.
func collectField(field pdf.Value, parent string, out []Field, depth int) []Field {
	if field.Kind() != pdf.Dict || depth > 16 {
		return out
	}

	name := parent
	if t := field.Key("T"); t.Kind() == pdf.String {
		if name != "" {
			name += "."
		}
		name += t.Text()
	}

	if kids := field.Key("Kids"); kids.Kind() == pdf.Array && kids.Len() > 0 {
		for i := 0; i < kids.Len(); i++ {
			out = collectField(kids.Index(i), name, out, depth+1)
		}
		return out
	}

	value := fieldValue(field.Key("V"))
	if value == "" {
		value = fieldValue(field.Key("DV"))
	}
	if name != "" && value != "" {
		out = append(out, Field{Name: name, Value: value})
	}
	return out
}

func fieldValue(v pdf.Value) string {
	switch v.Kind() {
	case pdf.String:
		return v.Text()
	case pdf.Name:
		return v.Name()
	}
	return ""
}
