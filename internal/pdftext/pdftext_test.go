// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdftext

import (
	"testing"

	"blackout/internal/pdftext/pdftest"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Invalid(t *testing.T) {
	_, err := Open([]byte("not a pdf"))
	assert.Error(t, err)

	_, err = Open(nil)
	assert.Error(t, err)
}

func TestPageRows_OrderAndGeometry(t *testing.T) {
	data := pdftest.Pages([]pdftest.Line{
		{X: 72, Y: 600, Size: 10, Text: "second"},
		{X: 72, Y: 700, Size: 10, Text: "first"},
	})
	r, err := Open(data)
	require.NoError(t, err)
	require.Equal(t, 1, r.NumPage())

	rows, err := PageRows(r.Page(1))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "first", RowText(rows[0]))
	assert.Equal(t, "second", RowText(rows[1]))

	g := rows[0].Glyphs[0]
	assert.InDelta(t, 72, g.X, 0.01)
	assert.InDelta(t, 700, g.Y, 0.01)
	assert.InDelta(t, 10, g.FontSize, 0.01)
	assert.InDelta(t, 6, g.W, 0.01)
}

func TestRowText_GapsBecomeSpaces(t *testing.T) {
	// two runs on one baseline separated by far more than a glyph
	data := pdftest.Pages([]pdftest.Line{
		{X: 72, Y: 700, Size: 10, Text: "Name:"},
		{X: 200, Y: 700, Size: 10, Text: "Hong"},
	})
	r, err := Open(data)
	require.NoError(t, err)

	rows, err := PageRows(r.Page(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Name: Hong", RowText(rows[0]))
}

func TestRowText_CollapsesSpaceGlyphs(t *testing.T) {
	row := Row{Glyphs: []pdf.Text{
		{S: "a", X: 0, W: 6, FontSize: 10},
		{S: " ", X: 6, W: 6, FontSize: 10},
		{S: " ", X: 12, W: 6, FontSize: 10},
		{S: "b", X: 18, W: 6, FontSize: 10},
		{S: " ", X: 24, W: 6, FontSize: 10},
	}}
	assert.Equal(t, "a b", RowText(row))
}

func TestPageText(t *testing.T) {
	data := pdftest.Pages([]pdftest.Line{
		{X: 72, Y: 700, Text: "hello world"},
		{X: 72, Y: 680, Text: "010-1234-5678"},
	})
	r, err := Open(data)
	require.NoError(t, err)

	text, err := PageText(r.Page(1))
	require.NoError(t, err)
	assert.Equal(t, "hello world\n010-1234-5678\n", text)
}

func TestFormFields(t *testing.T) {
	data := pdftest.Build(pdftest.Document{
		Pages:  [][]pdftest.Line{{{X: 72, Y: 700, Text: "form"}}},
		Fields: []pdftest.Field{{Name: "email", Value: "user@example.com"}, {Name: "empty", Value: ""}},
	})
	r, err := Open(data)
	require.NoError(t, err)

	fields, err := FormFields(r)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Name: "email", Value: "user@example.com"}, fields[0])
}
