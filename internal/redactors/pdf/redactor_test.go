// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"blackout/internal/detector"
	"blackout/internal/pdftext"
	"blackout/internal/pdftext/pdftest"
	"blackout/internal/redactors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPageDoc() detector.Document {
	return detector.Document{
		Name:      "in.pdf",
		MediaType: detector.MediaTypePDF,
		Data: pdftest.Pages(
			[]pdftest.Line{{X: 72, Y: 700, Size: 10, Text: "Tel 010-1234-5678"}},
			[]pdftest.Line{{X: 72, Y: 700, Size: 10, Text: "nothing"}},
		),
	}
}

func TestApply_OverlaysRectangles(t *testing.T) {
	doc := twoPageDoc()
	original := bytes.Clone(doc.Data)

	targets := []detector.RedactionTarget{
		{Page: 0, Rect: detector.Rect{X0: 96, Y0: 698, X1: 174, Y1: 708}, MatchedText: "010-1234-5678", Rule: "phone_mobile"},
	}
	out, err := NewRedactor(nil).Apply(context.Background(), doc, targets, redactors.FillBlack)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, original, doc.Data, "input must not be modified")

	r, err := pdftext.Open(out)
	require.NoError(t, err)
	require.Equal(t, 2, r.NumPage())

	content := r.Page(1).Content()
	require.Len(t, content.Rect, 1)
	assert.InDelta(t, 96, content.Rect[0].Min.X, 0.01)
	assert.InDelta(t, 698, content.Rect[0].Min.Y, 0.01)
	assert.InDelta(t, 174, content.Rect[0].Max.X, 0.01)
	assert.InDelta(t, 708, content.Rect[0].Max.Y, 0.01)

	// the text layer is still present under the overlay
	text, err := pdftext.PageText(r.Page(1))
	require.NoError(t, err)
	assert.Contains(t, text, "010-1234-5678")

	assert.Empty(t, r.Page(2).Content().Rect)
}

func TestApply_Errors(t *testing.T) {
	doc := twoPageDoc()
	box := detector.RedactionTarget{Page: 5, Rect: detector.Rect{X0: 1, Y0: 1, X1: 2, Y1: 2}}

	tests := []struct {
		name     string
		doc      detector.Document
		targets  []detector.RedactionTarget
		wantType redactors.RedactionErrorType
	}{
		{"page out of range", doc, []detector.RedactionTarget{box}, redactors.ErrorInvalidTarget},
		{"no targets", doc, nil, redactors.ErrorInvalidTarget},
		{"not a pdf", detector.Document{Name: "a.txt", Data: []byte("hi")}, []detector.RedactionTarget{box}, redactors.ErrorUnsupported},
		{"corrupt", detector.Document{Name: "a.pdf", Data: []byte("%PDF-1.4 junk")}, []detector.RedactionTarget{box}, redactors.ErrorDocumentProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedactor(nil).Apply(context.Background(), tt.doc, tt.targets, redactors.FillBlack)
			var re *redactors.RedactionError
			require.True(t, errors.As(err, &re), "got %v", err)
			assert.Equal(t, tt.wantType, re.Type)
		})
	}
}

func TestApply_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	targets := []detector.RedactionTarget{{Page: 0, Rect: detector.Rect{X0: 1, Y0: 1, X1: 2, Y1: 2}}}
	_, err := NewRedactor(nil).Apply(ctx, twoPageDoc(), targets, redactors.FillBlack)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOverlayContent(t *testing.T) {
	got := string(overlayContent([]detector.Rect{{X0: 20, Y0: 30, X1: 10, Y1: 40}}, redactors.FillWhite))
	assert.Equal(t, "Q\nq\n1 1 1 rg\n10.00 30.00 10.00 10.00 re\nf\nQ\n", got)

	black := string(overlayContent(nil, redactors.ParseFillStyle("purple")))
	assert.Contains(t, black, "0 0 0 rg")
}
