// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package spatial locates rule matches on PDF pages and returns their boxes
// in PDF user space.
package spatial

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"blackout/internal/detector"
	"blackout/internal/pdftext"
	"blackout/internal/rules"
	"blackout/internal/textnorm"
	"blackout/internal/validators"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

// numericToken is a word that may be one group of a card number.
var numericToken = regexp.MustCompile(`^[\d\- ]+$`)

// Baseline-relative extents of a glyph box, as fractions of the font size.
const (
	descent = 0.2
	ascent  = 0.8
)

// Detector finds rule matches in the text layer of each page.
type Detector struct {
	// Validation is passed to the rule validators that filter candidates.
	Validation validators.Options

	// Concurrency bounds the pages processed at once. Zero means GOMAXPROCS.
	Concurrency int
}

// NewDetector creates a detector with default validation.
func NewDetector() *Detector {
	return &Detector{}
}

type word struct {
	text string
	rect detector.Rect
}

// Detect returns one box per validated occurrence of the selected rules.
// Boxes are ordered by page, then by rule evaluation order, then by position.
func (d *Detector) Detect(ctx context.Context, doc detector.Document, selected []detector.RuleID) ([]detector.SpatialBox, error) {
	ruleset, err := rules.Resolve(selected)
	if err != nil {
		return nil, err
	}

	r, err := pdftext.Open(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %w", err)
	}

	pageCount := r.NumPage()
	perPage := make([][]detector.SpatialBox, pageCount)

	limit := d.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < pageCount; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			boxes, err := d.detectPage(r.Page(i+1), i, ruleset)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			perPage[i] = boxes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []detector.SpatialBox{}
	for _, boxes := range perPage {
		out = append(out, boxes...)
	}
	return out, nil
}

func (d *Detector) detectPage(p pdf.Page, pageIndex int, ruleset []*rules.Rule) (boxes []detector.SpatialBox, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			boxes = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	rows, err := pdftext.PageRows(p)
	if err != nil {
		return nil, err
	}
	words := pageWords(rows)
	if len(words) == 0 {
		return nil, nil
	}

	for _, rule := range ruleset {
		var found []candidate
		if rule.ID == rules.Card {
			found, err = cardCandidates(words, rule)
		} else {
			found, err = ruleCandidates(words, rule)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.ID, err)
		}

		for _, c := range found {
			if !rule.Validate(c.text, d.Validation) {
				continue
			}
			boxes = append(boxes, detector.SpatialBox{
				Page:        pageIndex,
				Rect:        c.rect,
				MatchedText: c.text,
				Rule:        rule.ID,
			})
		}
	}
	return boxes, nil
}

type candidate struct {
	text string
	rect detector.Rect
}

// cardCandidates buffers runs of numeric words, since card numbers are
// often typeset as separate groups, and keeps runs whose digits form a
// complete card number.
func cardCandidates(words []word, rule *rules.Rule) ([]candidate, error) {
	var (
		out   []candidate
		buf   strings.Builder
		start = -1
	)
	flush := func(end int) error {
		if start < 0 {
			return nil
		}
		defer func() {
			buf.Reset()
			start = -1
		}()
		ok, err := rule.FullMatch(textnorm.DigitsOnly(buf.String()))
		if err != nil || !ok {
			return err
		}
		out = append(out, candidate{text: buf.String(), rect: unionRect(words[start:end])})
		return nil
	}

	for i, w := range words {
		if numericToken.MatchString(w.text) {
			if start < 0 {
				start = i
			}
			buf.WriteString(w.text)
			continue
		}
		if err := flush(i); err != nil {
			return nil, err
		}
	}
	if err := flush(len(words)); err != nil {
		return nil, err
	}
	return out, nil
}

// ruleCandidates joins the words with single spaces, searches the result
// and maps each match back to the words it touches.
func ruleCandidates(words []word, rule *rules.Rule) ([]candidate, error) {
	starts := make([]int, len(words))
	var joined []rune
	for i, w := range words {
		if i > 0 {
			joined = append(joined, ' ')
		}
		starts[i] = len(joined)
		joined = append(joined, []rune(w.text)...)
	}

	spans, err := rule.FindAll(joined)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, 0, len(spans))
	for _, sp := range spans {
		first, last := -1, -1
		for i, w := range words {
			end := starts[i] + len([]rune(w.text))
			if end > sp.Start && starts[i] < sp.End {
				if first < 0 {
					first = i
				}
				last = i
			}
		}
		if first < 0 {
			continue
		}
		out = append(out, candidate{
			text: string(joined[sp.Start:sp.End]),
			rect: unionRect(words[first : last+1]),
		})
	}
	return out, nil
}

// pageWords splits each row into words at whitespace glyphs and at gaps
// wider than a fraction of the font size.
func pageWords(rows []pdftext.Row) []word {
	var words []word
	for _, row := range rows {
		var (
			text strings.Builder
			rect detector.Rect
			prev *pdf.Text
		)
		emit := func() {
			if text.Len() > 0 {
				words = append(words, word{text: text.String(), rect: rect})
			}
			text.Reset()
			prev = nil
		}

		for i := range row.Glyphs {
			g := row.Glyphs[i]
			if pdftext.IsSpace(g) {
				emit()
				continue
			}
			if prev != nil && pdftext.IsGap(*prev, g) {
				emit()
			}
			gr := glyphRect(g)
			if text.Len() == 0 {
				rect = gr
			} else {
				rect = rect.Union(gr)
			}
			text.WriteString(g.S)
			prev = &row.Glyphs[i]
		}
		emit()
	}
	return words
}

func glyphRect(g pdf.Text) detector.Rect {
	fs := g.FontSize
	if fs <= 0 {
		fs = pdftext.DefaultFontSize
	}
	return detector.Rect{
		X0: g.X,
		Y0: g.Y - descent*fs,
		X1: g.X + g.W,
		Y1: g.Y + ascent*fs,
	}
}

func unionRect(words []word) detector.Rect {
	r := words[0].rect
	for _, w := range words[1:] {
		r = r.Union(w.rect)
	}
	return r
}
