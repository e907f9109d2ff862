// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"errors"
	"regexp"
	"unicode"

	"blackout/internal/detector"
	"blackout/internal/textnorm"
	"blackout/internal/validators"
)

// ErrUnknownRule is returned when a caller selects a rule that does not exist.
var ErrUnknownRule = errors.New("unknown rule")

// rrnLike catches card candidates that are really an RRN with odd separators.
var rrnLike = regexp.MustCompile(`^\d{6}[-\s]?\d{7}$`)

// Options controls a single Match call.
type Options struct {
	// Normalize runs textnorm.NormalizeText before matching. Offsets refer to
	// the normalized text, which Result.Text carries.
	Normalize bool `json:"normalize" yaml:"normalize"`

	validators.Options `yaml:",inline"`
}

// DefaultOptions normalizes and skips the RRN checksum.
func DefaultOptions() Options {
	return Options{Normalize: true}
}

// Result is the outcome of matching one text.
type Result struct {
	Counts map[detector.RuleID]int `json:"counts"`
	Items  []detector.TextMatch    `json:"items"`

	// Text is the string the item offsets index into.
	Text string `json:"-"`
}

// Matcher applies the built-in rules to text.
type Matcher struct {
	context *detector.ContextExtractor
}

// NewMatcher creates a matcher with a 25 character context window.
func NewMatcher() *Matcher {
	return &Matcher{context: detector.NewContextExtractor()}
}

// Match finds every occurrence of the selected rules in text.
//
// RRN runs first and its spans are masked so that the digits of a resident
// registration number are not reported again as a card or business number.
// Card candidates on a line that still holds an RRN shape, adjacent to other
// digits, or shaped like an RRN are dropped; afterwards card items overlapping
// an RRN and landline items overlapping a mobile number are removed.
func (m *Matcher) Match(ctx context.Context, text string, selected []detector.RuleID, opts Options) (*Result, error) {
	ruleset, err := Resolve(selected)
	if err != nil {
		return nil, err
	}

	original := text
	if opts.Normalize {
		original = textnorm.NormalizeText(text)
	}
	origRunes := []rune(original)
	working := make([]rune, len(origRunes))
	copy(working, origRunes)

	var items []detector.TextMatch
	for _, rule := range ruleset {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		spans, err := rule.FindAll(working)
		if err != nil {
			return nil, err
		}

		for _, sp := range spans {
			value := string(origRunes[sp.Start:sp.End])
			if rule.ID == Card {
				skip, err := m.skipCard(working, sp, value)
				if err != nil {
					return nil, err
				}
				if skip {
					continue
				}
			}
			items = append(items, detector.NewTextMatch(
				rule.ID,
				value,
				rule.Validate(value, opts.Options),
				sp.Start,
				sp.End,
				m.context.Extract(origRunes, sp.Start, sp.End),
			))
		}

		if rule.ID == RRN {
			maskSpans(working, spans)
		}
	}

	items = dropOverlapping(items, Card, RRN)
	items = dropOverlapping(items, PhoneCity, PhoneMobile)

	counts := make(map[detector.RuleID]int, len(builtin))
	for _, r := range builtin {
		counts[r.ID] = 0
	}
	for _, it := range items {
		counts[it.Rule]++
	}

	if items == nil {
		items = []detector.TextMatch{}
	}
	return &Result{Counts: counts, Items: items, Text: original}, nil
}

func (m *Matcher) skipCard(working []rune, sp Span, value string) (bool, error) {
	lineStart := sp.Start
	for lineStart > 0 && working[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := sp.End
	for lineEnd < len(working) && working[lineEnd] != '\n' {
		lineEnd++
	}
	onRRNLine, err := byID[RRN].expr.MatchRunes(working[lineStart:lineEnd])
	if err != nil {
		return false, err
	}
	if onRRNLine {
		return true, nil
	}

	if sp.Start > 0 && unicode.IsDigit(working[sp.Start-1]) {
		return true, nil
	}
	if sp.End < len(working) && unicode.IsDigit(working[sp.End]) {
		return true, nil
	}
	return rrnLike.MatchString(value), nil
}

// maskSpans overwrites digits, dashes and spaces inside spans with 'R',
// preserving length so offsets stay aligned with the original text.
func maskSpans(text []rune, spans []Span) {
	for _, sp := range spans {
		for i := max(0, sp.Start); i < min(sp.End, len(text)); i++ {
			if r := text[i]; unicode.IsDigit(r) || r == '-' || r == ' ' {
				text[i] = 'R'
			}
		}
	}
}

// dropOverlapping removes victim items that overlap any item of rule by.
func dropOverlapping(items []detector.TextMatch, victim, by detector.RuleID) []detector.TextMatch {
	var blockers []Span
	for _, it := range items {
		if it.Rule == by {
			blockers = append(blockers, Span{it.Index, it.End})
		}
	}
	if len(blockers) == 0 {
		return items
	}

	kept := items[:0]
	for _, it := range items {
		if it.Rule == victim && overlapsAny(Span{it.Index, it.End}, blockers) {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

func overlapsAny(s Span, others []Span) bool {
	for _, o := range others {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}
