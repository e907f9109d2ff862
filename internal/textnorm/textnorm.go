// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package textnorm cleans extracted document text so rule patterns see a
// predictable character repertoire.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// zeroWidth runes are removed outright.
var zeroWidth = map[rune]bool{
	'\u200B': true,
	'\u200C': true,
	'\u200D': true,
	'\u2060': true,
	'\uFEFF': true,
}

// dashes are unified to ASCII '-'.
var dashes = map[rune]bool{
	'\u2010': true,
	'\u2011': true,
	'\u2012': true,
	'\u2013': true,
	'\u2014': true,
	'\u2212': true,
	'\uFE63': true,
	'\u2043': true,
}

// NormalizeText applies, in order: NFKC, newline unification, removal of
// zero-width runes, exotic spaces to ' ', dash unification, collapse of
// horizontal whitespace runs, and per-line right trim. Newlines survive.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}

	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case zeroWidth[r]:
			continue
		case r == '\n':
			// trailing spaces on a line are dropped
			pendingSpace = false
			b.WriteRune('\n')
			continue
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		}

		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		if dashes[r] {
			r = '-'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DigitsOnly returns the ASCII digits of s.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
