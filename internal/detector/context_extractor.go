// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

// Markers wrapped around the matched span in a context window.
const (
	ContextOpen  = "【"
	ContextClose = "】"
)

// ContextExtractor cuts a display window around a match
type ContextExtractor struct {
	// Number of characters before and after the match to include
	ContextChars int
}

// NewContextExtractor creates a new context extractor with default settings
func NewContextExtractor() *ContextExtractor {
	return &ContextExtractor{ContextChars: 25}
}

// WithContextChars sets the number of context characters
func (ce *ContextExtractor) WithContextChars(chars int) *ContextExtractor {
	ce.ContextChars = chars
	return ce
}

// Extract returns text[start-n:start] + "【" + text[start:end] + "】" + text[end:end+n].
// Offsets are rune indexes and are clamped to the text.
func (ce *ContextExtractor) Extract(text []rune, start, end int) string {
	n := len(text)
	start = clamp(start, 0, n)
	end = clamp(end, start, n)

	before := max(0, start-ce.ContextChars)
	after := min(n, end+ce.ContextChars)

	return string(text[before:start]) + ContextOpen + string(text[start:end]) + ContextClose + string(text[end:after])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
