// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package validators holds the per-rule validity checks applied to pattern
// matches: date and checksum rules for resident registration numbers, Luhn
// for cards, area-code and length checks for phone numbers, and so on.
package validators

import (
	"time"
)

// Options tunes individual validators.
type Options struct {
	// RRNChecksum additionally verifies the resident registration check digit.
	RRNChecksum bool `json:"rrn_checksum" yaml:"rrn_checksum"`

	// Now anchors date checks. Zero means time.Now.
	Now func() time.Time `json:"-" yaml:"-"`
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Func reports whether value is a genuine instance of its rule.
type Func func(value string, opts Options) bool

// Safe wraps fn so that a panic counts as an invalid value.
func Safe(fn Func) Func {
	return func(value string, opts Options) (ok bool) {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		return fn(value, opts)
	}
}

func digits(s string) []int {
	out := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			out = append(out, int(c-'0'))
		}
	}
	return out
}
