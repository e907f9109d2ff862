// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package rules finds rule-tagged PII occurrences in extracted text and
// classifies each one as valid or invalid.
package rules

import (
	"fmt"
	"time"

	"blackout/internal/detector"
	"blackout/internal/validators"

	"github.com/dlclark/regexp2"
)

// Built-in rule identifiers.
const (
	RRN         detector.RuleID = "rrn"
	PhoneMobile detector.RuleID = "phone_mobile"
	PhoneCity   detector.RuleID = "phone_city"
	Email       detector.RuleID = "email"
	Card        detector.RuleID = "card"
	BizNo       detector.RuleID = "bizno"
)

// matchTimeout bounds a single regex evaluation. The card pattern backtracks.
const matchTimeout = 2 * time.Second

// Rule pairs a search pattern with the validator that classifies its hits.
type Rule struct {
	ID          detector.RuleID
	Pattern     string
	Description string
	Validate    validators.Func

	expr *regexp2.Regexp
	full *regexp2.Regexp
}

// Span is a half-open rune range [Start, End).
type Span struct {
	Start int
	End   int
}

// Overlaps reports whether the two spans share at least one rune.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Expr returns the compiled search pattern.
func (r *Rule) Expr() *regexp2.Regexp { return r.expr }

// FindAll returns every non-overlapping match of the rule in text.
func (r *Rule) FindAll(text []rune) ([]Span, error) {
	var out []Span
	m, err := r.expr.FindRunesMatch(text)
	for err == nil && m != nil {
		out = append(out, Span{m.Index, m.Index + m.Length})
		m, err = r.expr.FindNextMatch(m)
	}
	return out, err
}

// FullMatch reports whether the whole of s matches the rule pattern.
func (r *Rule) FullMatch(s string) (bool, error) {
	return r.full.MatchString(s)
}

// Patterns use .NET semantics (regexp2): \b, \d and \s are Unicode-aware and
// lookaround is available, which the card pattern depends on.
var builtin = []*Rule{
	{
		ID:          RRN,
		Pattern:     `\b\d{6}-[1-8]\d{6}\b`,
		Description: "Resident registration number (YYMMDD-SXXXXXX)",
		Validate:    validators.RRN,
	},
	{
		ID:          PhoneMobile,
		Pattern:     `\b010[-.\s]?\d{3,4}[-.\s]?\d{4}\b`,
		Description: "Mobile phone number (010)",
		Validate:    validators.Mobile,
	},
	{
		ID:          PhoneCity,
		Pattern:     `\b(?:02|0(?:3[1-3]|4[1-4]|5[1-5]|6[1-4]))[-.\s]?\d{3,4}[-.\s]?\d{4}\b`,
		Description: "Landline phone number with area code",
		Validate:    validators.Landline,
	},
	{
		ID:          Email,
		Pattern:     `\b[a-zA-Z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		Description: "Email address",
		Validate:    validators.Email,
	},
	{
		ID:          Card,
		Pattern:     `(?<!\d)(?:\d[ -]?){13,19}(?!\d)`,
		Description: "Payment card number (Luhn)",
		Validate:    validators.Card,
	},
	{
		ID:          BizNo,
		Pattern:     `\b\d{3}-?\d{2}-?\d{5}\b`,
		Description: "Business registration number",
		Validate:    validators.BusinessRegistration,
	},
}

// matchOrder is the evaluation order; rrn must stay first because its spans
// are masked before the remaining rules run.
var matchOrder = []detector.RuleID{RRN, Email, PhoneMobile, PhoneCity, BizNo, Card}

var byID = map[detector.RuleID]*Rule{}

func init() {
	for _, r := range builtin {
		expr, err := regexp2.Compile(r.Pattern, regexp2.None)
		if err != nil {
			panic(fmt.Sprintf("rules: invalid built-in pattern for %s: %v", r.ID, err))
		}
		expr.MatchTimeout = matchTimeout
		full := regexp2.MustCompile(`^(?:`+r.Pattern+`)$`, regexp2.None)
		full.MatchTimeout = matchTimeout
		r.expr = expr
		r.full = full
		r.Validate = validators.Safe(r.Validate)
		byID[r.ID] = r
	}
}

// IDs returns the built-in rule identifiers in evaluation order.
func IDs() []detector.RuleID {
	out := make([]detector.RuleID, len(matchOrder))
	copy(out, matchOrder)
	return out
}

// Lookup returns a built-in rule by id.
func Lookup(id detector.RuleID) (*Rule, bool) {
	r, ok := byID[id]
	return r, ok
}

// Validate runs the validator of rule id against value. Unknown rules are
// reported as valid so that callers with custom rules are not blocked.
func Validate(id detector.RuleID, value string, opts validators.Options) bool {
	r, ok := byID[id]
	if !ok || r.Validate == nil {
		return true
	}
	return r.Validate(value, opts)
}

// Resolve returns the selected rules in evaluation order. An empty selection
// means every built-in rule.
func Resolve(selected []detector.RuleID) ([]*Rule, error) {
	if len(selected) == 0 {
		out := make([]*Rule, 0, len(matchOrder))
		for _, id := range matchOrder {
			out = append(out, byID[id])
		}
		return out, nil
	}

	want := make(map[detector.RuleID]bool, len(selected))
	for _, id := range selected {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRule, id)
		}
		want[id] = true
	}

	out := make([]*Rule, 0, len(want))
	for _, id := range matchOrder {
		if want[id] {
			out = append(out, byID[id])
		}
	}
	return out, nil
}
