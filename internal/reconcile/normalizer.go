// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package reconcile decides which spatially detected boxes are authoritative
// redaction targets by comparing them against validated text matches.
package reconcile

import (
	"strings"
	"sync"

	"blackout/internal/detector"
	"blackout/internal/textnorm"
)

// CanonicalKey is the comparison form of a raw value under a rule.
type CanonicalKey string

// Strategy selects how a rule's raw values are canonicalized.
type Strategy int

const (
	// TrimOnly strips leading and trailing whitespace.
	TrimOnly Strategy = iota
	// DigitsOnly keeps ASCII 0-9 and drops everything else.
	DigitsOnly
	// CaseFold lower-cases the value without trimming.
	CaseFold
)

func (s Strategy) String() string {
	switch s {
	case TrimOnly:
		return "trim_only"
	case DigitsOnly:
		return "digits_only"
	case CaseFold:
		return "case_fold"
	default:
		return "unknown"
	}
}

// builtinPolicy covers the rule ids emitted by internal/rules plus the
// generic names other matchers use for the same categories.
var builtinPolicy = map[detector.RuleID]Strategy{
	"national_id":           DigitsOnly,
	"rrn":                   DigitsOnly,
	"foreign_registration":  DigitsOnly,
	"frn":                   DigitsOnly,
	"card":                  DigitsOnly,
	"phone_mobile":          DigitsOnly,
	"mobile":                DigitsOnly,
	"phone_city":            DigitsOnly,
	"landline":              DigitsOnly,
	"bizno":                 DigitsOnly,
	"business_registration": DigitsOnly,
	"email":                 CaseFold,
}

// Normalizer maps (rule, raw value) pairs to canonical keys through a
// registration table. Unregistered rules fall back to TrimOnly.
type Normalizer struct {
	mu     sync.RWMutex
	policy map[detector.RuleID]Strategy
}

// NewNormalizer returns a normalizer preloaded with the built-in policy.
func NewNormalizer() *Normalizer {
	policy := make(map[detector.RuleID]Strategy, len(builtinPolicy))
	for rule, s := range builtinPolicy {
		policy[rule] = s
	}
	return &Normalizer{policy: policy}
}

// builtin backs the package-level Normalize. Nothing registers into it.
var builtin = NewNormalizer()

// Register assigns a strategy to a rule, replacing any previous entry.
func (n *Normalizer) Register(rule detector.RuleID, s Strategy) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.policy[rule] = s
}

// StrategyFor returns the strategy applied to rule.
func (n *Normalizer) StrategyFor(rule detector.RuleID) Strategy {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if s, ok := n.policy[rule]; ok {
		return s
	}
	return TrimOnly
}

// Normalize canonicalizes raw under rule. It is total: every input,
// including the empty string, produces a key.
func (n *Normalizer) Normalize(rule detector.RuleID, raw string) CanonicalKey {
	switch n.StrategyFor(rule) {
	case DigitsOnly:
		return CanonicalKey(textnorm.DigitsOnly(raw))
	case CaseFold:
		return CanonicalKey(strings.ToLower(raw))
	default:
		return CanonicalKey(strings.TrimSpace(raw))
	}
}

// Normalize canonicalizes raw under the built-in policy.
func Normalize(rule detector.RuleID, raw string) CanonicalKey {
	return builtin.Normalize(rule, raw)
}
