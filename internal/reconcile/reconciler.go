// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"blackout/internal/detector"
)

// ValidIndex answers "does some valid match of this rule normalize to this key".
type ValidIndex map[detector.RuleID]map[CanonicalKey]struct{}

// BuildValidIndex indexes the canonical keys of valid matches. Invalid
// matches never contribute.
func BuildValidIndex(n *Normalizer, matches []detector.TextMatch) ValidIndex {
	if n == nil {
		n = builtin
	}
	index := make(ValidIndex)
	for _, m := range matches {
		if !m.Valid {
			continue
		}
		keys, ok := index[m.Rule]
		if !ok {
			keys = make(map[CanonicalKey]struct{})
			index[m.Rule] = keys
		}
		keys[n.Normalize(m.Rule, m.Value)] = struct{}{}
	}
	return index
}

// Contains reports whether key is indexed under rule.
func (vi ValidIndex) Contains(rule detector.RuleID, key CanonicalKey) bool {
	keys, ok := vi[rule]
	if !ok {
		return false
	}
	_, ok = keys[key]
	return ok
}

// Len returns the number of distinct (rule, key) entries.
func (vi ValidIndex) Len() int {
	total := 0
	for _, keys := range vi {
		total += len(keys)
	}
	return total
}

// Reason explains a box decision.
type Reason string

const (
	ReasonAccepted     Reason = "accepted"
	ReasonUnattributed Reason = "unattributed"       // box carries no rule
	ReasonNoValidMatch Reason = "no_valid_match"     // nothing valid indexed for the rule
	ReasonKeyMismatch  Reason = "canonical_mismatch" // rule indexed, key absent
)

// Decision records the outcome for one input box.
type Decision struct {
	Box      detector.SpatialBox `json:"box"`
	Key      CanonicalKey        `json:"-"`
	Accepted bool                `json:"accepted"`
	Reason   Reason              `json:"reason"`
}

// Reconciler filters spatial boxes against validated text matches.
type Reconciler struct {
	normalizer *Normalizer
}

// NewReconciler creates a reconciler. A nil normalizer selects a fresh one
// with the built-in policy.
func NewReconciler(n *Normalizer) *Reconciler {
	if n == nil {
		n = NewNormalizer()
	}
	return &Reconciler{normalizer: n}
}

// Normalizer returns the normalizer the reconciler compares keys with.
func (r *Reconciler) Normalizer() *Normalizer { return r.normalizer }

// Decide returns one decision per box, in input order.
func (r *Reconciler) Decide(matches []detector.TextMatch, boxes []detector.SpatialBox) []Decision {
	decisions := make([]Decision, 0, len(boxes))
	if len(boxes) == 0 {
		return decisions
	}

	index := BuildValidIndex(r.normalizer, matches)
	for _, b := range boxes {
		d := Decision{Box: b}
		switch {
		case b.Rule == "":
			d.Reason = ReasonUnattributed
		default:
			d.Key = r.normalizer.Normalize(b.Rule, b.MatchedText)
			if _, ok := index[b.Rule]; !ok {
				d.Reason = ReasonNoValidMatch
			} else if index.Contains(b.Rule, d.Key) {
				d.Accepted = true
				d.Reason = ReasonAccepted
			} else {
				d.Reason = ReasonKeyMismatch
			}
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// Reconcile returns the accepted boxes as redaction targets. The filter is
// stable and keeps duplicates: the same value printed twice yields two targets.
func (r *Reconciler) Reconcile(matches []detector.TextMatch, boxes []detector.SpatialBox) []detector.RedactionTarget {
	targets := make([]detector.RedactionTarget, 0, len(boxes))
	for _, d := range r.Decide(matches, boxes) {
		if d.Accepted {
			targets = append(targets, d.Box)
		}
	}
	return targets
}

// Reconcile reconciles under the built-in policy.
func Reconcile(matches []detector.TextMatch, boxes []detector.SpatialBox) []detector.RedactionTarget {
	return NewReconciler(nil).Reconcile(matches, boxes)
}
