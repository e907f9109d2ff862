// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"testing"

	"blackout/internal/detector"
)

func box(rule detector.RuleID, text string, page int) detector.SpatialBox {
	return detector.SpatialBox{
		Page:        page,
		Rect:        detector.Rect{X0: 10, Y0: 10, X1: 50, Y1: 20},
		MatchedText: text,
		Rule:        rule,
	}
}

func match(rule detector.RuleID, value string, valid bool) detector.TextMatch {
	return detector.TextMatch{Rule: rule, Value: value, Valid: valid, Context: "..."}
}

func TestReconcile_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		matches []detector.TextMatch
		boxes   []detector.SpatialBox
		want    int
	}{
		{
			name:    "digits-only key matches across formatting",
			matches: []detector.TextMatch{match("national_id", "123-456", true)},
			boxes:   []detector.SpatialBox{box("national_id", "123456", 0)},
			want:    1,
		},
		{
			name:    "email compares case-insensitively",
			matches: []detector.TextMatch{match("email", "A@X.com", true)},
			boxes:   []detector.SpatialBox{box("email", "a@x.com", 0)},
			want:    1,
		},
		{
			name:    "invalid card match rejects box",
			matches: []detector.TextMatch{match("card", "4111 1111 1111 1111", false)},
			boxes:   []detector.SpatialBox{box("card", "4111111111111111", 0)},
			want:    0,
		},
		{
			name:    "cross-rule value does not reconcile",
			matches: []detector.TextMatch{match("bizno", "123-45-67890", true)},
			boxes:   []detector.SpatialBox{box("card", "1234567890", 0)},
			want:    0,
		},
		{
			name:    "detector artifact with different digits is rejected",
			matches: []detector.TextMatch{match("phone_mobile", "010-1234-5678", true)},
			boxes:   []detector.SpatialBox{box("phone_mobile", "010-1234-5679", 0)},
			want:    0,
		},
		{
			name:    "unknown rule compares trimmed values",
			matches: []detector.TextMatch{match("passport", " M1234 ", true)},
			boxes:   []detector.SpatialBox{box("passport", "M1234", 0), box("passport", "m1234", 0)},
			want:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.matches, tt.boxes)
			if len(got) != tt.want {
				t.Fatalf("expected %d targets, got %d: %+v", tt.want, len(got), got)
			}
		})
	}
}

func TestReconcile_EmptyInputs(t *testing.T) {
	boxes := []detector.SpatialBox{box("email", "a@x.com", 0), box("card", "4111111111111111", 1)}
	matches := []detector.TextMatch{match("email", "a@x.com", true)}

	if got := Reconcile(nil, boxes); len(got) != 0 {
		t.Errorf("no matches should select nothing, got %d", len(got))
	}
	if got := Reconcile([]detector.TextMatch{}, boxes); len(got) != 0 {
		t.Errorf("empty matches should select nothing, got %d", len(got))
	}
	if got := Reconcile(matches, nil); got == nil || len(got) != 0 {
		t.Errorf("no boxes should yield an empty non-nil slice, got %#v", got)
	}
}

func TestReconcile_InvalidMatchNeverSelects(t *testing.T) {
	matches := []detector.TextMatch{
		match("card", "4111-1111-1111-1112", false),
		match("card", "4111 1111 1111 1112", false),
	}
	boxes := []detector.SpatialBox{box("card", "4111111111111112", 0)}

	if got := Reconcile(matches, boxes); len(got) != 0 {
		t.Fatalf("invalid matches must not contribute, got %+v", got)
	}

	// a valid duplicate of the same value does contribute
	matches = append(matches, match("card", "4111111111111112", true))
	if got := Reconcile(matches, boxes); len(got) != 1 {
		t.Fatalf("expected the valid occurrence to select the box, got %d", len(got))
	}
}

func TestReconcile_UnattributedBoxRejected(t *testing.T) {
	matches := []detector.TextMatch{
		match("", "a@x.com", true),
		match("email", "a@x.com", true),
	}
	boxes := []detector.SpatialBox{box("", "a@x.com", 0)}

	if got := Reconcile(matches, boxes); len(got) != 0 {
		t.Fatalf("box without rule must be rejected, got %+v", got)
	}

	decisions := NewReconciler(nil).Decide(matches, boxes)
	if decisions[0].Reason != ReasonUnattributed {
		t.Errorf("expected reason %s, got %s", ReasonUnattributed, decisions[0].Reason)
	}
}

func TestReconcile_StableAndKeepsDuplicates(t *testing.T) {
	matches := []detector.TextMatch{
		match("phone_mobile", "010-1234-5678", true),
		match("email", "a@x.com", true),
	}
	boxes := []detector.SpatialBox{
		box("email", "A@X.COM", 2),
		box("phone_mobile", "01012345678", 0),
		box("card", "4111111111111111", 0),
		box("phone_mobile", "010 1234 5678", 1),
		box("email", "a@x.com", 0),
	}

	got := Reconcile(matches, boxes)
	want := []int{0, 1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %d targets, got %d", len(want), len(got))
	}
	for i, idx := range want {
		if got[i] != boxes[idx] {
			t.Errorf("target %d = %+v, want input box %d %+v", i, got[i], idx, boxes[idx])
		}
	}
}

func TestDecide_Reasons(t *testing.T) {
	matches := []detector.TextMatch{match("email", "a@x.com", true)}
	boxes := []detector.SpatialBox{
		box("email", "a@x.com", 0),
		box("email", "b@x.com", 0),
		box("card", "4111111111111111", 0),
		box("", "a@x.com", 0),
	}

	want := []Reason{ReasonAccepted, ReasonKeyMismatch, ReasonNoValidMatch, ReasonUnattributed}
	decisions := NewReconciler(NewNormalizer()).Decide(matches, boxes)
	for i, d := range decisions {
		if d.Reason != want[i] {
			t.Errorf("box %d: reason %s, want %s", i, d.Reason, want[i])
		}
		if d.Accepted != (want[i] == ReasonAccepted) {
			t.Errorf("box %d: accepted=%v inconsistent with reason %s", i, d.Accepted, d.Reason)
		}
	}
}

func TestBuildValidIndex_SetSemantics(t *testing.T) {
	matches := []detector.TextMatch{
		match("rrn", "900101-1234567", true),
		match("rrn", "9001011234567", true),
		match("rrn", "900101 1234567", true),
		match("rrn", "000000-0000000", false),
		match("email", "A@x.com", true),
	}

	index := BuildValidIndex(nil, matches)
	if index.Len() != 2 {
		t.Errorf("expected 2 distinct entries, got %d", index.Len())
	}
	if !index.Contains("rrn", "9001011234567") {
		t.Error("expected rrn key to be indexed")
	}
	if index.Contains("rrn", "0000000000000") {
		t.Error("invalid match must not be indexed")
	}
	if !index.Contains("email", "a@x.com") {
		t.Error("expected lower-cased email key")
	}
	if index.Contains("card", "") {
		t.Error("absent rule must not report membership")
	}
}
