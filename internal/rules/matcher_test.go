// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blackout/internal/detector"
	"blackout/internal/validators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		Normalize: true,
		Options: validators.Options{
			Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
		},
	}
}

func itemsFor(res *Result, id detector.RuleID) []detector.TextMatch {
	var out []detector.TextMatch
	for _, it := range res.Items {
		if it.Rule == id {
			out = append(out, it)
		}
	}
	return out
}

func TestMatch_RRN(t *testing.T) {
	res, err := NewMatcher().Match(context.Background(), "주민번호 900101-1234568 입니다", nil, testOptions())
	require.NoError(t, err)

	rrns := itemsFor(res, RRN)
	require.Len(t, rrns, 1)
	assert.Equal(t, "900101-1234568", rrns[0].Value)
	assert.True(t, rrns[0].Valid)
	assert.Equal(t, 5, rrns[0].Index)
	assert.Equal(t, 19, rrns[0].End)

	assert.Equal(t, 1, res.Counts[RRN])
	assert.Equal(t, 0, res.Counts[Card])
	assert.Equal(t, 0, res.Counts[BizNo])
}

func TestMatch_CountsAreZeroFilled(t *testing.T) {
	res, err := NewMatcher().Match(context.Background(), "nothing to see here", nil, testOptions())
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	for _, id := range IDs() {
		count, ok := res.Counts[id]
		assert.True(t, ok, "missing count for %s", id)
		assert.Zero(t, count)
	}
}

func TestMatch_Context(t *testing.T) {
	res, err := NewMatcher().Match(context.Background(), "abc 900101-1234568 def", []detector.RuleID{RRN}, testOptions())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "abc 【900101-1234568】 def", res.Items[0].Context)
}

func TestMatch_ChecksumOption(t *testing.T) {
	opts := testOptions()
	opts.RRNChecksum = true

	res, err := NewMatcher().Match(context.Background(), "900101-1234567", []detector.RuleID{RRN}, opts)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.False(t, res.Items[0].Valid)
}

func TestMatch_EmailAndMobile(t *testing.T) {
	text := "contact: user@example.com, tel 010-1234-5678"
	res, err := NewMatcher().Match(context.Background(), text, nil, testOptions())
	require.NoError(t, err)

	emails := itemsFor(res, Email)
	require.Len(t, emails, 1)
	assert.Equal(t, "user@example.com", emails[0].Value)
	assert.True(t, emails[0].Valid)

	mobiles := itemsFor(res, PhoneMobile)
	require.Len(t, mobiles, 1)
	assert.Equal(t, "010-1234-5678", mobiles[0].Value)
	assert.True(t, mobiles[0].Valid)

	assert.Equal(t, 0, res.Counts[PhoneCity])
	assert.Equal(t, 0, res.Counts[Card])
}

func TestMatch_Card(t *testing.T) {
	res, err := NewMatcher().Match(context.Background(), "카드 4111 1111 1111 1111 결제", nil, testOptions())
	require.NoError(t, err)

	cards := itemsFor(res, Card)
	require.Len(t, cards, 1)
	assert.Equal(t, "4111 1111 1111 1111", strings.TrimSpace(cards[0].Value))
	assert.True(t, cards[0].Valid)
}

func TestMatch_CardSkippedOnRRNLine(t *testing.T) {
	// without the rrn rule nothing is masked, so the line check applies
	res, err := NewMatcher().Match(context.Background(), "900101-1234568 4111111111111111", []detector.RuleID{Card}, testOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Counts[Card])
}

func TestMatch_CardSkippedWhenShapedLikeRRN(t *testing.T) {
	res, err := NewMatcher().Match(context.Background(), "번호 9001011234568 끝", nil, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Counts[Card])
}

func TestMatch_RRNDigitsNotReusedByOtherRules(t *testing.T) {
	res, err := NewMatcher().Match(context.Background(), "900101-1234568", nil, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[RRN])
	assert.Len(t, res.Items, 1)
}

func TestMatch_LandlineInsideMobileDropped(t *testing.T) {
	res, err := NewMatcher().Match(context.Background(), "010 031 1234 5678", nil, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[PhoneMobile])
	assert.Equal(t, 0, res.Counts[PhoneCity])
}

func TestMatch_Normalize(t *testing.T) {
	text := "tel 010\u20121234\u20125678"

	res, err := NewMatcher().Match(context.Background(), text, []detector.RuleID{PhoneMobile}, testOptions())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "010-1234-5678", res.Items[0].Value)
	assert.Equal(t, "tel 010-1234-5678", res.Text)

	raw := testOptions()
	raw.Normalize = false
	res, err = NewMatcher().Match(context.Background(), text, []detector.RuleID{PhoneMobile}, raw)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, text, res.Text)
}

func TestMatch_RuleSelection(t *testing.T) {
	text := "user@example.com 900101-1234568"
	res, err := NewMatcher().Match(context.Background(), text, []detector.RuleID{Email}, testOptions())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, Email, res.Items[0].Rule)
	assert.Equal(t, 0, res.Counts[RRN])
}

func TestMatch_UnknownRule(t *testing.T) {
	_, err := NewMatcher().Match(context.Background(), "x", []detector.RuleID{"passport"}, testOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRule))
}

func TestMatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMatcher().Match(ctx, "900101-1234568", nil, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_Order(t *testing.T) {
	rs, err := Resolve([]detector.RuleID{Card, RRN, Email, Card})
	require.NoError(t, err)
	got := make([]detector.RuleID, 0, len(rs))
	for _, r := range rs {
		got = append(got, r.ID)
	}
	assert.Equal(t, []detector.RuleID{RRN, Email, Card}, got)

	all, err := Resolve(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(IDs()))
}

func TestValidate(t *testing.T) {
	opts := validators.Options{Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }}
	assert.True(t, Validate(Card, "4111111111111111", opts))
	assert.False(t, Validate(Card, "4111111111111112", opts))
	assert.True(t, Validate(BizNo, "220-81-62481", opts))
	assert.True(t, Validate("custom", "anything", opts))
}
