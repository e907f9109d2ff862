// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package suppressions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"blackout/internal/detector"
	"blackout/internal/reconcile"
)

func newTestMatch(rule detector.RuleID, value string) detector.TextMatch {
	return detector.NewTextMatch(rule, value, true, 0, len([]rune(value)), "")
}

func TestNewSuppressionManager_NoFile(t *testing.T) {
	sm := NewSuppressionManager("/nonexistent/path.yaml")
	if sm == nil {
		t.Fatal("expected non-nil manager")
	}
	if !sm.IsEnabled() {
		t.Error("suppression manager should be enabled by default")
	}
	if len(sm.ListSuppressions()) != 0 {
		t.Error("expected no rules")
	}
}

func TestAddAndIsSuppressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppressions.yaml")

	sm := NewSuppressionManager(path)
	match := newTestMatch("email", "Test@Example.com")

	if err := sm.AddSuppression(match, "test reason", "tester", nil); err != nil {
		t.Fatalf("AddSuppression failed: %v", err)
	}

	suppressed, rule := sm.IsSuppressed(match)
	if !suppressed || rule == nil {
		t.Fatal("match should be suppressed")
	}
	if rule.Reason != "test reason" {
		t.Errorf("expected reason 'test reason', got %q", rule.Reason)
	}
	if rule.ID != "SUP-00000001" {
		t.Errorf("unexpected id %q", rule.ID)
	}

	// Same canonical value under a different surface form.
	if ok, _ := sm.IsSuppressed(newTestMatch("email", "test@example.com")); !ok {
		t.Error("case variants of a suppressed email should be suppressed")
	}
	if ok, _ := sm.IsSuppressed(newTestMatch("email", "other@example.com")); ok {
		t.Error("different value must not be suppressed")
	}

	if err := sm.AddSuppression(match, "again", "tester", nil); err == nil {
		t.Error("expected duplicate suppression to fail")
	}
}

func TestFindingHash_SeparatorInvariantAndRuleScoped(t *testing.T) {
	sm := NewSuppressionManager(filepath.Join(t.TempDir(), "s.yaml"))

	a := sm.FindingHash(newTestMatch("rrn", "900101-1234568"))
	b := sm.FindingHash(newTestMatch("rrn", "900101 1234568"))
	if a != b {
		t.Error("digit-only rules should hash separator variants identically")
	}
	if a == sm.FindingHash(newTestMatch("card", "900101-1234568")) {
		t.Error("hash must include the rule id")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %q", a)
	}
}

func TestSuppressionFileHoldsNoRawValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppressions.yaml")
	sm := NewSuppressionManager(path)
	if err := sm.AddSuppression(newTestMatch("phone_mobile", "010-1234-5678"), "known test number", "", nil); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "010-1234-5678") || strings.Contains(string(data), "01012345678") {
		t.Error("suppression file must not contain the matched value")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestIsSuppressed_DisabledAndExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppressions.yaml")
	sm := NewSuppressionManager(path)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return now }

	disabled := newTestMatch("email", "disabled@example.com")
	if _, err := sm.GenerateSuppressionRules([]detector.TextMatch{disabled}, "review", false); err != nil {
		t.Fatal(err)
	}
	if ok, _ := sm.IsSuppressed(disabled); ok {
		t.Error("disabled rule must not suppress")
	}
	if err := sm.EnableSuppressionByHash(sm.FindingHash(disabled), "approved"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := sm.IsSuppressed(disabled); !ok {
		t.Error("enabled rule should suppress")
	}

	expiry := now.Add(time.Hour)
	expiring := newTestMatch("email", "soon@example.com")
	if err := sm.AddSuppression(expiring, "temporary", "", &expiry); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)
	if ok, _ := sm.IsSuppressed(expiring); ok {
		t.Error("expired rule must not suppress")
	}

	removed, err := sm.CleanupExpired()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired rule removed, got %d", removed)
	}
}

func TestFilter(t *testing.T) {
	sm := NewSuppressionManager(filepath.Join(t.TempDir(), "s.yaml"))
	known := newTestMatch("email", "known@example.com")
	if err := sm.AddSuppression(known, "company address", "", nil); err != nil {
		t.Fatal(err)
	}

	matches := []detector.TextMatch{
		newTestMatch("email", "a@example.com"),
		known,
		newTestMatch("rrn", "900101-1234568"),
	}
	kept, suppressed := sm.Filter(matches)

	if len(kept) != 2 || kept[0].Value != "a@example.com" || kept[1].Rule != "rrn" {
		t.Errorf("unexpected kept matches %+v", kept)
	}
	if len(suppressed) != 1 {
		t.Fatalf("expected 1 suppressed match, got %d", len(suppressed))
	}
	if suppressed[0].SuppressedBy != "SUP-00000001" || suppressed[0].RuleReason != "company address" {
		t.Errorf("unexpected suppression record %+v", suppressed[0])
	}

	sm.SetEnabled(false)
	kept, suppressed = sm.Filter(matches)
	if len(kept) != 3 || len(suppressed) != 0 {
		t.Error("disabled manager should suppress nothing")
	}
}

func TestGenerateSuppressionRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppressions.yaml")
	sm := NewSuppressionManager(path)

	matches := []detector.TextMatch{
		newTestMatch("email", "a@example.com"),
		newTestMatch("email", "A@EXAMPLE.COM"),
		newTestMatch("rrn", "900101-1234568"),
	}
	added, err := sm.GenerateSuppressionRules(matches, "generated", false)
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Errorf("expected 2 rules (case variants share one), got %d", added)
	}

	added, err = sm.GenerateSuppressionRules(matches, "generated", false)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Errorf("expected no new rules on rerun, got %d", added)
	}

	reloaded := NewSuppressionManager(path)
	rules := reloaded.ListSuppressions()
	if len(rules) != 2 {
		t.Fatalf("expected 2 persisted rules, got %d", len(rules))
	}
	if rules[1].ID != "SUP-00000002" || rules[1].Enabled {
		t.Errorf("unexpected second rule %+v", rules[1])
	}
	if rules[0].ExpiresAt == nil {
		t.Error("generated rules should carry a default expiry")
	}
}

func TestRemoveSuppression(t *testing.T) {
	sm := NewSuppressionManager(filepath.Join(t.TempDir(), "s.yaml"))
	match := newTestMatch("email", "x@example.com")
	if err := sm.AddSuppression(match, "r", "", nil); err != nil {
		t.Fatal(err)
	}

	if err := sm.RemoveSuppression("SUP-00000001"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := sm.IsSuppressed(match); ok {
		t.Error("removed rule must not suppress")
	}
	if err := sm.RemoveSuppression("SUP-00000001"); err == nil {
		t.Error("expected error removing a missing rule")
	}
}

func TestEnableAndDisableByHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppressions.yaml")
	sm := NewSuppressionManager(path)
	match := newTestMatch("card", "4111 1111 1111 1111")

	if _, err := sm.GenerateSuppressionRules([]detector.TextMatch{match}, "generated", false); err != nil {
		t.Fatalf("GenerateSuppressionRules failed: %v", err)
	}
	hash := sm.FindingHash(match)

	if err := sm.EnableSuppressionByHash(hash, "accepted test card"); err != nil {
		t.Fatalf("EnableSuppressionByHash failed: %v", err)
	}
	if ok, _ := NewSuppressionManager(path).IsSuppressed(match); !ok {
		t.Error("enabled rule should suppress after reload")
	}

	if err := sm.DisableSuppressionByHash(hash); err != nil {
		t.Fatalf("DisableSuppressionByHash failed: %v", err)
	}
	reloaded := NewSuppressionManager(path)
	if ok, _ := reloaded.IsSuppressed(match); ok {
		t.Error("disabled rule should not suppress")
	}
	if got := reloaded.ListSuppressions(); len(got) != 1 || got[0].Reason != "accepted test card" {
		t.Errorf("disable should keep the rule, got %+v", got)
	}

	if err := sm.DisableSuppressionByHash("missing"); err == nil {
		t.Error("expected error for unknown hash")
	}
}

func TestWithNormalizer_SharesRegisteredStrategies(t *testing.T) {
	n := reconcile.NewNormalizer()
	n.Register("passport", reconcile.DigitsOnly)

	shared := NewSuppressionManager(filepath.Join(t.TempDir(), "a.yaml"), WithNormalizer(n))
	private := NewSuppressionManager(filepath.Join(t.TempDir(), "b.yaml"))

	a := newTestMatch("passport", "M-123-45")
	b := newTestMatch("passport", "M 12345")
	if shared.FindingHash(a) != shared.FindingHash(b) {
		t.Error("registered digits_only strategy should ignore separators")
	}
	if private.FindingHash(a) == private.FindingHash(b) {
		t.Error("a private normalizer trims only and should tell the values apart")
	}
	if shared.Normalizer() != n {
		t.Error("Normalizer should return the injected normalizer")
	}

	private.UseNormalizer(n)
	if private.FindingHash(a) != shared.FindingHash(a) {
		t.Error("UseNormalizer should switch the hashing policy")
	}
}
