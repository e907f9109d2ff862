// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package suppressions lets operators silence known, accepted findings.
// Rules are keyed by a hash of the rule id and the canonical value, so the
// suppression file never holds raw PII.
package suppressions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"blackout/internal/detector"
	"blackout/internal/reconcile"
)

// DefaultFile is used when no suppression file is configured.
const DefaultFile = ".blackout-suppressions.yaml"

// DefaultExpiry is applied to generated rules that carry no expiry.
const DefaultExpiry = 7 * 24 * time.Hour

// SuppressionRule represents a single suppression rule
type SuppressionRule struct {
	ID         string            `yaml:"id"`
	Hash       string            `yaml:"hash"`
	Reason     string            `yaml:"reason"`
	Enabled    bool              `yaml:"enabled"`
	CreatedBy  string            `yaml:"created_by,omitempty"`
	CreatedAt  time.Time         `yaml:"created_at"`
	LastSeenAt *time.Time        `yaml:"last_seen_at,omitempty"`
	ExpiresAt  *time.Time        `yaml:"expires_at,omitempty"`
	Metadata   map[string]string `yaml:"metadata,omitempty"`
}

// SuppressionConfig represents the suppression configuration file
type SuppressionConfig struct {
	Version string            `yaml:"version"`
	Rules   []SuppressionRule `yaml:"rules"`
}

// SuppressionManager handles finding suppressions. It is safe for
// concurrent use.
type SuppressionManager struct {
	mu         sync.RWMutex
	configPath string
	config     *SuppressionConfig
	normalizer atomic.Pointer[reconcile.Normalizer]
	enabled    bool
	now        func() time.Time
}

// Option configures a SuppressionManager.
type Option func(*SuppressionManager)

// WithNormalizer hashes findings with n instead of a private normalizer
// carrying only the built-in policy.
func WithNormalizer(n *reconcile.Normalizer) Option {
	return func(sm *SuppressionManager) { sm.UseNormalizer(n) }
}

// NewSuppressionManager creates a new suppression manager. A missing or
// unreadable file yields an empty rule set.
func NewSuppressionManager(configPath string, opts ...Option) *SuppressionManager {
	if configPath == "" {
		configPath = DefaultFile
	}

	manager := &SuppressionManager{
		configPath: configPath,
		enabled:    true,
		now:        time.Now,
	}
	manager.normalizer.Store(reconcile.NewNormalizer())
	for _, opt := range opts {
		opt(manager)
	}

	manager.loadConfig()
	return manager
}

// UseNormalizer switches the normalizer behind FindingHash. A nil n is
// ignored.
func (sm *SuppressionManager) UseNormalizer(n *reconcile.Normalizer) {
	if n != nil {
		sm.normalizer.Store(n)
	}
}

// Normalizer returns the normalizer behind FindingHash.
func (sm *SuppressionManager) Normalizer() *reconcile.Normalizer {
	return sm.normalizer.Load()
}

func emptyConfig() *SuppressionConfig {
	return &SuppressionConfig{Version: "1.0", Rules: []SuppressionRule{}}
}

func (sm *SuppressionManager) loadConfig() {
	cleanPath := filepath.Clean(sm.configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		sm.config = emptyConfig()
		return
	}

	var config SuppressionConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		sm.config = emptyConfig()
		return
	}
	if config.Rules == nil {
		config.Rules = []SuppressionRule{}
	}
	sm.config = &config
}

// FindingHash returns the suppression key of a match: the hex SHA-256 of
// "rule|canonical value".
func (sm *SuppressionManager) FindingHash(match detector.TextMatch) string {
	key := sm.normalizer.Load().Normalize(match.Rule, match.Value)
	sum := sha256.Sum256([]byte(string(match.Rule) + "|" + string(key)))
	return hex.EncodeToString(sum[:])
}

func (sm *SuppressionManager) active(rule SuppressionRule, now time.Time) bool {
	return rule.Enabled && (rule.ExpiresAt == nil || now.Before(*rule.ExpiresAt))
}

// IsSuppressed checks if a finding should be suppressed
func (sm *SuppressionManager) IsSuppressed(match detector.TextMatch) (bool, *SuppressionRule) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.enabled {
		return false, nil
	}

	findingHash := sm.FindingHash(match)
	now := sm.now()
	for _, rule := range sm.config.Rules {
		if rule.Hash == findingHash && sm.active(rule, now) {
			return true, &rule
		}
	}
	return false, nil
}

// Filter splits matches into those that remain and those an active rule
// suppresses. Order is preserved in both outputs.
func (sm *SuppressionManager) Filter(matches []detector.TextMatch) ([]detector.TextMatch, []detector.SuppressedMatch) {
	kept := make([]detector.TextMatch, 0, len(matches))
	var suppressed []detector.SuppressedMatch
	for _, m := range matches {
		if ok, rule := sm.IsSuppressed(m); ok {
			suppressed = append(suppressed, detector.SuppressedMatch{
				Match:        m,
				SuppressedBy: rule.ID,
				RuleReason:   rule.Reason,
				ExpiresAt:    rule.ExpiresAt,
			})
			continue
		}
		kept = append(kept, m)
	}
	return kept, suppressed
}

// nextID returns the next sequential rule id. Callers hold the write lock.
func (sm *SuppressionManager) nextID() string {
	maxID := 0
	for _, existingRule := range sm.config.Rules {
		var num int
		if _, err := fmt.Sscanf(existingRule.ID, "SUP-%08d", &num); err == nil && num > maxID {
			maxID = num
		}
	}
	return fmt.Sprintf("SUP-%08d", maxID+1)
}

func (sm *SuppressionManager) newRule(match detector.TextMatch, hash, reason, createdBy string, enabled bool, expiresAt *time.Time, id string) SuppressionRule {
	now := sm.now()
	if expiresAt == nil {
		defaultExpiry := now.Add(DefaultExpiry)
		expiresAt = &defaultExpiry
	}
	return SuppressionRule{
		ID:         id,
		Hash:       hash,
		Reason:     reason,
		Enabled:    enabled,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		LastSeenAt: &now,
		ExpiresAt:  expiresAt,
		Metadata: map[string]string{
			"rule":     string(match.Rule),
			"strategy": sm.normalizer.Load().StrategyFor(match.Rule).String(),
		},
	}
}

// AddSuppression adds an enabled rule for match. A nil expiresAt defaults to
// one week from now.
func (sm *SuppressionManager) AddSuppression(match detector.TextMatch, reason, createdBy string, expiresAt *time.Time) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	findingHash := sm.FindingHash(match)
	for _, rule := range sm.config.Rules {
		if rule.Hash == findingHash {
			return fmt.Errorf("suppression rule already exists for this finding")
		}
	}

	rule := sm.newRule(match, findingHash, reason, createdBy, true, expiresAt, sm.nextID())
	sm.config.Rules = append(sm.config.Rules, rule)
	return sm.saveConfig()
}

// RemoveSuppression removes a suppression rule by ID
func (sm *SuppressionManager) RemoveSuppression(id string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i, rule := range sm.config.Rules {
		if rule.ID == id {
			sm.config.Rules = append(sm.config.Rules[:i], sm.config.Rules[i+1:]...)
			return sm.saveConfig()
		}
	}
	return fmt.Errorf("suppression rule with ID %s not found", id)
}

// EnableSuppressionByHash enables a suppression rule by hash
func (sm *SuppressionManager) EnableSuppressionByHash(hash, reason string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i := range sm.config.Rules {
		if sm.config.Rules[i].Hash == hash {
			sm.config.Rules[i].Enabled = true
			if reason != "" {
				sm.config.Rules[i].Reason = reason
			}
			now := sm.now()
			sm.config.Rules[i].LastSeenAt = &now
			return sm.saveConfig()
		}
	}
	return fmt.Errorf("suppression rule with hash %s not found", hash)
}

// DisableSuppressionByHash turns a rule off without removing it, so a
// later -generate-suppressions run does not add it again.
func (sm *SuppressionManager) DisableSuppressionByHash(hash string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i := range sm.config.Rules {
		if sm.config.Rules[i].Hash == hash {
			sm.config.Rules[i].Enabled = false
			return sm.saveConfig()
		}
	}
	return fmt.Errorf("suppression rule with hash %s not found", hash)
}

// ListSuppressions returns a copy of all suppression rules
func (sm *SuppressionManager) ListSuppressions() []SuppressionRule {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return append([]SuppressionRule(nil), sm.config.Rules...)
}

// saveConfig writes the rules back with owner-only permissions. Callers
// hold the write lock.
func (sm *SuppressionManager) saveConfig() error {
	data, err := yaml.Marshal(sm.config)
	if err != nil {
		return fmt.Errorf("failed to marshal suppression config: %w", err)
	}

	dir := filepath.Dir(sm.configPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(sm.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write suppression config: %w", err)
	}
	return nil
}

// CleanupExpired removes expired suppression rules and returns how many
// were dropped.
func (sm *SuppressionManager) CleanupExpired() (int, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	activeRules := make([]SuppressionRule, 0, len(sm.config.Rules))
	for _, rule := range sm.config.Rules {
		if rule.ExpiresAt == nil || now.Before(*rule.ExpiresAt) {
			activeRules = append(activeRules, rule)
		}
	}

	removed := len(sm.config.Rules) - len(activeRules)
	sm.config.Rules = activeRules
	if removed > 0 {
		return removed, sm.saveConfig()
	}
	return 0, nil
}

// GenerateSuppressionRules records a rule for every match not already
// covered, with the given enabled state, and refreshes last_seen_at on the
// rest. Generated rules start disabled in the usual review workflow.
func (sm *SuppressionManager) GenerateSuppressionRules(matches []detector.TextMatch, reason string, enabled bool) (added int, err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	existing := make(map[string]int, len(sm.config.Rules))
	for i := range sm.config.Rules {
		existing[sm.config.Rules[i].Hash] = i
	}

	now := sm.now()
	updated := 0
	for _, match := range matches {
		findingHash := sm.FindingHash(match)
		if i, ok := existing[findingHash]; ok {
			sm.config.Rules[i].LastSeenAt = &now
			updated++
			continue
		}

		rule := sm.newRule(match, findingHash, reason, "generate", enabled, nil, sm.nextID())
		sm.config.Rules = append(sm.config.Rules, rule)
		existing[findingHash] = len(sm.config.Rules) - 1
		added++
	}

	if added > 0 || updated > 0 {
		return added, sm.saveConfig()
	}
	return 0, nil
}

// SetEnabled enables or disables the suppression manager
func (sm *SuppressionManager) SetEnabled(enabled bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.enabled = enabled
}

// IsEnabled returns whether the suppression manager is enabled
func (sm *SuppressionManager) IsEnabled() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.enabled
}

// GetConfigPath returns the path to the suppression config file
func (sm *SuppressionManager) GetConfigPath() string {
	return sm.configPath
}
