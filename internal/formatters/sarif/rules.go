// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sarif

import (
	"sort"
	"sync"

	"blackout/internal/detector"
	"blackout/internal/rules"
)

// RuleManager caches SARIF rule definitions so each rule id is described once
// per report.
type RuleManager struct {
	rules map[string]*SARIFRule
	mu    sync.RWMutex
}

// NewRuleManager creates a new RuleManager instance
func NewRuleManager() *RuleManager {
	return &RuleManager{
		rules: make(map[string]*SARIFRule),
	}
}

// GetOrCreateRule retrieves an existing rule or creates a new one for the
// given rule id
func (rm *RuleManager) GetOrCreateRule(ruleID string) *SARIFRule {
	rm.mu.RLock()
	if rule, exists := rm.rules[ruleID]; exists {
		rm.mu.RUnlock()
		return rule
	}
	rm.mu.RUnlock()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	// Double-check in case another goroutine created it
	if rule, exists := rm.rules[ruleID]; exists {
		return rule
	}

	rule := rm.buildRule(ruleID)
	rm.rules[ruleID] = rule
	return rule
}

// GetAllRules returns the cached rules sorted by id
func (rm *RuleManager) GetAllRules() []SARIFRule {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]SARIFRule, 0, len(rm.rules))
	for _, rule := range rm.rules {
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (rm *RuleManager) buildRule(ruleID string) *SARIFRule {
	desc := GetRuleDescription(ruleID)

	rule := &SARIFRule{
		ID:               ruleID,
		ShortDescription: SARIFMessage{Text: desc.Short},
		FullDescription:  SARIFMessage{Text: desc.Full},
		Help:             SARIFMessage{Text: desc.Help},
	}
	if builtin, ok := rules.Lookup(detector.RuleID(ruleID)); ok {
		rule.Properties = map[string]interface{}{"pattern": builtin.Pattern}
	}
	return rule
}
