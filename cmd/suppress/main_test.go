// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"blackout/internal/detector"
	"blackout/internal/suppressions"
)

func runSuppress(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// seed writes one disabled rule and returns the file path and its hash.
func seed(t *testing.T) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supp.yaml")
	sm := suppressions.NewSuppressionManager(path)
	match := detector.NewTextMatch("email", "alice@example.com", true, 0, 17, "")
	_, err := sm.GenerateSuppressionRules([]detector.TextMatch{match}, "generated", false)
	require.NoError(t, err)
	return path, sm.FindingHash(match)
}

func TestRun_RequiresAction(t *testing.T) {
	code, _, stderr := runSuppress()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "-action is required")

	code, _, stderr = runSuppress("-action", "explode")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown action 'explode'")
}

func TestRun_ListText(t *testing.T) {
	path, hash := seed(t)

	code, out, _ := runSuppress("-suppression-file", path, "-action", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Found 1 suppression rules")
	assert.Contains(t, out, "[disabled] "+hash)
	assert.Contains(t, out, "rule: email")
	assert.NotContains(t, out, "\x1b[")

	code, out, _ = runSuppress("-suppression-file", path, "-action", "list", "-enabled-only")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No suppression rules found.")
}

func TestRun_EnableDisableRoundTrip(t *testing.T) {
	path, hash := seed(t)

	code, out, stderr := runSuppress("-suppression-file", path, "-action", "enable", "-hash", hash, "-reason", "test fixture")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Suppression enabled for hash "+hash[:8])

	code, out, _ = runSuppress("-suppression-file", path, "-action", "list", "-format", "yaml")
	require.Equal(t, 0, code)
	var listed suppressions.SuppressionConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &listed))
	require.Len(t, listed.Rules, 1)
	assert.True(t, listed.Rules[0].Enabled)
	assert.Equal(t, "test fixture", listed.Rules[0].Reason)

	code, _, _ = runSuppress("-suppression-file", path, "-action", "disable", "-hash", hash)
	require.Equal(t, 0, code)
	assert.False(t, suppressions.NewSuppressionManager(path).ListSuppressions()[0].Enabled)

	code, _, stderr = runSuppress("-suppression-file", path, "-action", "enable")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "-hash is required for enable")
}

func TestRun_Remove(t *testing.T) {
	path, _ := seed(t)
	id := suppressions.NewSuppressionManager(path).ListSuppressions()[0].ID

	code, out, _ := runSuppress("-suppression-file", path, "-action", "remove", "-id", id)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Removed suppression rule "+id)
	assert.Empty(t, suppressions.NewSuppressionManager(path).ListSuppressions())

	code, _, stderr := runSuppress("-suppression-file", path, "-action", "remove", "-id", id)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestRun_CleanupKeepsLiveRules(t *testing.T) {
	path, _ := seed(t)

	code, out, _ := runSuppress("-suppression-file", path, "-action", "cleanup")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Cleaned up 0 expired suppression rules")
	assert.Len(t, suppressions.NewSuppressionManager(path).ListSuppressions(), 1)
}
