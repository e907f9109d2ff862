// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"bytes"
	"strings"
	"testing"

	"blackout/internal/logging"
)

func newTestObserver(t *testing.T, level ObservabilityLevel) (*StandardObserver, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewStandardObserver(level, l), &buf
}

func TestStartTiming_Levels(t *testing.T) {
	tests := []struct {
		level        ObservabilityLevel
		wantRecord   bool
		wantMetadata bool
	}{
		{ObservabilityOff, false, false},
		{ObservabilityMetrics, true, false},
		{ObservabilityDebug, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			o, buf := newTestObserver(t, tt.level)
			done := o.StartTiming("scan", "match", "doc.pdf")
			done(true, map[string]interface{}{"match_count": 3})

			out := buf.String()
			if got := strings.Contains(out, `"operation":"match"`); got != tt.wantRecord {
				t.Errorf("record emitted = %v, want %v (%s)", got, tt.wantRecord, out)
			}
			if got := strings.Contains(out, "match_count"); got != tt.wantMetadata {
				t.Errorf("metadata emitted = %v, want %v", got, tt.wantMetadata)
			}
		})
	}
}

func TestStartTiming_NilObserver(t *testing.T) {
	var o *StandardObserver
	o.StartTiming("scan", "extract", "")(false, nil)
	if o.Level() != ObservabilityOff {
		t.Error("nil observer should report off")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]ObservabilityLevel{
		"":        ObservabilityOff,
		"off":     ObservabilityOff,
		"Metrics": ObservabilityMetrics,
		"debug":   ObservabilityDebug,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
