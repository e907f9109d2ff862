// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"testing"
)

func TestNewSecureString_StoresValue(t *testing.T) {
	ss := NewSecureString("900101-1234567")
	if ss.String() != "900101-1234567" {
		t.Errorf("expected stored value, got %q", ss.String())
	}
	if ss.Len() != len("900101-1234567") {
		t.Errorf("expected len %d, got %d", len("900101-1234567"), ss.Len())
	}
}

func TestSecureString_Clear(t *testing.T) {
	ss := NewSecureString("user@example.com")
	ss.Clear()
	if ss.String() != "" {
		t.Errorf("expected empty string after Clear, got %q", ss.String())
	}
	// second Clear must not panic
	ss.Clear()
}

func TestSecureString_NilReceiver(t *testing.T) {
	var ss *SecureString
	if ss.String() != "" || ss.Len() != 0 {
		t.Error("nil SecureString should behave as empty")
	}
	ss.Clear()
}

func TestZero(t *testing.T) {
	buf := []byte("%PDF-1.4 010-1234-5678")
	Zero(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %v", i, b)
		}
	}
	Zero(nil)
}
