// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

// SecureString holds a matched PII value in a mutable buffer so that it can be
// zeroed once a scan result is no longer needed.
//
// Go may copy memory behind our back (GC moves, string conversions), so Clear
// narrows the exposure window but cannot prove every copy is gone.
type SecureString struct {
	data []byte
}

// NewSecureString copies s into a buffer owned by the SecureString.
func NewSecureString(s string) *SecureString {
	data := make([]byte, len(s))
	copy(data, s)
	return &SecureString{data: data}
}

// String returns an immutable copy of the value. A nil receiver yields "".
func (ss *SecureString) String() string {
	if ss == nil {
		return ""
	}
	return string(ss.data)
}

// Len returns the byte length of the held value.
func (ss *SecureString) Len() int {
	if ss == nil {
		return 0
	}
	return len(ss.data)
}

// Clear zeroes and releases the buffer. Safe to call more than once.
func (ss *SecureString) Clear() {
	if ss == nil {
		return
	}
	Zero(ss.data)
	ss.data = nil
}

// Zero overwrites b in place. Used for document buffers that carried PII.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
