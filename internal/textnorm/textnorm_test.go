// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package textnorm

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"zero width removed", "010\u200b-1234\ufeff-5678\u2060", "010-1234-5678"},
		{"nbsp to space", "a\u00a0b\u202fc\u2007d", "a b c d"},
		{"dashes unified", "900101\u20131234567 010\u22121234\u20145678", "900101-1234567 010-1234-5678"},
		{"full width digits", "\uff10\uff11\uff10-\uff11\uff12\uff13\uff14", "010-1234"},
		{"tabs and runs collapse", "a\t\t b   c", "a b c"},
		{"trailing spaces per line", "line one   \nline two\t\n", "line one\nline two\n"},
		{"leading space kept once", "   indented", " indented"},
		{"newlines preserved", "a\n\n\nb", "a\n\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"abc":            "",
		"010-1234-5678":  "01012345678",
		"4111 1111 1111": "411111111111",
		"４１１１":           "",
		"٤١١١ 1":         "1",
	}
	for in, want := range cases {
		if got := DigitsOnly(in); got != want {
			t.Errorf("DigitsOnly(%q) = %q, want %q", in, got, want)
		}
	}
}
