// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package validators

import (
	"regexp"
	"strings"

	"blackout/internal/textnorm"
)

var areaCode = regexp.MustCompile(`^(?:02|0(?:3[1-3]|4[1-4]|5[1-5]|6[1-4]))`)

// Mobile accepts 010 numbers with exactly eleven digits.
func Mobile(value string, _ Options) bool {
	d := textnorm.DigitsOnly(value)
	return strings.HasPrefix(d, "010") && len(d) == 11
}

// Landline accepts numbers with a known area code. Seoul (02) numbers carry
// 9 or 10 digits, the other regions 10 or 11.
func Landline(value string, _ Options) bool {
	d := textnorm.DigitsOnly(value)
	if !areaCode.MatchString(d) {
		return false
	}
	if strings.HasPrefix(d, "02") {
		return len(d) == 9 || len(d) == 10
	}
	return len(d) == 10 || len(d) == 11
}
