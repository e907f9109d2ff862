// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package validators

import "blackout/internal/textnorm"

// Card accepts 13 to 19 digit numbers that pass the Luhn check.
func Card(value string, _ Options) bool {
	d := textnorm.DigitsOnly(value)
	if len(d) < 13 || len(d) > 19 {
		return false
	}
	return luhnCheck(d)
}

func luhnCheck(number string) bool {
	sum := 0
	isDouble := false

	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if isDouble {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		isDouble = !isDouble
	}

	return sum%10 == 0
}
