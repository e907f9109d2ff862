// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package validators

var biznoWeights = [9]int{1, 3, 7, 1, 3, 7, 1, 3, 5}

// BusinessRegistration verifies the check digit of a ten digit business
// registration number.
func BusinessRegistration(value string, _ Options) bool {
	d := digits(value)
	if len(d) != 10 {
		return false
	}
	s := 0
	for i, w := range biznoWeights {
		s += d[i] * w
	}
	s += d[8] * 5 / 10
	check := (10 - s%10) % 10
	return check == d[9]
}
