// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package validators

import (
	"regexp"
	"time"
)

var rrnShape = regexp.MustCompile(`^(\d{6})-(\d{7})$`)

var rrnWeights = [12]int{2, 3, 4, 5, 6, 7, 8, 9, 2, 3, 4, 5}

// RRN validates a resident registration number of the form YYMMDD-SXXXXXX.
// The seventh digit selects the century; the birth date must exist and must
// not lie in the future. The check digit is verified only when requested.
func RRN(value string, opts Options) bool {
	m := rrnShape.FindStringSubmatch(value)
	if m == nil {
		return false
	}
	if !rrnDateValid(m[1], int(m[2][0]-'0'), opts.now()) {
		return false
	}
	if opts.RRNChecksum {
		return RRNChecksum(value)
	}
	return true
}

// RRNChecksum verifies the 13th digit against the weighted sum of the first 12.
func RRNChecksum(value string) bool {
	if !rrnShape.MatchString(value) {
		return false
	}
	d := digits(value)
	total := 0
	for i, w := range rrnWeights {
		total += d[i] * w
	}
	check := (11 - total%11) % 10
	return check == d[12]
}

func rrnCentury(genderDigit int) (int, bool) {
	switch genderDigit {
	case 1, 2, 5, 6:
		return 1900, true
	case 3, 4, 7, 8:
		return 2000, true
	}
	return 0, false
}

func rrnDateValid(yymmdd string, genderDigit int, now time.Time) bool {
	century, ok := rrnCentury(genderDigit)
	if !ok {
		return false
	}
	d := digits(yymmdd)
	year := century + d[0]*10 + d[1]
	month := time.Month(d[2]*10 + d[3])
	day := d[4]*10 + d[5]

	born := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow; a real date round-trips
	if born.Year() != year || born.Month() != month || born.Day() != day {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !born.After(today)
}
