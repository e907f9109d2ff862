// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package validators

import (
	"regexp"
	"strings"
)

var strictEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@(?:[A-Za-z0-9-]+\.)+[A-Za-z]{2,}$`)

// Email applies a stricter shape than the search pattern: every domain label
// must be non-empty and the TLD alphabetic.
func Email(value string, _ Options) bool {
	return strictEmail.MatchString(strings.TrimSpace(value))
}
