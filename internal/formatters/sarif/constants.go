// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sarif

// SARIF specification constants
const (
	// SARIFSchemaURL is the URL to the SARIF 2.1.0 JSON schema
	SARIFSchemaURL = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/refs/heads/main/sarif-2.1/schema/sarif-schema-2.1.0.json"

	// SARIFVersion is the SARIF specification version
	SARIFVersion = "2.1.0"
)

// ToolName is reported as tool.driver.name
const ToolName = "blackout"

// SARIF level constants
const (
	// LevelError indicates a validated finding
	LevelError = "error"

	// LevelWarning indicates a pattern hit that failed validation
	LevelWarning = "warning"

	// LevelNone indicates a suppressed result
	LevelNone = "none"
)

// SuppressionKindExternal indicates the suppression is defined in the
// suppression file rather than in the document.
const SuppressionKindExternal = "external"

// RuleDescription contains the description information for a detection rule
type RuleDescription struct {
	Short string
	Full  string
	Help  string
}

// RuleDescriptions maps built-in rule ids to their descriptions
var RuleDescriptions = map[string]RuleDescription{
	"rrn": {
		Short: "Resident Registration Number Detected",
		Full:  "A resident registration number (YYMMDD-SXXXXXX) was found. It identifies a person uniquely and is protected personal information.",
		Help:  "Redact the number before the document leaves the controlled environment. Validity checks the birth date, the gender digit and optionally the checksum.",
	},
	"phone_mobile": {
		Short: "Mobile Phone Number Detected",
		Full:  "A mobile phone number with the 010 prefix was found.",
		Help:  "Mobile numbers identify a person. Redact them unless the document is meant to carry contact details.",
	},
	"phone_city": {
		Short: "Landline Phone Number Detected",
		Full:  "A landline phone number with a regional area code was found.",
		Help:  "Landline numbers may identify a household or a person. Review and redact when appropriate.",
	},
	"email": {
		Short: "Email Address Detected",
		Full:  "An email address was found in the document text.",
		Help:  "Email addresses are personal data in most privacy frameworks. Redact or replace them with role addresses.",
	},
	"card": {
		Short: "Payment Card Number Detected",
		Full:  "A 13 to 19 digit payment card number passing the Luhn check was found.",
		Help:  "Card numbers fall under PCI DSS. Redact them and make sure the source system tokenizes card data.",
	},
	"bizno": {
		Short: "Business Registration Number Detected",
		Full:  "A business registration number with a valid check digit was found.",
		Help:  "Business numbers are public for companies but identify sole proprietors. Review before sharing.",
	},
}

// GetRuleDescription returns the rule description for a given rule id.
// Unknown ids get a generic description.
func GetRuleDescription(ruleID string) RuleDescription {
	if desc, exists := RuleDescriptions[ruleID]; exists {
		return desc
	}

	return RuleDescription{
		Short: ruleID + " Detected",
		Full:  "Personal data of type " + ruleID + " was detected in the document.",
		Help:  "Review this finding and redact the value if it should not be shared.",
	}
}
