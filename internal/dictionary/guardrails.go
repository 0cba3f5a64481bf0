package dictionary

import (
	"regexp"
	"strings"
)

// Learning quality gates and confidence contributions. Dictionary hits are
// capped below absolute certainty so a human correction can always win.
const (
	ExactMatchBoost = 35
	AliasMatchBoost = 30
	FuzzyMatchBoost = 20
	MaxConfidence   = 95

	MinOccurrences        = 2
	MinTotalSpend         = 5.00
	MinMerchantNameLength = 3
	MaxAliasesPerMerchant = 10
	MaxChangeHistory      = 10

	// DefaultArchiveDays is the inactivity window after which an entry is
	// soft-deleted.
	DefaultArchiveDays = 365

	// DefaultFuzzyThreshold is the minimum similarity for a fuzzy
	// suggestion.
	DefaultFuzzyThreshold = 0.7
)

// ValidCategories is the closed category set. Learning rejects anything
// outside it.
var ValidCategories = []string{
	"Groceries",
	"Dining & Restaurants",
	"Transportation",
	"Entertainment",
	"Shopping",
	"Health & Wellness",
	"Utilities",
	"Housing",
	"Transfer",
	"Income",
	"Other",
}

// ValidCategory reports whether c is a member of the closed category set.
func ValidCategory(c string) bool {
	for _, v := range ValidCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Generic terms that are never a merchant on their own.
var excludedMerchants = map[string]bool{
	"unknown": true, "debit": true, "credit": true,
	"payment": true, "purchase": true, "interac": true,
	"transfer": true, "withdrawal": true, "deposit": true,
}

// Description patterns for transfers and bank fees, which never enter the
// dictionary.
var excludedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^e-transfer`),
	regexp.MustCompile(`(?i)^internet transfer`),
	regexp.MustCompile(`(?i)^interac`),
	regexp.MustCompile(`(?i)monthly fee`),
	regexp.MustCompile(`(?i)service charge`),
	regexp.MustCompile(`(?i)nsf fee`),
	regexp.MustCompile(`(?i)overdraft`),
	regexp.MustCompile(`(?i)interest charge`),
	regexp.MustCompile(`(?i)annual fee`),
}

var referenceCodePattern = regexp.MustCompile(`^[\d\-]+$`)

// shouldExcludeTransaction checks whether a sample transaction disqualifies
// a learning request. Credits never teach the dictionary; neither do
// transfers or fee lines.
func shouldExcludeTransaction(txnType, description, normalizedKey string) (bool, string) {
	if txnType == "credit" {
		return true, "credit_transaction"
	}

	desc := strings.ToLower(description)
	for _, p := range excludedPatterns {
		if p.MatchString(desc) {
			return true, "excluded_pattern"
		}
	}

	key := strings.ToLower(normalizedKey)
	if excludedMerchants[key] {
		return true, "generic_merchant_" + key
	}
	if len(key) < MinMerchantNameLength {
		return true, "too_short"
	}

	return false, ""
}

// shouldExcludeMerchant checks the merchant identity itself.
func shouldExcludeMerchant(normalizedKey, displayName string) (bool, string) {
	key := strings.ToLower(normalizedKey)

	if excludedMerchants[key] {
		return true, "generic_merchant_" + key
	}
	if len(key) < MinMerchantNameLength {
		return true, "too_short"
	}
	if referenceCodePattern.MatchString(displayName) {
		return true, "reference_code"
	}

	return false, ""
}

// FuzzyMatchScore scores the similarity of two normalized keys in [0,1]:
// 1.0 for equality, length ratio when one contains the other, otherwise
// word-set overlap.
func FuzzyMatchScore(a, b string) float64 {
	if a == b {
		return 1.0
	}

	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return float64(shorter) / float64(longer)
	}

	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[w] = true
	}

	overlap := 0
	for w := range setA {
		if setB[w] {
			overlap++
		}
	}
	union := len(setA) + len(setB) - overlap
	if union == 0 {
		return 0.0
	}
	return float64(overlap) / float64(union)
}
