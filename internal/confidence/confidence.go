package confidence

import (
	"regexp"
	"strings"

	"github.com/finsight/statement-ledger/internal/dictionary"
	"github.com/finsight/statement-ledger/internal/models"
	"github.com/finsight/statement-ledger/internal/normalize"
)

// Confidence tiers.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"

	highTierFloor   = 80
	mediumTierFloor = 60

	// DefaultReviewThreshold separates auto-accepted transactions from the
	// needs-review bucket.
	DefaultReviewThreshold = 60

	// lowConfidenceCap bounds candidates from ambiguous extraction paths
	// (glued-number splits, reconciliation drift) below the review
	// threshold so they always surface for review.
	lowConfidenceCap = 50
)

// Config tunes the scorer.
type Config struct {
	ReviewThreshold int
}

func (c Config) threshold() int {
	if c.ReviewThreshold <= 0 {
		return DefaultReviewThreshold
	}
	return c.ReviewThreshold
}

// Merchants whose presence in a normalized key marks a strong, unambiguous
// pattern.
var strongMerchants = []string{
	"uber", "starbucks", "tim", "hortons", "mcdonalds", "amazon",
	"netflix", "spotify", "apple", "google", "walmart", "target",
	"shoppers", "loblaws", "metro", "food", "basics", "sobeys",
	"wealthsimple", "goodlife", "fitness", "sportchek", "marks",
	"rexall", "pharmacy", "lemonade",
}

var transferKinds = []string{"interac", "transfer", "banking", "payment", "preauthorized"}

var genericKeys = map[string]bool{
	"unknown": true, "debit": true, "credit": true,
	"purchase": true, "payment": true, "transfer": true,
}

var digitPattern = regexp.MustCompile(`\d`)

// PatternStrength scores how unambiguous a normalization looks, 0-100,
// independent of dictionary membership.
func PatternStrength(description, normalizedKey string) int {
	if description == "" || normalizedKey == "" {
		return 0
	}

	key := strings.ToLower(normalizedKey)

	// Transfers are mechanics, not merchants; they never need review.
	for _, kind := range transferKinds {
		if strings.Contains(key, kind) {
			return 95
		}
	}

	score := 70

	for _, m := range strongMerchants {
		if strings.Contains(key, m) {
			score += 25
			break
		}
	}

	wordCount := len(strings.Fields(key))
	if wordCount == 1 && len(key) >= 4 {
		score += 15
	}

	if digitPattern.MatchString(key) {
		score -= 25
	}
	if len(key) < 3 {
		score -= 30
	}
	if wordCount > 4 {
		score -= 15 * (wordCount - 4)
	}
	if genericKeys[key] {
		score -= 40
	}

	return clamp(score, 0, 100)
}

// Score combines the pattern signal with a dictionary-match signal and
// classifies the transaction into a tier. Reads the dictionary, never
// mutates it.
func Score(cand models.TransactionCandidate, norm normalize.Result, dict *dictionary.Dictionary, cfg Config) models.ScoredTransaction {
	scored := models.ScoredTransaction{
		TransactionCandidate: cand,
		NormalizedKey:        norm.Key,
		DisplayName:          norm.Display,
		Kind:                 norm.Kind,
		Category:             norm.CategoryHint,
	}

	score := PatternStrength(cand.Description, norm.Key)

	if dict != nil {
		if entry, matchType, ok := dict.Match(norm.Key); ok {
			scored.Matched = true
			scored.MatchType = matchType
			scored.CanonicalName = entry.CanonicalName
			scored.Category = entry.Category

			switch matchType {
			case "exact":
				score += dictionary.ExactMatchBoost
			case "alias":
				score += dictionary.AliasMatchBoost
			}
		} else if fuzzy := dict.FuzzyLookup(norm.Key, 0); len(fuzzy) > 0 {
			// Suggestion only: the dictionary identity is not adopted,
			// so canonical name and category stay as normalized.
			scored.MatchType = "fuzzy"
			scored.SuggestedMatch = fuzzy[0].Key
			score += dictionary.FuzzyMatchBoost
		}
	}

	score = clamp(score, 0, 100)
	if scored.MatchType != "" && score > dictionary.MaxConfidence {
		score = dictionary.MaxConfidence
	}
	if cand.LowConfidence && score > lowConfidenceCap {
		score = lowConfidenceCap
	}

	scored.ConfidenceScore = score
	scored.ConfidenceTier = tier(score)
	scored.NeedsReview = score < cfg.threshold()

	if scored.CanonicalName == "" {
		scored.CanonicalName = norm.Display
	}
	return scored
}

func tier(score int) string {
	switch {
	case score >= highTierFloor:
		return TierHigh
	case score >= mediumTierFloor:
		return TierMedium
	default:
		return TierLow
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
