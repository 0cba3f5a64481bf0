package redact

import (
	"regexp"
	"strings"

	"github.com/finsight/statement-ledger/internal/models"
)

// Placeholders substituted for removed PII. Downstream stages and tests
// match on these literal tokens.
const (
	RefPlaceholder        = "[REF]"
	NamePlaceholder       = "[NAME]"
	RecipientPlaceholder  = "[RECIPIENT]"
	ConversionPlaceholder = "[CONVERSION]"
)

// Rule is one ordered substitution pass. Rules run strictly in slice order:
// some rules match on the placeholder shape produced by an earlier rule
// (the recipient rule matches "E-TRANSFER [REF]"), so reordering breaks
// them. An unmatched pattern is a no-op, never an error.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
}

// Apply runs the rule over one line of text.
func (r Rule) Apply(text string) string {
	return r.Pattern.ReplaceAllString(text, r.Replace)
}

// cibcRules removes reference numbers, personal names, and conversion
// detail from CIBC descriptions while leaving dates, amounts, balances
// and merchant tokens untouched.
var cibcRules = []Rule{
	{
		// Two letters minimum per side, so single-letter prefixes like
		// "E-TRANSFER" are not mistaken for a name.
		Name:    "hyphenated-name",
		Pattern: regexp.MustCompile(`\b[A-Z]{2,}-[A-Z]{2,}\b`),
		Replace: NamePlaceholder,
	},
	{
		Name:    "etransfer-ref",
		Pattern: regexp.MustCompile(`(?i)E-TRANSFER\s+\d{12}`),
		Replace: "E-TRANSFER " + RefPlaceholder,
	},
	{
		Name:    "uber-txn-id",
		Pattern: regexp.MustCompile(`UBER CANADA/UBE\s+\d{12}`),
		Replace: "UBER CANADA/UBE " + RefPlaceholder,
	},
	{
		Name:    "long-ref",
		Pattern: regexp.MustCompile(`\b\d{10,}\b`),
		Replace: RefPlaceholder,
	},
	{
		Name:    "cad-conversion",
		Pattern: regexp.MustCompile(`\d+\.\d{2}\s+CAD\s+@\s+[\d.]+`),
		Replace: ConversionPlaceholder,
	},
	{
		Name:    "internet-transfer-ref",
		Pattern: regexp.MustCompile(`(INTERNET TRANSFER)\s+\d{10,}`),
		Replace: "${1} " + RefPlaceholder,
	},
	{
		// Depends on etransfer-ref having already rewritten the reference
		// number into [REF].
		Name:    "etransfer-recipient",
		Pattern: regexp.MustCompile(`(E-TRANSFER\s+\[REF\])\s+(?:[A-Z][a-z]+\s+)+`),
		Replace: "${1} " + RecipientPlaceholder + " ",
	},
	{
		Name:    "preauthorized-ref",
		Pattern: regexp.MustCompile(`(PREAUTHORIZED DEBIT)\s+\d{10,}`),
		Replace: "${1} " + RefPlaceholder,
	},
	{
		// Trailing initials like "AE/EI" at end of line.
		Name:    "trailing-initials",
		Pattern: regexp.MustCompile(`\s+[A-Z]{1,3}/[A-Z]{1,3}\s*$`),
		Replace: "",
	},
}

// rbcRules covers the RBC format: six-character alphanumeric e-transfer
// codes and the recipient name between "e-Transfer sent" and the code.
var rbcRules = []Rule{
	{
		// Must run before etransfer-code so the recipient name and code
		// are still adjacent.
		Name:    "etransfer-recipient",
		Pattern: regexp.MustCompile(`(e-Transfer sent)\s+[A-Za-z\s]+?\s+[A-Z0-9]{6}\b`),
		Replace: "${1} " + RecipientPlaceholder + " " + RefPlaceholder,
	},
	{
		Name:    "etransfer-code",
		Pattern: regexp.MustCompile(`(e-Transfer)\s+[A-Z0-9]{6}\b`),
		Replace: "${1} " + RefPlaceholder,
	},
}

// RulesFor returns the ordered rule pipeline for an issuer. Unknown tags
// get an empty pipeline, which leaves text unchanged.
func RulesFor(issuer models.IssuerTag) []Rule {
	switch issuer {
	case models.IssuerCIBC:
		return cibcRules
	case models.IssuerRBC:
		return rbcRules
	default:
		return nil
	}
}

// Redact applies the issuer's rule pipeline to a text blob, line by line,
// and collapses runs of whitespace left behind by removals. Redaction
// never fails; output is the only representation later stages may see.
func Redact(text string, issuer models.IssuerTag) string {
	rules := RulesFor(issuer)
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		for _, rule := range rules {
			line = rule.Apply(line)
		}
		lines[i] = strings.Join(strings.Fields(line), " ")
	}

	return strings.Join(lines, "\n")
}

// RedactPages redacts each page of a document, preserving page boundaries.
func RedactPages(pages []string, issuer models.IssuerTag) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = Redact(p, issuer)
	}
	return out
}
