package normalize

import (
	"regexp"
	"strings"
)

// Transaction-kind buckets. Transfers are classified before generic
// cleanup because cleanup would erase the distinguishing keyword.
const (
	KindExternalTransfer = "sent to another party"
	KindInternalTransfer = "moved between own accounts"
	KindPreauthorized    = "preauthorized"
	KindPurchase         = "purchase"
)

// Result is the output of Normalize: a stable dictionary lookup key, a
// human-readable display name used when no dictionary entry exists, the
// transaction-kind bucket, and an optional category hint.
type Result struct {
	Key          string
	Display      string
	Kind         string
	CategoryHint string
}

// Bank noise removed from descriptions before key folding. These are
// transaction-mechanics phrases, not merchant identity.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[ref\]`),
	regexp.MustCompile(`(?i)\[name\]`),
	regexp.MustCompile(`(?i)\[conversion\]`),
	regexp.MustCompile(`(?i)\[recipient\]`),
	regexp.MustCompile(`(?i)visa\s+purchase\s*-*\s*`),
	regexp.MustCompile(`(?i)visa\s+debit\s*-*\s*`),
	regexp.MustCompile(`(?i)preauthorized\s+payment\s*-*\s*`),
	regexp.MustCompile(`(?i)preauthorized\s*-*\s*`),
	regexp.MustCompile(`(?i)contactless\s+interac`),
	regexp.MustCompile(`(?i)contactless`),
	regexp.MustCompile(`(?i)pos\s+purchase`),
	regexp.MustCompile(`(?i)online\s+banking\s+payment\s+to`),
	regexp.MustCompile(`(?i)online\s+banking`),
	regexp.MustCompile(`(?i)internet\s+transfer`),
	regexp.MustCompile(`(?i)e-transfer`),
	regexp.MustCompile(`(?i)interac\s+purchase`),
	regexp.MustCompile(`(?i)interacpurchase`),
	regexp.MustCompile(`(?i)onlinebankingpayment`),
	regexp.MustCompile(`(?i)retail\s+purchase`),
	regexp.MustCompile(`(?i)billpayment\s+`),
	regexp.MustCompile(`(?i)payrolldeposit\s+`),
	regexp.MustCompile(`(?i)\s+investments\s+inc\.?`),
}

// stopwords dropped from the normalized key: corporate suffixes and
// transaction-type words that carry no merchant identity.
var stopwords = map[string]bool{
	"inc": true, "ltd": true, "llc": true, "corp": true,
	"corporation": true, "company": true, "co": true,
	"canada": true, "canadian": true, "the": true, "and": true,
	"of": true, "for": true,
	"services": true, "service": true, "group": true,
	"international": true, "intl": true,
	"payment": true, "purchase": true, "transfer": true,
	"deposit": true, "withdrawal": true,
	"bill": true, "payroll": true,
}

// properCase maps well-known merchants onto their canonical display casing.
var properCase = map[string]string{
	"uber":         "Uber",
	"spotify":      "Spotify",
	"netflix":      "Netflix",
	"amazon":       "Amazon",
	"google":       "Google",
	"apple":        "Apple",
	"starbucks":    "Starbucks",
	"mcdonalds":    "McDonald's",
	"goodlife":     "GoodLife",
	"wealthsimple": "Wealthsimple",
	"cibc":         "CIBC",
	"rbc":          "RBC",
	"bell":         "Bell",
	"rogers":       "Rogers",
	"telus":        "Telus",
	"uniqlo":       "Uniqlo",
	"simons":       "Simons",
}

var (
	camelLowerUpper = regexp.MustCompile(`([a-z])([A-Z])`)
	camelUpperRun   = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	oneBillPattern  = regexp.MustCompile(`(?i)([a-z]+)\s*onebill`)
	preauthPattern  = regexp.MustCompile(`(?i)preauthorized (?:debit|payment)\s+(?:\d+\s+|\[REF\]\s+)?(.+)`)
	digitRun        = regexp.MustCompile(`\d+`)
	nonLetter       = regexp.MustCompile(`[^a-z\s]`)
	bracketToken    = regexp.MustCompile(`\[.*?\]`)
	trailingRefCode = regexp.MustCompile(`-\d{4}$`)
	leadingDashes   = regexp.MustCompile(`^[\s\-]+`)
	longDigitRun    = regexp.MustCompile(`\d{8,}`)
)

// splitCamelCase inserts spaces at case boundaries so glued compound
// descriptions ("LaMaisonSimons", "BELLONEBILLOnlineBankingpayment")
// become separable words.
func splitCamelCase(text string) string {
	text = camelLowerUpper.ReplaceAllString(text, "$1 $2")
	text = camelUpperRun.ReplaceAllString(text, "$1 $2")
	return text
}

// Normalize turns a redacted transaction description into a stable lookup
// key and a display name. Pure function, issuer-agnostic.
func Normalize(description string) Result {
	if strings.TrimSpace(description) == "" {
		return Result{Key: "unknown", Display: "Unknown", Kind: KindPurchase}
	}

	lower := strings.ToLower(description)

	// Transfer buckets are decided on the raw text, before any cleanup.
	if strings.Contains(lower, "internet transfer") || strings.Contains(lower, "fulfill request") {
		return Result{
			Key:          "internet transfer",
			Display:      "Internal Transfer",
			Kind:         KindInternalTransfer,
			CategoryHint: "Transfer",
		}
	}
	if strings.Contains(lower, "e-transfer") {
		return Result{
			Key:          "e-transfer",
			Display:      "Interac e-Transfer",
			Kind:         KindExternalTransfer,
			CategoryHint: "Transfer",
		}
	}

	kind := KindPurchase
	merchantText := description

	// Preauthorized debits carry a reference token between the keyword and
	// the merchant name. Strip the reference, keep the remainder verbatim
	// (corporate suffixes stay in the display name).
	if strings.Contains(lower, "preauthorized debit") || strings.Contains(lower, "preauthorized payment") {
		if m := preauthPattern.FindStringSubmatch(description); m != nil && strings.TrimSpace(m[1]) != "" {
			merchantText = strings.TrimSpace(m[1])
			kind = KindPreauthorized
		}
	}

	key := foldKey(merchantText)
	display := merchantText
	if kind != KindPreauthorized {
		display = displayName(merchantText)
	}

	return Result{Key: key, Display: display, Kind: kind}
}

// foldKey collapses merchant text into the canonical dictionary key:
// lowercase letters and single spaces, noise and stopwords removed.
func foldKey(text string) string {
	text = splitCamelCase(text)
	text = strings.ToLower(text)

	for _, p := range noisePatterns {
		text = p.ReplaceAllString(text, "")
	}

	// "BELLONEBILL14" style entries: the company name precedes "onebill".
	if strings.Contains(text, "onebill") {
		if m := oneBillPattern.FindStringSubmatch(text); m != nil {
			text = m[1]
		}
	}

	text = digitRun.ReplaceAllString(text, "")
	text = nonLetter.ReplaceAllString(text, " ")

	var kept []string
	for _, w := range strings.Fields(text) {
		if len(w) >= 3 && !stopwords[w] {
			kept = append(kept, w)
		}
	}

	key := strings.Join(kept, " ")
	if key == "" {
		return "unknown"
	}
	return key
}

// displayName produces the human-readable fallback name: less aggressive
// than foldKey, keeps casing context, limited to five words.
func displayName(text string) string {
	text = splitCamelCase(text)

	for _, p := range noisePatterns {
		text = p.ReplaceAllString(text, "")
	}

	text = bracketToken.ReplaceAllString(text, "")
	text = trailingRefCode.ReplaceAllString(text, "")
	text = leadingDashes.ReplaceAllString(text, "")
	text = longDigitRun.ReplaceAllString(text, "")

	if strings.Contains(strings.ToLower(text), "onebill") {
		if m := oneBillPattern.FindStringSubmatch(text); m != nil {
			text = m[1]
		}
	}

	words := strings.Fields(text)

	var display []string
	for _, w := range words {
		wl := strings.ToLower(w)
		switch {
		case wl == "bill" || wl == "payroll" || wl == "payment" || wl == "deposit":
			if len(words) > 1 {
				continue
			}
			display = append(display, w)
		case properCase[wl] != "":
			display = append(display, properCase[wl])
		case w == strings.ToUpper(w) && len(w) > 3:
			display = append(display, capitalize(w))
		default:
			display = append(display, w)
		}
		if len(display) == 5 {
			break
		}
	}

	name := strings.Join(display, " ")
	if name == "" {
		return "Unknown"
	}
	return name
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}
