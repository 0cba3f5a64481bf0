package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// gluedNumberPattern matches an unbroken integer run of 4-8 digits before a
// two-decimal fraction: a 3-5 digit store code concatenated onto a 1-3
// digit amount with no separating space.
var gluedNumberPattern = regexp.MustCompile(`^(\d{4,8})\.(\d{2})$`)

// splitGluedNumber resolves a glued storeCode+amount token by digit-length
// heuristic: the last 1-3 digits before the decimal point are kept as the
// amount, the leading 3-5 digits are the store code. This is a genuinely
// ambiguous inverse problem; callers must flag every result low-confidence
// so it lands in the review bucket rather than being trusted.
func splitGluedNumber(token string) (storeCode string, amount float64, ok bool) {
	m := gluedNumberPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return "", 0, false
	}
	intPart, fraction := m[1], m[2]

	// Prefer the shortest plausible amount: a longer store code explains
	// more of the run, and amounts with a leading zero are implausible.
	for keep := 1; keep <= 3; keep++ {
		store := intPart[:len(intPart)-keep]
		if len(store) < 3 || len(store) > 5 {
			continue
		}
		amountDigits := intPart[len(intPart)-keep:]
		if keep > 1 && amountDigits[0] == '0' {
			continue
		}
		v, err := strconv.ParseFloat(amountDigits+"."+fraction, 64)
		if err != nil {
			continue
		}
		return store, v, true
	}
	return "", 0, false
}
