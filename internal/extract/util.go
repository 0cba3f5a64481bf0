package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Date grammars for the supported statement columns.
var (
	// "Nov 3" at the start of a line (CIBC).
	datePatternMonthDay = regexp.MustCompile(`^((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2})\b`)
	// "27Oct" or "27 Oct" at the start of a line (RBC).
	datePatternDayMonth = regexp.MustCompile(`^(\d{1,2}\s*(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec))\b`)
)

// amountPattern matches decimal money tokens like 1,234.56 or 25.99.
var amountPattern = regexp.MustCompile(`[\d,]+\.\d{2}`)

// parseAmount converts a string like "1,234.56" or "-$1,234.56" to a float64.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "") // non-breaking space

	if s == "" || s == "-" {
		return 0, nil
	}

	return strconv.ParseFloat(s, 64)
}

// startsWithDate checks if a line begins with either date grammar.
func startsWithDate(line string) bool {
	line = strings.TrimSpace(line)
	return datePatternMonthDay.MatchString(line) || datePatternDayMonth.MatchString(line)
}

// extractDate returns the date token at the start of a line and the
// remainder of the line, or ("", line) when no grammar matches.
func extractDate(line string) (string, string) {
	line = strings.TrimSpace(line)
	if m := datePatternMonthDay.FindStringSubmatch(line); m != nil {
		return m[1], strings.TrimSpace(line[len(m[0]):])
	}
	if m := datePatternDayMonth.FindStringSubmatch(line); m != nil {
		return m[1], strings.TrimSpace(line[len(m[0]):])
	}
	return "", line
}

// isDepositDescription reports whether a description names a credit-type
// transaction. Checked before the withdrawal table; lines matching neither
// default to debit, since statement bodies are overwhelmingly spend lines.
func isDepositDescription(desc string) bool {
	lower := strings.ToLower(desc)
	depositKeywords := []string{
		"deposit", "payroll", "pay ", "received", "refund",
		"reversal", "credit memo", "interest paid",
	}
	for _, kw := range depositKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isWithdrawalDescription reports whether a description names a debit-type
// transaction kind.
func isWithdrawalDescription(desc string) bool {
	lower := strings.ToLower(desc)
	withdrawalKeywords := []string{
		"retail purchase", "visa debit", "e-transfer", "internet transfer",
		"preauthorized debit", "preauthorized payment", "service charge",
		"monthly fee", "withdrawal", "purchase", "payment", "fee",
	}
	for _, kw := range withdrawalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isSummaryLine filters statement summary and footer rows out of the
// transaction scan.
func isSummaryLine(line string) bool {
	lower := strings.ToLower(line)
	summaryKeywords := []string{
		"opening balance", "closing balance", "balance forward",
		"total withdrawals", "total deposits", "statement period",
		"account number", "branch transit", "page ", "continued",
		"free transaction", "important:", "foreign currency",
		"registered trademark",
	}
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractOpeningBalance looks for the statement's stated opening balance
// and returns it, or (0, false).
func extractOpeningBalance(line string) (float64, bool) {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "opening balance") &&
		!strings.Contains(lower, "balance forward") &&
		!strings.Contains(lower, "balance brought forward") {
		return 0, false
	}

	amounts := amountPattern.FindAllString(line, -1)
	if len(amounts) == 0 {
		return 0, false
	}
	bal, err := parseAmount(amounts[len(amounts)-1])
	if err != nil {
		return 0, false
	}
	return bal, true
}

// roundCents rounds to two decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
