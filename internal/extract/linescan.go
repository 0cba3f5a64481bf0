package extract

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/models"
)

// lineScanner accumulates the state of one pass over redacted statement
// lines: the currently open transaction and its description fragments.
type lineScanner struct {
	log       zerolog.Logger
	out       []models.TransactionCandidate
	open      *models.TransactionCandidate
	descParts []string
}

// lineScan walks redacted statement text line by line. A line matching the
// issuer date grammar opens a transaction; following non-date lines
// accumulate as description continuation until a line carrying a decimal
// amount closes it (or the next date line forces a flush). A transaction
// that never resolves an amount is dropped, not defaulted to zero; a
// malformed line is skipped, never fatal.
func lineScan(lines []string, log zerolog.Logger) []models.TransactionCandidate {
	s := &lineScanner{log: log}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || isSummaryLine(line) {
			continue
		}

		if startsWithDate(line) {
			s.flush()

			date, rest := extractDate(line)
			s.open = &models.TransactionCandidate{
				Date:        date,
				LineStart:   i,
				LineEnd:     i,
				ParseMethod: "linescan",
			}
			s.consume(rest)
			continue
		}

		if s.open == nil {
			continue
		}
		s.open.LineEnd = i
		s.consume(line)
	}
	s.flush()

	return s.out
}

// consume folds one line fragment into the open transaction, closing it
// when the fragment carries an amount.
func (s *lineScanner) consume(text string) {
	if text == "" {
		return
	}

	// Glued store-code+amount runs also match the plain amount pattern,
	// so the split check has to run first.
	for _, field := range strings.Fields(text) {
		if store, amt, ok := splitGluedNumber(field); ok {
			s.closeGlued(text, store, amt)
			return
		}
	}

	if tokens := amountPattern.FindAllString(text, -1); len(tokens) > 0 {
		s.closeWith(tokens, text)
		return
	}

	s.descParts = append(s.descParts, text)
}

// closeWith closes the open transaction from clean decimal tokens. The
// first token is the amount; a trailing token with a thousands separator
// is read as the running balance.
func (s *lineScanner) closeWith(tokens []string, rest string) {
	amt, err := parseAmount(tokens[0])
	if err != nil {
		s.log.Debug().Str("token", tokens[0]).Msg("skipping unparseable amount token")
		return
	}

	if desc := stripAmounts(rest); desc != "" {
		s.descParts = append(s.descParts, desc)
	}

	s.open.Amount = amt
	if len(tokens) > 1 && strings.Contains(tokens[len(tokens)-1], ",") {
		if bal, err := parseAmount(tokens[len(tokens)-1]); err == nil {
			s.open.Balance = &bal
		}
	}

	s.sign()
	s.emit()
}

// closeGlued closes the open transaction from a digit-split token. The
// split is a heuristic guess, so the candidate is always low-confidence.
func (s *lineScanner) closeGlued(rest, store string, amt float64) {
	if desc := stripAmounts(rest); desc != "" {
		s.descParts = append(s.descParts, desc)
	}
	if store != "" {
		s.descParts = append(s.descParts, "#"+store)
	}

	s.open.Amount = amt
	s.open.ParseMethod = "digit-split"
	s.open.LowConfidence = true

	s.sign()
	s.emit()
}

// sign assigns debit/credit from the keyword tables and applies the sign
// convention (debits negative).
func (s *lineScanner) sign() {
	desc := strings.Join(s.descParts, " ")
	if isDepositDescription(desc) && !isWithdrawalDescription(desc) {
		s.open.Type = "credit"
	} else {
		s.open.Type = "debit"
		s.open.Amount = -s.open.Amount
	}
}

// emit finalizes the open transaction.
func (s *lineScanner) emit() {
	s.open.Description = strings.Join(strings.Fields(strings.Join(s.descParts, " ")), " ")
	s.out = append(s.out, *s.open)
	s.open = nil
	s.descParts = nil
}

// flush discards an open transaction that never resolved an amount.
func (s *lineScanner) flush() {
	if s.open == nil {
		return
	}
	s.log.Debug().
		Str("date", s.open.Date).
		Str("description", strings.Join(s.descParts, " ")).
		Msg("dropping transaction with no resolvable amount")
	s.open = nil
	s.descParts = nil
}

// stripAmounts removes decimal money tokens and glued numeric runs from a
// line fragment, leaving description text.
func stripAmounts(text string) string {
	text = amountPattern.ReplaceAllString(text, "")
	var kept []string
	for _, f := range strings.Fields(text) {
		if gluedNumberPattern.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
