package extract

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/models"
)

// reconcileEpsilon is the tolerance for comparing derived amounts against
// balance deltas. Violations do not abort extraction; they suppress
// confidence for the remainder of the run.
const reconcileEpsilon = 0.005

// reconcile derives each transaction amount from the difference between
// successive running-balance readings instead of reading the amount
// column. Statement text frequently glues adjacent columns together with
// no separating space; the balance delta sidesteps that ambiguity, at the
// cost of requiring an unbroken, correctly-ordered transaction sequence.
//
// Works when the statement states an opening balance; returns ok=false
// otherwise so the caller can fall back to the line scan.
func reconcile(lines []string, log zerolog.Logger) ([]models.TransactionCandidate, bool) {
	prevBalance, seeded := 0.0, false
	for _, raw := range lines {
		if bal, ok := extractOpeningBalance(raw); ok {
			prevBalance, seeded = bal, true
			break
		}
	}
	if !seeded {
		return nil, false
	}

	var out []models.TransactionCandidate
	driftSeen := false

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || isSummaryLine(line) || !startsWithDate(line) {
			continue
		}

		date, rest := extractDate(line)

		// Collect decimal tokens from this line plus up to the two
		// following lines, stopping at the next transaction.
		tokens := amountPattern.FindAllString(rest, -1)
		descParts := []string{stripAmounts(rest)}
		end := i
		for j := i + 1; j <= i+2 && j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" || startsWithDate(next) || isSummaryLine(next) {
				break
			}
			tokens = append(tokens, amountPattern.FindAllString(next, -1)...)
			descParts = append(descParts, stripAmounts(next))
			end = j
		}

		if len(tokens) == 0 {
			log.Debug().Str("date", date).Msg("dropping transaction with no numeric tokens")
			continue
		}

		newBalance, balToken := pickBalance(tokens)
		if balToken < 0 {
			log.Debug().Str("date", date).Msg("dropping transaction with no balance candidate")
			continue
		}
		delta := roundCents(prevBalance - newBalance)
		if math.Abs(delta) < reconcileEpsilon {
			log.Debug().Str("date", date).Msg("dropping zero-delta line")
			continue
		}

		// When the line also states an explicit amount, disagreement with
		// the balance delta means the sequence has drifted. Keep going,
		// but nothing after this point deserves balance confidence.
		if !driftSeen {
			if stated, ok := statedAmount(tokens, balToken); ok {
				if math.Abs(stated-math.Abs(delta)) > reconcileEpsilon {
					driftSeen = true
					log.Warn().
						Str("date", date).
						Float64("stated", stated).
						Float64("derived", math.Abs(delta)).
						Msg("balance reconciliation drift; downgrading confidence for remainder of run")
				}
			}
		}

		bal := newBalance
		cand := models.TransactionCandidate{
			Date:          date,
			Description:   strings.Join(strings.Fields(strings.Join(descParts, " ")), " "),
			Balance:       &bal,
			LineStart:     i,
			LineEnd:       end,
			ParseMethod:   "reconciled",
			LowConfidence: driftSeen,
		}
		if delta > 0 {
			cand.Type = "debit"
			cand.Amount = -delta
		} else {
			cand.Type = "credit"
			cand.Amount = -delta
		}

		out = append(out, cand)
		prevBalance = newBalance
		i = end
	}

	return out, true
}

// pickBalance selects the running-balance token from a transaction's
// numeric tokens: the rightmost token containing a thousands separator,
// or else the numerically largest candidate. Store codes glued onto an
// amount are never balance readings and are skipped entirely, otherwise
// the largest-candidate fallback would latch onto them. Returns the
// parsed value and the index of the chosen token, or -1 when no token
// qualifies.
func pickBalance(tokens []string) (float64, int) {
	for i := len(tokens) - 1; i >= 0; i-- {
		if strings.Contains(tokens[i], ",") {
			v, err := parseAmount(tokens[i])
			if err == nil {
				return v, i
			}
		}
	}

	best, bestIdx := 0.0, -1
	for i, t := range tokens {
		if gluedNumberPattern.MatchString(t) {
			continue
		}
		v, err := parseAmount(t)
		if err != nil {
			continue
		}
		if v > best {
			best, bestIdx = v, i
		}
	}
	return best, bestIdx
}

// statedAmount returns the explicit amount token on the line, if any:
// the first parseable token that is not the chosen balance. Glued
// store-code tokens are skipped so they cannot masquerade as a
// disagreeing stated amount.
func statedAmount(tokens []string, balToken int) (float64, bool) {
	for i, t := range tokens {
		if i == balToken {
			continue
		}
		if gluedNumberPattern.MatchString(t) {
			continue
		}
		v, err := parseAmount(t)
		if err == nil {
			return v, true
		}
	}
	return 0, false
}
