package extract

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/models"
)

// Extract turns a redacted statement document into transaction
// candidates. Positioned text items use the column-layout strategy; plain
// text prefers balance reconciliation when the statement states an
// opening balance, and falls back to the line scan otherwise.
//
// Extraction never fails for a single malformed line; bad lines are
// skipped so one bad row cannot discard a whole statement.
func Extract(doc *models.StatementDocument, log zerolog.Logger) []models.TransactionCandidate {
	if len(doc.Items) > 0 {
		cands := fromItems(doc.Items, doc.Issuer, log)
		log.Info().Int("count", len(cands)).Str("strategy", "layout").Msg("extracted transactions")
		return cands
	}

	var lines []string
	for _, page := range doc.Pages {
		lines = append(lines, strings.Split(page, "\n")...)
	}

	if cands, ok := reconcile(lines, log); ok {
		log.Info().Int("count", len(cands)).Str("strategy", "reconciled").Msg("extracted transactions")
		return cands
	}

	cands := lineScan(lines, log)
	log.Info().Int("count", len(cands)).Str("strategy", "linescan").Msg("extracted transactions")
	return cands
}

// OpeningBalance scans document text for the stated opening balance.
func OpeningBalance(doc *models.StatementDocument) (float64, bool) {
	for _, page := range doc.Pages {
		for _, line := range strings.Split(page, "\n") {
			if bal, ok := extractOpeningBalance(line); ok {
				return bal, true
			}
		}
	}
	return 0, false
}
