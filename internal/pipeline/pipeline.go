package pipeline

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/confidence"
	"github.com/finsight/statement-ledger/internal/dictionary"
	"github.com/finsight/statement-ledger/internal/extract"
	"github.com/finsight/statement-ledger/internal/issuer"
	"github.com/finsight/statement-ledger/internal/models"
	"github.com/finsight/statement-ledger/internal/normalize"
	"github.com/finsight/statement-ledger/internal/redact"
)

// Config carries the per-run knobs for the pipeline.
type Config struct {
	// ReviewThreshold is the confidence score below which transactions are
	// flagged for manual review. Zero means the default.
	ReviewThreshold int
	// SaveDictionary persists usage-stat updates after a successful run.
	SaveDictionary bool
}

// Pipeline runs a statement document through issuer detection, redaction,
// extraction, normalization, dictionary matching, and scoring. Safe for
// concurrent use; dictionary access is serialized internally.
type Pipeline struct {
	dict *dictionary.Dictionary
	cfg  Config
	log  zerolog.Logger
}

func New(dict *dictionary.Dictionary, cfg Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{dict: dict, cfg: cfg, log: log}
}

// Process converts one statement document into a finalized ledger.
// The caller's document is left untouched; redaction and issuer
// detection happen on an internal copy. Returns
// issuer.ErrUnrecognizedIssuer when the document matches no known
// institution; that is fatal for the document.
func (p *Pipeline) Process(src *models.StatementDocument) (*models.Ledger, error) {
	doc := *src
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	log := p.log.With().Str("statement_id", doc.ID).Str("source", doc.SourceFile).Logger()

	if doc.Issuer == "" {
		tag, err := issuer.Detect(doc.Text())
		if err != nil {
			return nil, fmt.Errorf("statement %s: %w", doc.ID, err)
		}
		doc.Issuer = tag
	}
	log = log.With().Str("issuer", string(doc.Issuer)).Logger()

	// Scrub personal data before anything downstream can see it.
	// RedactPages allocates; the items slice is copied explicitly so the
	// caller never sees redacted text.
	doc.Pages = redact.RedactPages(doc.Pages, doc.Issuer)
	if len(doc.Items) > 0 {
		items := make([]models.TextItem, len(doc.Items))
		copy(items, doc.Items)
		for i := range items {
			items[i].Text = redact.Redact(items[i].Text, doc.Issuer)
		}
		doc.Items = items
	}

	candidates := extract.Extract(&doc, log)
	log.Info().Int("candidates", len(candidates)).Msg("extraction complete")

	scored := make([]models.ScoredTransaction, 0, len(candidates))
	scoreCfg := confidence.Config{ReviewThreshold: p.cfg.ReviewThreshold}
	for _, cand := range candidates {
		norm := normalize.Normalize(cand.Description)
		st := confidence.Score(cand, norm, p.dict, scoreCfg)
		if st.Matched && st.IsDebit() {
			p.dict.UpdateStats(st.NormalizedKey, math.Abs(st.Amount))
		}
		scored = append(scored, st)
	}

	ledger := &models.Ledger{
		StatementID:     doc.ID,
		SourceFile:      doc.SourceFile,
		Issuer:          doc.Issuer,
		StatementPeriod: period(scored, doc.Year),
		Summary:         summarize(&doc, scored),
		Transactions:    scored,
	}

	if p.cfg.SaveDictionary {
		if err := p.dict.Save(); err != nil {
			return nil, fmt.Errorf("statement %s: %w", doc.ID, err)
		}
	}

	log.Info().
		Int("transactions", len(scored)).
		Int("needs_review", countReview(scored)).
		Msg("pipeline complete")
	return ledger, nil
}

// DocResult pairs a ledger with the error that stopped its document, for
// batch processing where one bad statement must not sink the rest.
type DocResult struct {
	Ledger *models.Ledger
	Err    error
}

// ProcessAll runs documents concurrently. Results are returned in input
// order; the dictionary is saved once at the end if configured.
func (p *Pipeline) ProcessAll(docs []*models.StatementDocument) []DocResult {
	results := make([]DocResult, len(docs))

	// Defer the save to a single point after all workers finish.
	inner := *p
	inner.cfg.SaveDictionary = false

	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ledger, err := inner.Process(docs[i])
			results[i] = DocResult{Ledger: ledger, Err: err}
		}(i)
	}
	wg.Wait()

	if p.cfg.SaveDictionary {
		if err := p.dict.Save(); err != nil {
			p.log.Error().Err(err).Msg("dictionary save failed")
		}
	}
	return results
}

func period(txns []models.ScoredTransaction, year int) models.Period {
	var pd models.Period
	for i := range txns {
		d, ok := models.ParseStatementDate(txns[i].Date, year)
		if !ok {
			continue
		}
		iso := d.Format("2006-01-02")
		if pd.Start == "" || iso < pd.Start {
			pd.Start = iso
		}
		if pd.End == "" || iso > pd.End {
			pd.End = iso
		}
	}
	return pd
}

func summarize(doc *models.StatementDocument, txns []models.ScoredTransaction) models.LedgerSummary {
	var s models.LedgerSummary
	if ob, ok := extract.OpeningBalance(doc); ok {
		s.OpeningBalance = ob
	}
	for i := range txns {
		t := &txns[i]
		if t.IsDebit() {
			s.TotalWithdrawals += math.Abs(t.Amount)
		} else {
			s.TotalDeposits += t.Amount
		}
		if t.Balance != nil {
			s.ClosingBalance = *t.Balance
		}
	}
	s.TotalWithdrawals = math.Round(s.TotalWithdrawals*100) / 100
	s.TotalDeposits = math.Round(s.TotalDeposits*100) / 100
	if s.ClosingBalance == 0 && (s.TotalDeposits != 0 || s.TotalWithdrawals != 0) {
		s.ClosingBalance = math.Round((s.OpeningBalance+s.TotalDeposits-s.TotalWithdrawals)*100) / 100
	}
	return s
}

func countReview(txns []models.ScoredTransaction) int {
	n := 0
	for i := range txns {
		if txns[i].NeedsReview {
			n++
		}
	}
	return n
}
